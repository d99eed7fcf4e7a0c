// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package serialize implements the deterministic JSON-AD serializer used
// as Commit signing input (Canonical / CanonicalTree), plus general
// (non-canonical) JSON-AD import/export for bulk transport.
//
// Canonical deliberately does not use encoding/json's map marshaling,
// which does sort string-keyed maps but is not a contract this module
// controls byte-for-byte across Go versions; a small hand-rolled emitter
// guarantees the exact cross-implementation byte-equality signing
// requires.
package serialize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	aerrors "github.com/atomicdata-dev/atomicd/pkg/errors"
	"github.com/atomicdata-dev/atomicd/pkg/value"
)

// Canonical renders a resource's property-value map as the deterministic
// JSON-AD form: keys sorted lexicographically at every nesting level, no
// insignificant whitespace, array order preserved as authored.
func Canonical(pv value.PropVals) (string, error) {
	return CanonicalTree(PropValsToTree(pv))
}

// PropValsToTree converts a PropVals map into the plain JSON tree shape
// (map[string]any / []any / string / int64 / float64 / bool) that
// CanonicalTree walks.
func PropValsToTree(pv value.PropVals) map[string]any {
	out := make(map[string]any, len(pv))
	for k, v := range pv {
		out[k] = ValueToTree(v)
	}
	return out
}

// ValueToTree converts one Value into its plain-JSON representation.
func ValueToTree(v value.Value) any {
	switch v.Kind {
	case value.String, value.Markdown, value.Slug, value.AtomicURL, value.Date:
		return v.Str
	case value.Integer, value.Timestamp:
		return v.Int
	case value.Float:
		return v.Flt
	case value.Boolean:
		return v.Bool
	case value.ResourceArray:
		arr := make([]any, len(v.Array))
		for i, el := range v.Array {
			if el.IsNested() {
				arr[i] = PropValsToTree(el.Nested)
			} else {
				arr[i] = el.Subject
			}
		}
		return arr
	case value.NestedResource:
		return PropValsToTree(v.Nested)
	default:
		return nil
	}
}

// CanonicalTree serializes an arbitrary JSON-like tree (as produced by
// ValueToTree/PropValsToTree, or hand-built by pkg/commit for the Commit
// envelope) into the canonical byte string.
func CanonicalTree(tree any) (string, error) {
	var b strings.Builder
	if err := writeCanonical(&b, tree); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeCanonical(b *strings.Builder, v any) error {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case string:
		writeJSONString(b, t)
	case bool:
		if t {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case int:
		b.WriteString(strconv.Itoa(t))
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))
	case float64:
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
	case []string:
		b.WriteByte('[')
		for i, s := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			writeJSONString(b, s)
		}
		b.WriteByte(']')
	case []any:
		b.WriteByte('[')
		for i, el := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeCanonical(b, el); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			writeJSONString(b, k)
			b.WriteByte(':')
			if err := writeCanonical(b, t[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	default:
		return aerrors.Internalf("", "canonical serialize: unsupported type %T", v)
	}
	return nil
}

func writeJSONString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}
