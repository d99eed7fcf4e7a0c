// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package serialize

import (
	"github.com/goccy/go-json"

	aerrors "github.com/atomicdata-dev/atomicd/pkg/errors"
	"github.com/atomicdata-dev/atomicd/pkg/value"
)

// DatatypeLookup resolves a property URL to its declared datatype, the
// information JSON-AD's wire form omits (unlike the canonical signing
// form, the general form is not self-describing).
type DatatypeLookup func(propertyURL string) (value.DataType, error)

// Export renders pv as general (non-canonical) JSON-AD bytes. Unlike
// Canonical, key order is whatever encoding/json-compatible marshaling
// produces and is not a signing input.
func Export(pv value.PropVals) ([]byte, error) {
	tree := PropValsToTree(pv)
	b, err := json.Marshal(tree)
	if err != nil {
		return nil, aerrors.Internalf("", "export JSON-AD: %v", err)
	}
	return b, nil
}

// Import parses general JSON-AD bytes into a PropVals map, resolving each
// property's datatype via lookup.
func Import(data []byte, lookup DatatypeLookup) (value.PropVals, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, aerrors.Validationf("", "parse JSON-AD: %v", err)
	}
	return treeToPropVals(raw, lookup)
}

func treeToPropVals(raw map[string]any, lookup DatatypeLookup) (value.PropVals, error) {
	out := make(value.PropVals, len(raw))
	for prop, raw := range raw {
		dt, err := lookup(prop)
		if err != nil {
			return nil, err
		}
		v, err := treeToValue(prop, raw, dt, lookup)
		if err != nil {
			return nil, err
		}
		out[prop] = v
	}
	return out, nil
}

func treeToValue(prop string, raw any, dt value.DataType, lookup DatatypeLookup) (value.Value, error) {
	switch dt {
	case value.ResourceArray:
		arr, ok := raw.([]any)
		if !ok {
			return value.Value{}, aerrors.Validationf(prop, "expected array for resourceArray property")
		}
		subs := make([]value.SubResource, len(arr))
		for i, el := range arr {
			switch t := el.(type) {
			case string:
				subs[i] = value.SubResource{Subject: t}
			case map[string]any:
				nested, err := treeToPropVals(t, lookup)
				if err != nil {
					return value.Value{}, err
				}
				subs[i] = value.SubResource{Nested: nested}
			default:
				return value.Value{}, aerrors.Validationf(prop, "invalid resource array element")
			}
		}
		return value.Value{Kind: value.ResourceArray, Array: subs}, nil
	case value.NestedResource:
		m, ok := raw.(map[string]any)
		if !ok {
			return value.Value{}, aerrors.Validationf(prop, "expected object for nestedResource property")
		}
		nested, err := treeToPropVals(m, lookup)
		if err != nil {
			return value.Value{}, err
		}
		return value.Value{Kind: value.NestedResource, Nested: nested}, nil
	case value.Integer, value.Timestamp:
		f, ok := raw.(float64)
		if !ok {
			return value.Value{}, aerrors.Validationf(prop, "expected number for %s property", dt)
		}
		return value.Value{Kind: dt, Int: int64(f)}, nil
	case value.Float:
		f, ok := raw.(float64)
		if !ok {
			return value.Value{}, aerrors.Validationf(prop, "expected number for float property")
		}
		return value.Value{Kind: value.Float, Flt: f}, nil
	case value.Boolean:
		b, ok := raw.(bool)
		if !ok {
			return value.Value{}, aerrors.Validationf(prop, "expected boolean for property")
		}
		return value.Value{Kind: value.Boolean, Bool: b}, nil
	default: // String, Markdown, Slug, AtomicURL, Date
		s, ok := raw.(string)
		if !ok {
			return value.Value{}, aerrors.Validationf(prop, "expected string for %s property", dt)
		}
		return value.Value{Kind: dt, Str: s}, nil
	}
}
