// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package store

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/atomicdata-dev/atomicd/pkg/value"
)

// LocalSelfURL is the sentinel self URL for a client-only store: every
// subject is considered external.
const LocalSelfURL = "local"

// IsExternalSubject implements the host-stripping rule shared by every
// backend: true iff subject's host, after stripping its leftmost label,
// differs from selfURL's host.
func IsExternalSubject(subject, selfURL string) bool {
	if selfURL == LocalSelfURL {
		return true
	}
	self, err := url.Parse(selfURL)
	if err != nil {
		return true
	}
	su, err := url.Parse(subject)
	if err != nil {
		return true
	}
	return stripLeftLabel(su.Hostname()) != self.Hostname()
}

func stripLeftLabel(host string) string {
	i := strings.Index(host, ".")
	if i < 0 {
		return host
	}
	return host[i+1:]
}

// ValueIndexKey renders v into a stable string usable as an inverted-index
// key component. It need not be cross-implementation stable (unlike
// pkg/serialize's canonical form) — only self-consistent within one
// backend's lifetime.
func ValueIndexKey(v value.Value) string {
	switch v.Kind {
	case value.ResourceArray:
		subs := make([]string, len(v.Array))
		for i, el := range v.Array {
			if el.IsNested() {
				subs[i] = "{nested}"
			} else {
				subs[i] = el.Subject
			}
		}
		return string(v.Kind) + ":[" + strings.Join(subs, ",") + "]"
	case value.NestedResource:
		keys := make([]string, 0, len(v.Nested))
		for k := range v.Nested {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(string(v.Kind))
		b.WriteString(":{")
		for _, k := range keys {
			fmt.Fprintf(&b, "%s=%s;", k, ValueIndexKey(v.Nested[k]))
		}
		b.WriteString("}")
		return b.String()
	default:
		return string(v.Kind) + ":" + v.String()
	}
}
