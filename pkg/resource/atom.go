// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package resource

import "github.com/atomicdata-dev/atomicd/pkg/value"

// Atom is the (subject, property, value) triple added to or removed from
// the inverted index.
type Atom struct {
	Subject  string
	Property string
	Value    value.Value
}

// Equal reports whether a and o index to the same posting.
func (a Atom) Equal(o Atom) bool {
	return a.Subject == o.Subject && a.Property == o.Property && a.Value.Equal(o.Value)
}
