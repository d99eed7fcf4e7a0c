// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package path implements the Atomic Path resolver: a space-separated
// token expression that navigates from a starting subject through
// property edges and array indices to a final Subject or Atom.
package path

import (
	"net/url"
	"strconv"
	"strings"

	aerrors "github.com/atomicdata-dev/atomicd/pkg/errors"
	"github.com/atomicdata-dev/atomicd/pkg/resource"
	"github.com/atomicdata-dev/atomicd/pkg/value"
)

// Mapping resolves a shortname or bookmark (the path's first token, when
// it isn't already an absolute URL) to a subject.
type Mapping interface {
	Resolve(token string) (subject string, ok bool)
}

// Getter is the subset of pkg/store.Store a path walk needs.
type Getter interface {
	GetResource(subject string) (*resource.Resource, error)
}

// ClassResolver resolves a property shortname against a set of classes,
// matching resource.ClassResolver's same-named method.
type ClassResolver interface {
	ResolveShortname(classURLs []string, shortname string) (string, error)
}

// Return is the result of a path walk: exactly one of Subject or Atom is
// meaningful, selected by IsAtom.
type Return struct {
	IsAtom  bool
	Subject string
	Atom    resource.Atom
}

// cursor is the walk's current position: either sitting on a resource
// (ready to resolve a further shortname token) or on a terminal value
// (ready to resolve a further index token, or nothing more).
type cursor struct {
	subject  string // "" when sitting inside an anonymous nested resource
	resource *resource.Resource
	atom     *resource.Atom // set once a shortname step has been taken
}

// Resolve walks expr (ASCII-space-separated tokens) starting from the
// subject or mapping entry named by its first token.
func Resolve(store Getter, classes ClassResolver, mapping Mapping, expr string) (Return, error) {
	tokens := strings.Fields(expr)
	if len(tokens) == 0 {
		return Return{}, aerrors.Validationf("", "empty path expression")
	}

	subject, err := resolveFirstToken(mapping, tokens[0])
	if err != nil {
		return Return{}, err
	}
	if len(tokens) == 1 {
		return Return{Subject: subject}, nil
	}

	r, err := store.GetResource(subject)
	if err != nil {
		return Return{}, err
	}
	cur := cursor{subject: subject, resource: r}

	for _, tok := range tokens[1:] {
		if idx, isIndex := parseIndex(tok); isIndex {
			cur, err = stepIndex(store, cur, idx)
		} else {
			cur, err = stepShortname(classes, cur, tok)
		}
		if err != nil {
			return Return{}, err
		}
	}

	if cur.atom != nil && cur.resource == nil {
		return Return{IsAtom: true, Atom: *cur.atom}, nil
	}
	if cur.resource != nil {
		return Return{Subject: cur.subject}, nil
	}
	return Return{}, aerrors.Validationf(expr, "path did not resolve to a subject or a value")
}

func stepIndex(store Getter, cur cursor, idx int) (cursor, error) {
	if cur.atom == nil || cur.atom.Value.Kind != value.ResourceArray {
		return cursor{}, aerrors.Validationf(cur.subject, "path index %d used on a non-array value", idx)
	}
	arr := cur.atom.Value.Array
	if idx < 0 || idx >= len(arr) {
		return cursor{}, aerrors.Validationf(cur.subject, "path index %d out of range (len %d)", idx, len(arr))
	}
	el := arr[idx]
	if el.IsNested() {
		return cursor{subject: "", resource: resourceFromPropVals(el.Nested)}, nil
	}
	next, err := store.GetResource(el.Subject)
	if err != nil {
		return cursor{}, err
	}
	return cursor{subject: el.Subject, resource: next}, nil
}

func stepShortname(classes ClassResolver, cur cursor, shortname string) (cursor, error) {
	if cur.resource == nil {
		return cursor{}, aerrors.Validationf(cur.subject, "path shortname %q used after a terminal value", shortname)
	}
	propURL, err := classes.ResolveShortname(cur.resource.Classes(), shortname)
	if err != nil {
		return cursor{}, err
	}
	v, err := cur.resource.Get(propURL)
	if err != nil {
		return cursor{}, err
	}
	atom := resource.Atom{Subject: cur.subject, Property: propURL, Value: v}

	// A shortname step always lands on the property's value, never the
	// resource it might point at: only an explicit array-index step
	// descends further, so the cursor is terminal from here.
	return cursor{subject: cur.subject, resource: nil, atom: &atom}, nil
}

func resolveFirstToken(mapping Mapping, tok string) (string, error) {
	if u, err := url.Parse(tok); err == nil && u.IsAbs() {
		return tok, nil
	}
	if mapping != nil {
		if subject, ok := mapping.Resolve(tok); ok {
			return subject, nil
		}
	}
	return "", aerrors.NotFoundf(tok, "no mapping entry for path token %q", tok)
}

func parseIndex(tok string) (int, bool) {
	i, err := strconv.Atoi(tok)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

func resourceFromPropVals(pv value.PropVals) *resource.Resource {
	r := resource.NewUnchecked("")
	for k, v := range pv {
		r.SetPropvalUnsafe(k, v)
	}
	return r
}
