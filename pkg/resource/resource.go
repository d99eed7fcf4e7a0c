// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package resource implements the Resource, Atom and Agent types: the
// property-to-value map keyed by subject URL, the indexing triple derived
// from it, and the Ed25519 identity that signs Commits against it.
package resource

import (
	"net/url"

	aerrors "github.com/atomicdata-dev/atomicd/pkg/errors"
	"github.com/atomicdata-dev/atomicd/pkg/urls"
	"github.com/atomicdata-dev/atomicd/pkg/value"
)

// ClassResolver is the subset of the schema store a Resource needs to
// validate itself: look up a Property or Class by its subject URL.
type ClassResolver interface {
	ResolveRequiredProps(classURLs []string) ([]string, error)
	ValidateValue(propertyURL string, v value.Value) error
	ResolveShortname(classURLs []string, shortname string) (string, error)
}

// Resource is a mapping from property URL to Value, tagged with its
// subject URL.
type Resource struct {
	subject string
	props   value.PropVals
}

// New returns an empty Resource for subject. subject must be an absolute
// URL; callers that already validated it (e.g. the store loading from
// disk) may skip re-validating by constructing directly with NewUnchecked.
func New(subject string) (*Resource, error) {
	if err := ValidateSubject(subject); err != nil {
		return nil, err
	}
	return NewUnchecked(subject), nil
}

// ValidateSubject checks that subject is an absolute URL with no query
// string, the rule every commit target must satisfy.
func ValidateSubject(subject string) error {
	return validateSubject(subject)
}

// NewUnchecked builds a Resource without validating subject. Used by
// trusted callers that already know the subject is well-formed (store
// deserialization, bootstrap population).
func NewUnchecked(subject string) *Resource {
	return &Resource{subject: subject, props: value.PropVals{}}
}

func validateSubject(subject string) error {
	u, err := url.Parse(subject)
	if err != nil || !u.IsAbs() {
		return aerrors.Validationf(subject, "subject must be an absolute URL")
	}
	if u.RawQuery != "" {
		return aerrors.Validationf(subject, "subject must not contain a query string")
	}
	return nil
}

// Subject returns the resource's identifying URL.
func (r *Resource) Subject() string { return r.subject }

// Get returns the value at prop, or aerrors.NotFound if absent.
func (r *Resource) Get(prop string) (value.Value, error) {
	v, ok := r.props[prop]
	if !ok {
		return value.Value{}, aerrors.NotFoundf(r.subject, "property %s not set", prop)
	}
	return v, nil
}

// Has reports whether prop is set.
func (r *Resource) Has(prop string) bool {
	_, ok := r.props[prop]
	return ok
}

// PropVals returns the resource's full property map. Callers must not
// mutate the returned map; use Clone for an independent copy.
func (r *Resource) PropVals() value.PropVals { return r.props }

// SetPropval validates v against prop's declared datatype (and, if
// present, allows-only set membership) via resolver, then stores it.
func (r *Resource) SetPropval(prop string, v value.Value, resolver ClassResolver) error {
	if resolver != nil {
		if err := resolver.ValidateValue(prop, v); err != nil {
			return err
		}
	}
	r.props[prop] = v
	return nil
}

// SetPropvalUnsafe stores v at prop without any datatype/allows-only
// validation. Reserved for the bootstrap populator and the commit
// applier's internal working copy, both of which validate via other means
// (schema check phase, literal bootstrap data).
func (r *Resource) SetPropvalUnsafe(prop string, v value.Value) {
	r.props[prop] = v
}

// RemovePropval deletes prop. Removing an absent property is not an
// error.
func (r *Resource) RemovePropval(prop string) {
	delete(r.props, prop)
}

// PushPropval appends subs to the existing ResourceArray at prop, creating
// it if absent. Returns Validation if the existing value at prop is not a
// ResourceArray.
func (r *Resource) PushPropval(prop string, subs ...value.SubResource) error {
	existing, ok := r.props[prop]
	if !ok {
		r.props[prop] = value.Value{Kind: value.ResourceArray, Array: append([]value.SubResource{}, subs...)}
		return nil
	}
	if existing.Kind != value.ResourceArray {
		return aerrors.Validationf(r.subject, "cannot push onto non-array property %s", prop)
	}
	existing.Array = append(existing.Array, subs...)
	r.props[prop] = existing
	return nil
}

// Classes returns the resource's is-a class URLs, or nil if unset.
func (r *Resource) Classes() []string {
	v, ok := r.props[urls.IsA]
	if !ok || v.Kind != value.ResourceArray {
		return nil
	}
	out := make([]string, 0, len(v.Array))
	for _, el := range v.Array {
		if !el.IsNested() {
			out = append(out, el.Subject)
		}
	}
	return out
}

// CheckRequiredProps resolves every class in r.Classes() via resolver and
// asserts that each required property is present and valid.
func (r *Resource) CheckRequiredProps(resolver ClassResolver) error {
	if resolver == nil {
		return nil
	}
	required, err := resolver.ResolveRequiredProps(r.Classes())
	if err != nil {
		return err
	}
	for _, prop := range required {
		v, ok := r.props[prop]
		if !ok {
			return aerrors.Validationf(r.subject, "missing required property %s", prop)
		}
		if err := resolver.ValidateValue(prop, v); err != nil {
			return err
		}
	}
	return nil
}

// ResolveShortname looks up the property named shortname among r's
// classes, searching left-to-right, via resolver.
func (r *Resource) ResolveShortname(shortname string, resolver ClassResolver) (string, error) {
	return resolver.ResolveShortname(r.Classes(), shortname)
}

// ToAtoms flattens the resource into its constituent (subject, property,
// value) triples, the unit added to or removed from the inverted index.
func (r *Resource) ToAtoms() []Atom {
	atoms := make([]Atom, 0, len(r.props))
	for prop, v := range r.props {
		atoms = append(atoms, Atom{Subject: r.subject, Property: prop, Value: v})
	}
	return atoms
}

// Clone returns a deep, independent copy of r.
func (r *Resource) Clone() *Resource {
	c := NewUnchecked(r.subject)
	for k, v := range r.props {
		c.props[k] = cloneValue(v)
	}
	return c
}

func cloneValue(v value.Value) value.Value {
	switch v.Kind {
	case value.ResourceArray:
		arr := make([]value.SubResource, len(v.Array))
		for i, el := range v.Array {
			if el.IsNested() {
				nested := make(value.PropVals, len(el.Nested))
				for k, nv := range el.Nested {
					nested[k] = cloneValue(nv)
				}
				arr[i] = value.SubResource{Nested: nested}
			} else {
				arr[i] = value.SubResource{Subject: el.Subject}
			}
		}
		return value.Value{Kind: value.ResourceArray, Array: arr}
	case value.NestedResource:
		nested := make(value.PropVals, len(v.Nested))
		for k, nv := range v.Nested {
			nested[k] = cloneValue(nv)
		}
		return value.Value{Kind: value.NestedResource, Nested: nested}
	default:
		return v
	}
}
