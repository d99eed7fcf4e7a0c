// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package schema implements Class and Property: the declared shapes a
// Resource's is-a composition is checked against.
package schema

import (
	aerrors "github.com/atomicdata-dev/atomicd/pkg/errors"
	"github.com/atomicdata-dev/atomicd/pkg/resource"
	"github.com/atomicdata-dev/atomicd/pkg/urls"
	"github.com/atomicdata-dev/atomicd/pkg/value"
)

// Property is a declared edge type.
type Property struct {
	Subject     string
	Shortname   string
	Datatype    value.DataType
	Description string
	// ClassType restricts the classes an AtomicURL/ResourceArray value may
	// point at. Empty means unrestricted.
	ClassType string
	// AllowsOnly, when non-empty, is the closed set of values this
	// property may hold.
	AllowsOnly []value.Value
}

// Class declares requires/recommends property lists. Classes do not
// inherit; a Resource composes classes by being is-a many of them.
type Class struct {
	Subject     string
	Shortname   string
	Description string
	Requires    []string // property URLs
	Recommends  []string // property URLs
}

// Store is the subset of pkg/store.Store that schema lookups need:
// resolving a class or property subject to its definition.
type Store interface {
	GetClass(subject string) (*Class, bool)
	GetProperty(subject string) (*Property, bool)
}

// Resolver implements resource.ClassResolver against a Store.
type Resolver struct {
	Store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{Store: store}
}

// ResolveRequiredProps unions the requires lists of every class in
// classURLs.
func (r *Resolver) ResolveRequiredProps(classURLs []string) ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	for _, cu := range classURLs {
		class, ok := r.Store.GetClass(cu)
		if !ok {
			return nil, aerrors.Validationf(cu, "unknown class")
		}
		for _, p := range class.Requires {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out, nil
}

// ResolveShortname searches classURLs left-to-right, within each class
// checking Requires then Recommends, for a property whose Shortname
// matches.
func (r *Resolver) ResolveShortname(classURLs []string, shortname string) (string, error) {
	for _, cu := range classURLs {
		class, ok := r.Store.GetClass(cu)
		if !ok {
			continue
		}
		for _, list := range [][]string{class.Requires, class.Recommends} {
			for _, propURL := range list {
				prop, ok := r.Store.GetProperty(propURL)
				if ok && prop.Shortname == shortname {
					return propURL, nil
				}
			}
		}
	}
	return "", aerrors.NotFoundf(shortname, "no property with shortname %q among classes %v", shortname, classURLs)
}

// ValidateValue checks v against propertyURL's declared datatype and, if
// present, allows-only membership.
func (r *Resolver) ValidateValue(propertyURL string, v value.Value) error {
	if propertyURL == urls.IsA {
		// isA itself is bootstrap-defined as a resourceArray of class
		// URLs; every store has it before any Property resource exists.
		if v.Kind != value.ResourceArray {
			return aerrors.Validationf(propertyURL, "isA must be a resource array")
		}
		return nil
	}
	prop, ok := r.Store.GetProperty(propertyURL)
	if !ok {
		return aerrors.Validationf(propertyURL, "unknown property")
	}
	if v.Kind != prop.Datatype {
		return aerrors.Validationf(propertyURL, "value has datatype %s, property requires %s", v.Kind, prop.Datatype)
	}
	if len(prop.AllowsOnly) > 0 {
		allowed := false
		for _, want := range prop.AllowsOnly {
			if v.Equal(want) {
				allowed = true
				break
			}
		}
		if !allowed {
			return aerrors.Validationf(propertyURL, "value %v is not in the allowed set for this property", v)
		}
	}
	return nil
}

// ToResource renders a Property as an Atomic Data resource.
func (p *Property) ToResource() (subject string, propvals value.PropVals) {
	pv := value.PropVals{
		urls.IsA:         value.NewResourceArray(urls.Property),
		urls.Shortname:   value.NewSlug(p.Shortname),
		urls.Datatype:    value.NewAtomicURL(datatypeURL(p.Datatype)),
		urls.Description: value.NewMarkdown(p.Description),
	}
	if p.ClassType != "" {
		pv[urls.ClassType] = value.NewAtomicURL(p.ClassType)
	}
	return p.Subject, pv
}

// ToResource renders a Class as an Atomic Data resource.
func (c *Class) ToResource() (subject string, propvals value.PropVals) {
	pv := value.PropVals{
		urls.IsA:         value.NewResourceArray(urls.Class),
		urls.Shortname:   value.NewSlug(c.Shortname),
		urls.Description: value.NewMarkdown(c.Description),
	}
	if len(c.Requires) > 0 {
		pv[urls.Requires] = value.NewResourceArray(c.Requires...)
	}
	if len(c.Recommends) > 0 {
		pv[urls.Recommends] = value.NewResourceArray(c.Recommends...)
	}
	return c.Subject, pv
}

// ResourceGetter is the subset of store.Indexed schema lookups need:
// every Property and Class is an ordinary resource living in the same
// store, there being no separate schema keyspace.
type ResourceGetter interface {
	GetResource(subject string) (*resource.Resource, error)
}

// StoreAdapter implements Store by decoding Property/Class resources on
// demand from a backing ResourceGetter, rather than keeping a separate
// schema cache: a Property or Class is just a resource with the
// conventional shape ToResource produces.
type StoreAdapter struct {
	Resources ResourceGetter
}

func NewStoreAdapter(resources ResourceGetter) *StoreAdapter {
	return &StoreAdapter{Resources: resources}
}

func (a *StoreAdapter) GetClass(subject string) (*Class, bool) {
	r, err := a.Resources.GetResource(subject)
	if err != nil {
		return nil, false
	}
	c := &Class{Subject: subject}
	if v, err := r.Get(urls.Shortname); err == nil {
		c.Shortname = v.Str
	}
	if v, err := r.Get(urls.Description); err == nil {
		c.Description = v.Str
	}
	if v, err := r.Get(urls.Requires); err == nil {
		c.Requires = subjectsOf(v)
	}
	if v, err := r.Get(urls.Recommends); err == nil {
		c.Recommends = subjectsOf(v)
	}
	return c, true
}

func (a *StoreAdapter) GetProperty(subject string) (*Property, bool) {
	r, err := a.Resources.GetResource(subject)
	if err != nil {
		return nil, false
	}
	p := &Property{Subject: subject}
	if v, err := r.Get(urls.Shortname); err == nil {
		p.Shortname = v.Str
	}
	if v, err := r.Get(urls.Description); err == nil {
		p.Description = v.Str
	}
	if v, err := r.Get(urls.ClassType); err == nil {
		p.ClassType = v.Str
	}
	if v, err := r.Get(urls.Datatype); err == nil {
		p.Datatype = datatypeFromURL(v.Str)
	}
	if v, err := r.Get(urls.AllowsOnly); err == nil {
		for _, sub := range v.Array {
			if sub.IsNested() {
				continue
			}
			allowed, err := value.Parse(sub.Subject, p.Datatype)
			if err != nil {
				continue
			}
			p.AllowsOnly = append(p.AllowsOnly, allowed)
		}
	}
	return p, true
}

func subjectsOf(v value.Value) []string {
	if v.Kind != value.ResourceArray {
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

func datatypeFromURL(u string) value.DataType {
	switch u {
	case urls.DatatypeString:
		return value.String
	case urls.DatatypeMarkdown:
		return value.Markdown
	case urls.DatatypeSlug:
		return value.Slug
	case urls.DatatypeInteger:
		return value.Integer
	case urls.DatatypeFloat:
		return value.Float
	case urls.DatatypeBoolean:
		return value.Boolean
	case urls.DatatypeTimestamp:
		return value.Timestamp
	case urls.DatatypeAtomicURL:
		return value.AtomicURL
	case urls.DatatypeResourceArray:
		return value.ResourceArray
	case urls.DatatypeDate:
		return value.Date
	case urls.DatatypeNestedResource:
		return value.NestedResource
	default:
		return ""
	}
}

func datatypeURL(dt value.DataType) string {
	switch dt {
	case value.String:
		return urls.DatatypeString
	case value.Markdown:
		return urls.DatatypeMarkdown
	case value.Slug:
		return urls.DatatypeSlug
	case value.Integer:
		return urls.DatatypeInteger
	case value.Float:
		return urls.DatatypeFloat
	case value.Boolean:
		return urls.DatatypeBoolean
	case value.Timestamp:
		return urls.DatatypeTimestamp
	case value.AtomicURL:
		return urls.DatatypeAtomicURL
	case value.ResourceArray:
		return urls.DatatypeResourceArray
	case value.Date:
		return urls.DatatypeDate
	case value.NestedResource:
		return urls.DatatypeNestedResource
	default:
		return ""
	}
}
