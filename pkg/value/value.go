// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package value implements the Atomic Data DataType enum and the tagged
// Value union over it, including the per-datatype parse/validate rules.
package value

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"time"

	aerrors "github.com/atomicdata-dev/atomicd/pkg/errors"
)

// DataType is the closed set of value kinds a Property may declare.
type DataType string

const (
	String        DataType = "string"
	Markdown      DataType = "markdown"
	Slug          DataType = "slug"
	Integer       DataType = "integer"
	Float         DataType = "float"
	Boolean       DataType = "boolean"
	Timestamp     DataType = "timestamp"
	AtomicURL     DataType = "atomicURL"
	ResourceArray DataType = "resourceArray"
	Date          DataType = "date"
	NestedResource DataType = "nestedResource"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// SubResource is one element of a ResourceArray value: either a bare
// subject URL or an anonymous nested resource.
type SubResource struct {
	Subject string  // set when this element is a URL reference
	Nested  PropVals // set when this element is an inline nested resource
}

func (s SubResource) IsNested() bool { return s.Nested != nil }

// PropVals is a property-URL-keyed map of values, the shape shared by
// Resource and NestedResource.
type PropVals map[string]Value

// Value is the tagged union carried by every Resource property.
//
// Exactly one of the typed fields is meaningful, selected by Kind. Equality
// between two Values is structural (Equal), not reflect.DeepEqual, because
// ResourceArray/NestedResource contain maps.
type Value struct {
	Kind DataType

	Str   string
	Int   int64
	Flt   float64
	Bool  bool
	Array []SubResource
	Nested PropVals
}

func (v Value) String() string {
	switch v.Kind {
	case String, Markdown, Slug, AtomicURL, Date:
		return v.Str
	case Integer, Timestamp:
		return strconv.FormatInt(v.Int, 10)
	case Float:
		return strconv.FormatFloat(v.Flt, 'g', -1, 64)
	case Boolean:
		if v.Bool {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%+v", v)
	}
}

// Equal reports structural equality between two Values.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case String, Markdown, Slug, AtomicURL, Date:
		return v.Str == o.Str
	case Integer, Timestamp:
		return v.Int == o.Int
	case Float:
		return v.Flt == o.Flt
	case Boolean:
		return v.Bool == o.Bool
	case ResourceArray:
		if len(v.Array) != len(o.Array) {
			return false
		}
		for i := range v.Array {
			a, b := v.Array[i], o.Array[i]
			if a.IsNested() != b.IsNested() {
				return false
			}
			if a.IsNested() {
				if !equalPropVals(a.Nested, b.Nested) {
					return false
				}
			} else if a.Subject != b.Subject {
				return false
			}
		}
		return true
	case NestedResource:
		return equalPropVals(v.Nested, o.Nested)
	default:
		return false
	}
}

func equalPropVals(a, b PropVals) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !av.Equal(bv) {
			return false
		}
	}
	return true
}

// String constructors for every datatype, used by trusted callers (the
// bootstrap populator, the commit applier after Parse has already run).
func NewString(s string) Value    { return Value{Kind: String, Str: s} }
func NewMarkdown(s string) Value  { return Value{Kind: Markdown, Str: s} }
func NewSlug(s string) Value      { return Value{Kind: Slug, Str: s} }
func NewInteger(i int64) Value    { return Value{Kind: Integer, Int: i} }
func NewFloat(f float64) Value    { return Value{Kind: Float, Flt: f} }
func NewBoolean(b bool) Value     { return Value{Kind: Boolean, Bool: b} }
func NewTimestamp(t int64) Value  { return Value{Kind: Timestamp, Int: t} }
func NewAtomicURL(s string) Value { return Value{Kind: AtomicURL, Str: s} }
func NewDate(s string) Value      { return Value{Kind: Date, Str: s} }
func NewResourceArray(subjects ...string) Value {
	arr := make([]SubResource, len(subjects))
	for i, s := range subjects {
		arr[i] = SubResource{Subject: s}
	}
	return Value{Kind: ResourceArray, Array: arr}
}
func NewNested(pv PropVals) Value { return Value{Kind: NestedResource, Nested: pv} }

// Parse validates raw against dt's predicate and returns the typed Value,
// or a Validation error.
func Parse(raw string, dt DataType) (Value, error) {
	switch dt {
	case String, Markdown:
		return Value{Kind: dt, Str: raw}, nil
	case Slug:
		if !slugPattern.MatchString(raw) {
			return Value{}, aerrors.Validationf("", "invalid slug %q: must match %s", raw, slugPattern.String())
		}
		return Value{Kind: Slug, Str: raw}, nil
	case Integer:
		if len(raw) > 1 && raw[0] == '0' {
			return Value{}, aerrors.Validationf("", "invalid integer %q: leading zero", raw)
		}
		if len(raw) > 2 && raw[0] == '-' && raw[1] == '0' {
			return Value{}, aerrors.Validationf("", "invalid integer %q: leading zero", raw)
		}
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Value{}, aerrors.Validationf("", "invalid integer %q: %v", raw, err)
		}
		return Value{Kind: Integer, Int: i}, nil
	case Float:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, aerrors.Validationf("", "invalid float %q: %v", raw, err)
		}
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return Value{}, aerrors.Validationf("", "invalid float %q: must be finite", raw)
		}
		return Value{Kind: Float, Flt: f}, nil
	case Boolean:
		switch raw {
		case "true":
			return Value{Kind: Boolean, Bool: true}, nil
		case "false":
			return Value{Kind: Boolean, Bool: false}, nil
		default:
			return Value{}, aerrors.Validationf("", "invalid boolean %q: must be true or false", raw)
		}
	case Timestamp:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || i < 0 {
			return Value{}, aerrors.Validationf("", "invalid timestamp %q: must be a non-negative integer", raw)
		}
		return Value{Kind: Timestamp, Int: i}, nil
	case AtomicURL:
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() {
			return Value{}, aerrors.Validationf("", "invalid atomic URL %q", raw)
		}
		return Value{Kind: AtomicURL, Str: raw}, nil
	case Date:
		if _, err := time.Parse("2006-01-02", raw); err != nil {
			return Value{}, aerrors.Validationf("", "invalid date %q: %v", raw, err)
		}
		return Value{Kind: Date, Str: raw}, nil
	default:
		return Value{}, aerrors.Validationf("", "datatype %q cannot be parsed from a scalar string", dt)
	}
}

// ValidateResourceArray checks that every element of arr is well-formed:
// a URL string reference or a nested propvals map.
func ValidateResourceArray(arr []SubResource) error {
	for _, el := range arr {
		if el.IsNested() {
			continue
		}
		if _, err := url.Parse(el.Subject); err != nil {
			return aerrors.Validationf("", "invalid resource array element %q: %v", el.Subject, err)
		}
	}
	return nil
}
