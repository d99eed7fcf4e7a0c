// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package path_test

import (
	"testing"

	aerrors "github.com/atomicdata-dev/atomicd/pkg/errors"
	"github.com/atomicdata-dev/atomicd/pkg/path"
	"github.com/atomicdata-dev/atomicd/pkg/resource"
	"github.com/atomicdata-dev/atomicd/pkg/store"
	"github.com/atomicdata-dev/atomicd/pkg/store/memstore"
	"github.com/atomicdata-dev/atomicd/pkg/urls"
	"github.com/atomicdata-dev/atomicd/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nameProp = "https://example.com/properties/name"
const friendsProp = "https://example.com/properties/friends"
const bestFriendProp = "https://example.com/properties/bestFriend"

type shortnames struct{}

func (shortnames) ResolveShortname(classURLs []string, shortname string) (string, error) {
	switch shortname {
	case "name":
		return nameProp, nil
	case "friends":
		return friendsProp, nil
	case "bestFriend":
		return bestFriendProp, nil
	}
	return "", aerrors.NotFoundf(shortname, "no property with shortname %q", shortname)
}

type bookmarkMapping map[string]string

func (m bookmarkMapping) Resolve(token string) (string, bool) {
	s, ok := m[token]
	return s, ok
}

func seedAlice(t *testing.T, s store.Store) {
	t.Helper()
	alice := resource.NewUnchecked("https://example.com/agents/alice")
	alice.SetPropvalUnsafe(nameProp, value.NewString("Alice"))
	alice.SetPropvalUnsafe(friendsProp, value.NewResourceArray("https://example.com/agents/bob"))
	require.NoError(t, s.AddResourceOpts(alice, store.AddResourceOpts{UpdateIndex: true, Overwrite: true}))

	bob := resource.NewUnchecked("https://example.com/agents/bob")
	bob.SetPropvalUnsafe(nameProp, value.NewString("Bob"))
	require.NoError(t, s.AddResourceOpts(bob, store.AddResourceOpts{UpdateIndex: true, Overwrite: true}))
}

func TestResolve_BareSubject(t *testing.T) {
	s := memstore.New("https://example.com", "https://example.com")
	seedAlice(t, s)

	ret, err := path.Resolve(s, shortnames{}, nil, "https://example.com/agents/alice")
	require.NoError(t, err)
	assert.False(t, ret.IsAtom)
	assert.Equal(t, "https://example.com/agents/alice", ret.Subject)
}

func TestResolve_ShortnameToScalarValue(t *testing.T) {
	s := memstore.New("https://example.com", "https://example.com")
	seedAlice(t, s)

	ret, err := path.Resolve(s, shortnames{}, nil, "https://example.com/agents/alice name")
	require.NoError(t, err)
	assert.True(t, ret.IsAtom)
	assert.Equal(t, "Alice", ret.Atom.Value.Str)
}

func TestResolve_ShortnameThenIndexIntoArray(t *testing.T) {
	s := memstore.New("https://example.com", "https://example.com")
	seedAlice(t, s)

	ret, err := path.Resolve(s, shortnames{}, nil, "https://example.com/agents/alice friends 0")
	require.NoError(t, err)
	assert.False(t, ret.IsAtom)
	assert.Equal(t, "https://example.com/agents/bob", ret.Subject)
}

func TestResolve_ChainedShortnamesAcrossResources(t *testing.T) {
	s := memstore.New("https://example.com", "https://example.com")
	seedAlice(t, s)

	ret, err := path.Resolve(s, shortnames{}, nil, "https://example.com/agents/alice friends 0 name")
	require.NoError(t, err)
	assert.True(t, ret.IsAtom)
	assert.Equal(t, "Bob", ret.Atom.Value.Str)
}

func TestResolve_BookmarkMapping(t *testing.T) {
	s := memstore.New("https://example.com", "https://example.com")
	seedAlice(t, s)

	mapping := bookmarkMapping{"alice": "https://example.com/agents/alice"}
	ret, err := path.Resolve(s, shortnames{}, mapping, "alice name")
	require.NoError(t, err)
	assert.Equal(t, "Alice", ret.Atom.Value.Str)
}

func TestResolve_UnknownShortnameErrors(t *testing.T) {
	s := memstore.New("https://example.com", "https://example.com")
	seedAlice(t, s)

	_, err := path.Resolve(s, shortnames{}, nil, "https://example.com/agents/alice nonexistent")
	assert.Error(t, err)
}

func TestResolve_IndexOutOfRangeErrors(t *testing.T) {
	s := memstore.New("https://example.com", "https://example.com")
	seedAlice(t, s)

	_, err := path.Resolve(s, shortnames{}, nil, "https://example.com/agents/alice friends 5")
	assert.Equal(t, aerrors.Validation, aerrors.KindOf(err))
}

func TestResolve_EmptyExpressionErrors(t *testing.T) {
	s := memstore.New("https://example.com", "https://example.com")
	_, err := path.Resolve(s, shortnames{}, nil, "   ")
	assert.Error(t, err)
}

func TestResolve_UnmappedFirstTokenErrors(t *testing.T) {
	s := memstore.New("https://example.com", "https://example.com")
	_, err := path.Resolve(s, shortnames{}, bookmarkMapping{}, "unknown-bookmark")
	assert.Equal(t, aerrors.NotFound, aerrors.KindOf(err))
}

func TestResolve_NestedResourceArrayElement(t *testing.T) {
	s := memstore.New("https://example.com", "https://example.com")
	r := resource.NewUnchecked("https://example.com/agents/carol")
	r.SetPropvalUnsafe(friendsProp, value.Value{
		Kind: value.ResourceArray,
		Array: []value.SubResource{
			{Nested: value.PropVals{nameProp: value.NewString("Inline Friend")}},
		},
	})
	require.NoError(t, s.AddResourceOpts(r, store.AddResourceOpts{UpdateIndex: true, Overwrite: true}))

	ret, err := path.Resolve(s, shortnames{}, nil, "https://example.com/agents/carol friends 0 name")
	require.NoError(t, err)
	assert.True(t, ret.IsAtom)
	assert.Equal(t, "Inline Friend", ret.Atom.Value.Str)
}

func TestResolve_ShortnameOnAtomicURLPropertyIsTerminal(t *testing.T) {
	s := memstore.New("https://example.com", "https://example.com")
	seedAlice(t, s)

	alice, err := s.GetResource("https://example.com/agents/alice")
	require.NoError(t, err)
	alice.SetPropvalUnsafe(bestFriendProp, value.NewAtomicURL("https://example.com/agents/bob"))
	require.NoError(t, s.AddResourceOpts(alice, store.AddResourceOpts{UpdateIndex: true, Overwrite: true}))

	ret, err := path.Resolve(s, shortnames{}, nil, "https://example.com/agents/alice bestFriend")
	require.NoError(t, err)
	assert.True(t, ret.IsAtom, "a shortname landing on an AtomicURL property must be terminal, not auto-dereferenced")
	assert.Equal(t, "https://example.com/agents/bob", ret.Atom.Value.Str)

	_, err = path.Resolve(s, shortnames{}, nil, "https://example.com/agents/alice bestFriend name")
	assert.Error(t, err, "a further shortname step after an AtomicURL value must fail, not resolve into Bob's resource")
}

func TestResolve_ClassPropUnused(t *testing.T) {
	// Sanity check that a bare-subject path resolves for a resource
	// carrying isA; no shortname step, and so no class lookup, is taken.
	s := memstore.New("https://example.com", "https://example.com")
	r := resource.NewUnchecked("https://example.com/agents/dave")
	r.SetPropvalUnsafe(urls.IsA, value.NewResourceArray(urls.Agent))
	require.NoError(t, s.AddResourceOpts(r, store.AddResourceOpts{UpdateIndex: true, Overwrite: true}))

	ret, err := path.Resolve(s, shortnames{}, nil, "https://example.com/agents/dave")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/agents/dave", ret.Subject)
}
