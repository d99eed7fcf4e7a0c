// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package query_test

import (
	"context"
	"testing"

	"github.com/atomicdata-dev/atomicd/pkg/query"
	"github.com/atomicdata-dev/atomicd/pkg/resource"
	"github.com/atomicdata-dev/atomicd/pkg/store"
	"github.com/atomicdata-dev/atomicd/pkg/store/memstore"
	"github.com/atomicdata-dev/atomicd/pkg/urls"
	"github.com/atomicdata-dev/atomicd/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPublic = urls.PublicAgent

func seedResource(t *testing.T, s store.Store, subject, name string, class string) {
	t.Helper()
	r := resource.NewUnchecked(subject)
	r.SetPropvalUnsafe(urls.Name, value.NewString(name))
	r.SetPropvalUnsafe(urls.Read, value.NewResourceArray(testPublic))
	if class != "" {
		r.SetPropvalUnsafe(urls.IsA, value.NewResourceArray(class))
	}
	require.NoError(t, s.AddResourceOpts(r, store.AddResourceOpts{UpdateIndex: true, Overwrite: true}))
}

func TestExecute_ByClass(t *testing.T) {
	s := memstore.New("https://node.example.com", "https://example.com")
	seedResource(t, s, "https://node.example.com/a", "Alice", urls.Agent)
	seedResource(t, s, "https://node.example.com/b", "Bob", urls.Drive)

	result, err := query.Execute(context.Background(), s, store.Query{Class: urls.Agent}, testPublic)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://node.example.com/a"}, result.Subjects)
}

func TestExecute_ByPropertyValue(t *testing.T) {
	s := memstore.New("https://node.example.com", "https://example.com")
	seedResource(t, s, "https://node.example.com/a", "Alice", "")
	seedResource(t, s, "https://node.example.com/b", "Bob", "")

	v := value.NewString("Bob")
	result, err := query.Execute(context.Background(), s, store.Query{Property: urls.Name, Value: &v}, testPublic)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://node.example.com/b"}, result.Subjects)
}

func TestExecute_ExcludesUnauthorized(t *testing.T) {
	s := memstore.New("https://node.example.com", "https://example.com")
	r := resource.NewUnchecked("https://node.example.com/private")
	r.SetPropvalUnsafe(urls.Name, value.NewString("secret"))
	require.NoError(t, s.AddResourceOpts(r, store.AddResourceOpts{UpdateIndex: true, Overwrite: true}))

	result, err := query.Execute(context.Background(), s, store.Query{}, "https://node.example.com/agents/stranger")
	require.NoError(t, err)
	assert.Empty(t, result.Subjects)
}

func TestExecute_SortAndPaginate(t *testing.T) {
	s := memstore.New("https://node.example.com", "https://example.com")
	seedResource(t, s, "https://node.example.com/a", "Charlie", "")
	seedResource(t, s, "https://node.example.com/b", "Alice", "")
	seedResource(t, s, "https://node.example.com/c", "Bob", "")

	result, err := query.Execute(context.Background(), s, store.Query{SortBy: urls.Name, Limit: 2}, testPublic)
	require.NoError(t, err)
	require.Len(t, result.Subjects, 2)
	assert.Equal(t, 3, result.Count, "Count reflects the pre-pagination total")
	assert.Equal(t, "https://node.example.com/b", result.Subjects[0]) // Alice
	assert.Equal(t, "https://node.example.com/c", result.Subjects[1]) // Bob
}

func TestExecute_SortDescending(t *testing.T) {
	s := memstore.New("https://node.example.com", "https://example.com")
	seedResource(t, s, "https://node.example.com/a", "Alice", "")
	seedResource(t, s, "https://node.example.com/b", "Bob", "")

	result, err := query.Execute(context.Background(), s, store.Query{SortBy: urls.Name, SortDesc: true}, testPublic)
	require.NoError(t, err)
	require.Len(t, result.Subjects, 2)
	assert.Equal(t, "https://node.example.com/b", result.Subjects[0])
}

func TestExecute_ManyCandidatesUsesConcurrentPath(t *testing.T) {
	s := memstore.New("https://node.example.com", "https://example.com")
	for i := 0; i < 50; i++ {
		seedResource(t, s, "https://node.example.com/r"+string(rune('a'+i%26))+string(rune('0'+i/26)), "name", "")
	}

	result, err := query.Execute(context.Background(), s, store.Query{}, testPublic)
	require.NoError(t, err)
	assert.Len(t, result.Subjects, 50)
}
