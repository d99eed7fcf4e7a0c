// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package memstore_test

import (
	"testing"

	aerrors "github.com/atomicdata-dev/atomicd/pkg/errors"
	"github.com/atomicdata-dev/atomicd/pkg/populate"
	"github.com/atomicdata-dev/atomicd/pkg/resource"
	"github.com/atomicdata-dev/atomicd/pkg/store"
	"github.com/atomicdata-dev/atomicd/pkg/store/memstore"
	"github.com/atomicdata-dev/atomicd/pkg/urls"
	"github.com/atomicdata-dev/atomicd/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResource(subject string, class string) *resource.Resource {
	r := resource.NewUnchecked(subject)
	r.SetPropvalUnsafe(urls.Name, value.NewString("x"))
	if class != "" {
		r.SetPropvalUnsafe(urls.IsA, value.NewResourceArray(class))
	}
	return r
}

func TestAddResourceOpts_RejectsOverwriteWithoutFlag(t *testing.T) {
	s := memstore.New("https://node.example.com", "https://example.com")
	r := newResource("https://node.example.com/a", "")
	require.NoError(t, s.AddResourceOpts(r, store.AddResourceOpts{UpdateIndex: true}))

	err := s.AddResourceOpts(r, store.AddResourceOpts{UpdateIndex: true})
	assert.Equal(t, aerrors.Conflict, aerrors.KindOf(err))
}

func TestAddResourceOpts_OverwriteReplacesIndexEntries(t *testing.T) {
	s := memstore.New("https://node.example.com", "https://example.com")
	subject := "https://node.example.com/a"
	require.NoError(t, s.AddResourceOpts(newResource(subject, urls.Agent), store.AddResourceOpts{UpdateIndex: true}))

	replaced := resource.NewUnchecked(subject)
	replaced.SetPropvalUnsafe(urls.Name, value.NewString("y"))
	require.NoError(t, s.AddResourceOpts(replaced, store.AddResourceOpts{UpdateIndex: true, Overwrite: true}))

	subjects, err := s.SubjectsByClass(urls.Agent)
	require.NoError(t, err)
	assert.Empty(t, subjects, "overwriting without isA must drop the old class index entry")

	byName, err := s.SubjectsByValue(urls.Name, value.NewString("y"))
	require.NoError(t, err)
	assert.Equal(t, []string{subject}, byName)
}

func TestAddResourceOpts_CheckRequiredRejectsMissingRequiredProperty(t *testing.T) {
	s := memstore.New("https://node.example.com", "https://example.com")
	require.NoError(t, populate.BaseModels(s))

	agent := resource.NewUnchecked("https://node.example.com/agents/a")
	agent.SetPropvalUnsafe(urls.IsA, value.NewResourceArray(urls.Agent))
	// publicKey, required by the agent class, is deliberately omitted.

	err := s.AddResourceOpts(agent, store.AddResourceOpts{UpdateIndex: true, CheckRequired: true})
	assert.Equal(t, aerrors.Validation, aerrors.KindOf(err))
}

func TestAddResourceOpts_CheckRequiredAcceptsCompleteResource(t *testing.T) {
	s := memstore.New("https://node.example.com", "https://example.com")
	require.NoError(t, populate.BaseModels(s))

	agent := resource.NewUnchecked("https://node.example.com/agents/a")
	agent.SetPropvalUnsafe(urls.IsA, value.NewResourceArray(urls.Agent))
	agent.SetPropvalUnsafe(urls.PublicKey, value.NewString("abc"))

	assert.NoError(t, s.AddResourceOpts(agent, store.AddResourceOpts{UpdateIndex: true, CheckRequired: true}))
}

func TestGetResource_NotFound(t *testing.T) {
	s := memstore.New("https://node.example.com", "https://example.com")
	_, err := s.GetResource("https://node.example.com/missing")
	assert.Equal(t, aerrors.NotFound, aerrors.KindOf(err))
}

func TestRemoveResource_DropsFromIndexes(t *testing.T) {
	s := memstore.New("https://node.example.com", "https://example.com")
	subject := "https://node.example.com/a"
	require.NoError(t, s.AddResourceOpts(newResource(subject, urls.Agent), store.AddResourceOpts{UpdateIndex: true}))
	require.NoError(t, s.RemoveResource(subject))

	_, err := s.GetResource(subject)
	assert.Equal(t, aerrors.NotFound, aerrors.KindOf(err))

	subjects, err := s.SubjectsByClass(urls.Agent)
	require.NoError(t, err)
	assert.Empty(t, subjects)
}

func TestAllResources_ExcludesExternalByDefault(t *testing.T) {
	s := memstore.New("https://node.example.com", "https://example.com")
	require.NoError(t, s.AddResourceOpts(newResource("https://node.example.com/internal", ""), store.AddResourceOpts{UpdateIndex: true}))
	require.NoError(t, s.AddResourceOpts(newResource("https://other.org/external", ""), store.AddResourceOpts{UpdateIndex: true}))

	internalOnly, err := s.AllResources(false)
	require.NoError(t, err)
	require.Len(t, internalOnly, 1)
	assert.Equal(t, "https://node.example.com/internal", internalOnly[0].Subject())

	all, err := s.AllResources(true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGetServerURLAndSelfURL(t *testing.T) {
	s := memstore.New("https://node.example.com", "https://example.com")
	assert.Equal(t, "https://node.example.com", s.GetServerURL())
	assert.Equal(t, "https://example.com", s.GetSelfURL())
}

func TestIsExternalSubject_DelegatesToSharedHelper(t *testing.T) {
	s := memstore.New("https://node.example.com", "https://example.com")
	assert.False(t, s.IsExternalSubject("https://node.example.com/a"))
	assert.True(t, s.IsExternalSubject("https://other.org/a"))
}

func TestSubscribe_ReceivesHandleCommitNotifications(t *testing.T) {
	s := memstore.New("https://node.example.com", "https://example.com")
	ch := s.Subscribe()

	n := store.Notification{Subject: "https://node.example.com/a", CommitURL: "https://node.example.com/commits/1", IsNew: true}
	require.NoError(t, s.HandleCommit(n))

	select {
	case got := <-ch:
		assert.Equal(t, n.Subject, got.Subject)
	default:
		t.Fatal("expected a buffered notification")
	}
}

func TestClose_ClosesSubscriberChannels(t *testing.T) {
	s := memstore.New("https://node.example.com", "https://example.com")
	ch := s.Subscribe()
	require.NoError(t, s.Close())

	_, open := <-ch
	assert.False(t, open)
	assert.NoError(t, s.Close(), "closing twice must be a no-op")
}

func TestSubscribe_AfterCloseReturnsClosedChannel(t *testing.T) {
	s := memstore.New("https://node.example.com", "https://example.com")
	require.NoError(t, s.Close())

	ch := s.Subscribe()
	_, open := <-ch
	assert.False(t, open)
}
