// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package memstore implements an in-memory, hash-indexed Store backend.
// It is the reference implementation, whose test cases badgerstore's
// tests repeat against the on-disk backend, and is suitable for tests
// and client-only (self URL "local") usage.
package memstore

import (
	"context"
	"sync"

	aerrors "github.com/atomicdata-dev/atomicd/pkg/errors"
	"github.com/atomicdata-dev/atomicd/pkg/query"
	"github.com/atomicdata-dev/atomicd/pkg/resource"
	"github.com/atomicdata-dev/atomicd/pkg/schema"
	"github.com/atomicdata-dev/atomicd/pkg/store"
	"github.com/atomicdata-dev/atomicd/pkg/urls"
	"github.com/atomicdata-dev/atomicd/pkg/value"
)

type Store struct {
	mu sync.RWMutex

	serverURL string
	selfURL   string

	resources map[string]*resource.Resource
	valueIdx  map[string]map[string]struct{} // "property\x00indexkey" -> set<subject>
	classIdx  map[string]map[string]struct{} // classURL -> set<subject>

	subscribers []chan store.Notification
	closed      bool
}

// New returns an empty memstore. serverURL mints commit URLs; selfURL is
// the host used by IsExternalSubject (pass store.LocalSelfURL for a
// client-only store).
func New(serverURL, selfURL string) *Store {
	return &Store{
		serverURL: serverURL,
		selfURL:   selfURL,
		resources: map[string]*resource.Resource{},
		valueIdx:  map[string]map[string]struct{}{},
		classIdx:  map[string]map[string]struct{}{},
	}
}

func valueIdxKey(property string, v value.Value) string {
	return property + "\x00" + store.ValueIndexKey(v)
}

func (s *Store) GetResource(subject string) (*resource.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resources[subject]
	if !ok {
		return nil, aerrors.NotFoundf(subject, "resource not found")
	}
	return r.Clone(), nil
}

// lockedResourceGetter reads straight from s.resources, bypassing s.mu:
// it is only ever used while the caller already holds s.mu, e.g. the
// CheckRequired validation inside AddResourceOpts.
type lockedResourceGetter struct {
	resources map[string]*resource.Resource
}

func (g lockedResourceGetter) GetResource(subject string) (*resource.Resource, error) {
	r, ok := g.resources[subject]
	if !ok {
		return nil, aerrors.NotFoundf(subject, "resource not found")
	}
	return r, nil
}

func (s *Store) AddResourceOpts(r *resource.Resource, opts store.AddResourceOpts) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.resources[r.Subject()]
	if exists && !opts.Overwrite {
		return aerrors.Conflictf(r.Subject(), "subject already exists")
	}

	if opts.CheckRequired {
		resolver := schema.NewResolver(schema.NewStoreAdapter(lockedResourceGetter{s.resources}))
		if err := r.CheckRequiredProps(resolver); err != nil {
			return err
		}
	}

	if opts.UpdateIndex {
		if exists {
			for _, a := range existing.ToAtoms() {
				s.removeAtomLocked(a)
			}
		}
		for _, a := range r.ToAtoms() {
			s.addAtomLocked(a)
		}
	}

	s.resources[r.Subject()] = r.Clone()
	return nil
}

func (s *Store) RemoveResource(subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resources[subject]
	if !ok {
		return aerrors.NotFoundf(subject, "resource not found")
	}
	for _, a := range r.ToAtoms() {
		s.removeAtomLocked(a)
	}
	delete(s.resources, subject)
	return nil
}

func (s *Store) AllResources(includeExternal bool) ([]*resource.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*resource.Resource, 0, len(s.resources))
	for subject, r := range s.resources {
		if !includeExternal && s.isExternalLocked(subject) {
			continue
		}
		out = append(out, r.Clone())
	}
	return out, nil
}

func (s *Store) AddAtomToIndex(atom resource.Atom) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addAtomLocked(atom)
	return nil
}

func (s *Store) RemoveAtomFromIndex(atom resource.Atom) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeAtomLocked(atom)
	return nil
}

func (s *Store) addAtomLocked(atom resource.Atom) {
	key := valueIdxKey(atom.Property, atom.Value)
	set, ok := s.valueIdx[key]
	if !ok {
		set = map[string]struct{}{}
		s.valueIdx[key] = set
	}
	set[atom.Subject] = struct{}{}

	if atom.Property == urls.IsA && atom.Value.Kind == value.ResourceArray {
		for _, el := range atom.Value.Array {
			if el.IsNested() {
				continue
			}
			cs, ok := s.classIdx[el.Subject]
			if !ok {
				cs = map[string]struct{}{}
				s.classIdx[el.Subject] = cs
			}
			cs[atom.Subject] = struct{}{}
		}
	}
}

func (s *Store) removeAtomLocked(atom resource.Atom) {
	key := valueIdxKey(atom.Property, atom.Value)
	if set, ok := s.valueIdx[key]; ok {
		delete(set, atom.Subject)
		if len(set) == 0 {
			delete(s.valueIdx, key)
		}
	}

	if atom.Property == urls.IsA && atom.Value.Kind == value.ResourceArray {
		for _, el := range atom.Value.Array {
			if el.IsNested() {
				continue
			}
			if cs, ok := s.classIdx[el.Subject]; ok {
				delete(cs, atom.Subject)
				if len(cs) == 0 {
					delete(s.classIdx, el.Subject)
				}
			}
		}
	}
}

func (s *Store) SubjectsByValue(property string, v value.Value) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.valueIdx[valueIdxKey(property, v)]
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(set))
	for subj := range set {
		out = append(out, subj)
	}
	return out, nil
}

func (s *Store) SubjectsByClass(classURL string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.classIdx[classURL]
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(set))
	for subj := range set {
		out = append(out, subj)
	}
	return out, nil
}

func (s *Store) Query(ctx context.Context, q store.Query, forAgent string) (store.QueryResult, error) {
	return query.Execute(ctx, s, q, forAgent)
}

func (s *Store) GetServerURL() string { return s.serverURL }
func (s *Store) GetSelfURL() string   { return s.selfURL }

func (s *Store) IsExternalSubject(subject string) bool {
	return store.IsExternalSubject(subject, s.selfURL)
}

func (s *Store) isExternalLocked(subject string) bool {
	return store.IsExternalSubject(subject, s.selfURL)
}

func (s *Store) HandleCommit(n store.Notification) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- n:
		default:
			// Slow subscriber: drop rather than block the committing
			// goroutine. pkg/notify.Fanout drains its channel into a
			// retrying queue, but a notification dropped here never
			// reaches it.
		}
	}
	return nil
}

func (s *Store) Subscribe() <-chan store.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan store.Notification, 64)
	if s.closed {
		close(ch)
		return ch
	}
	s.subscribers = append(s.subscribers, ch)
	return ch
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = nil
	return nil
}

var _ store.Store = (*Store)(nil)
