// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package badgerstore implements the Store contract on top of an
// on-disk, ordered badger.DB: one transaction writes both a resource
// and its inverted-index entries, and posting lists are kept sorted so
// membership updates are binary searches rather than full scans.
package badgerstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"slices"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	aerrors "github.com/atomicdata-dev/atomicd/pkg/errors"
	"github.com/atomicdata-dev/atomicd/pkg/query"
	"github.com/atomicdata-dev/atomicd/pkg/resource"
	"github.com/atomicdata-dev/atomicd/pkg/schema"
	"github.com/atomicdata-dev/atomicd/pkg/store"
	"github.com/atomicdata-dev/atomicd/pkg/urls"
	"github.com/atomicdata-dev/atomicd/pkg/value"
)

var (
	resourcePrefix = []byte("rsrc")
	valueIdxPrefix = []byte("idx/val")
	classIdxPrefix = []byte("idx/class")
)

// Store is an on-disk Store backend. The zero value is not usable; build
// one with Open.
type Store struct {
	db *badger.DB

	serverURL string
	selfURL   string

	subMu       sync.Mutex
	subscribers []chan store.Notification
	closed      bool
}

// Open opens (creating if absent) a badger database at path. An empty
// path opens an in-memory database, useful for tests that want
// badgerstore's exact on-disk encoding without a filesystem dependency.
func Open(path, serverURL, selfURL string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, aerrors.Internalf("", "open badger store: %v", err)
	}
	return &Store{db: db, serverURL: serverURL, selfURL: selfURL}, nil
}

func buildKey(parts ...[]byte) []byte {
	var b bytes.Buffer
	for _, p := range parts {
		if len(p) == 0 {
			continue
		}
		b.WriteByte('/')
		b.Write(p)
	}
	return b.Bytes()
}

func resourceKeyFor(subject string) []byte {
	return buildKey(resourcePrefix, []byte(subject))
}

// valueIndexKey hashes the (property, value) pair into a bounded-length
// key; the posting list it addresses holds the actual subject strings,
// so the hash need not be reversible.
func valueIndexKey(property string, v value.Value) []byte {
	h := sha256.Sum256([]byte(property + "\x00" + store.ValueIndexKey(v)))
	return buildKey(valueIdxPrefix, h[:])
}

func classIndexKey(classURL string) []byte {
	h := sha256.Sum256([]byte(classURL))
	return buildKey(classIdxPrefix, h[:])
}

type storedResource struct {
	Props value.PropVals `json:"props"`
}

func encodeResource(r *resource.Resource) ([]byte, error) {
	data, err := json.Marshal(storedResource{Props: r.PropVals()})
	if err != nil {
		return nil, aerrors.Internalf(r.Subject(), "encode resource: %v", err)
	}
	return data, nil
}

func decodeResource(subject string, data []byte) (*resource.Resource, error) {
	var sr storedResource
	if err := json.Unmarshal(data, &sr); err != nil {
		return nil, aerrors.Internalf(subject, "decode resource: %v", err)
	}
	r := resource.NewUnchecked(subject)
	for prop, v := range sr.Props {
		r.SetPropvalUnsafe(prop, v)
	}
	return r, nil
}

func (s *Store) GetResource(subject string) (*resource.Resource, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(resourceKeyFor(subject))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, aerrors.NotFoundf(subject, "resource not found")
	}
	if err != nil {
		return nil, aerrors.Internalf(subject, "read resource: %v", err)
	}
	return decodeResource(subject, data)
}

// txnResourceGetter reads resources through an in-flight badger
// transaction rather than opening a new one: it is only ever used while
// the caller already holds txn, e.g. the CheckRequired validation inside
// AddResourceOpts.
type txnResourceGetter struct {
	txn *badger.Txn
}

func (g txnResourceGetter) GetResource(subject string) (*resource.Resource, error) {
	item, err := g.txn.Get(resourceKeyFor(subject))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, aerrors.NotFoundf(subject, "resource not found")
	}
	if err != nil {
		return nil, aerrors.Internalf(subject, "read resource: %v", err)
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, aerrors.Internalf(subject, "read resource: %v", err)
	}
	return decodeResource(subject, data)
}

func (s *Store) AddResourceOpts(r *resource.Resource, opts store.AddResourceOpts) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := resourceKeyFor(r.Subject())
		item, err := txn.Get(key)
		exists := err == nil
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return aerrors.Internalf(r.Subject(), "read resource: %v", err)
		}
		if exists && !opts.Overwrite {
			return aerrors.Conflictf(r.Subject(), "subject already exists")
		}

		if opts.CheckRequired {
			resolver := schema.NewResolver(schema.NewStoreAdapter(txnResourceGetter{txn}))
			if err := r.CheckRequiredProps(resolver); err != nil {
				return err
			}
		}

		if opts.UpdateIndex {
			if exists {
				data, err := item.ValueCopy(nil)
				if err != nil {
					return aerrors.Internalf(r.Subject(), "read resource: %v", err)
				}
				old, err := decodeResource(r.Subject(), data)
				if err != nil {
					return err
				}
				for _, a := range old.ToAtoms() {
					if err := removeAtomTxn(txn, a); err != nil {
						return err
					}
				}
			}
			for _, a := range r.ToAtoms() {
				if err := addAtomTxn(txn, a); err != nil {
					return err
				}
			}
		}

		data, err := encodeResource(r)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

func (s *Store) RemoveResource(subject string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := resourceKeyFor(subject)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return aerrors.NotFoundf(subject, "resource not found")
		}
		if err != nil {
			return aerrors.Internalf(subject, "read resource: %v", err)
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return aerrors.Internalf(subject, "read resource: %v", err)
		}
		old, err := decodeResource(subject, data)
		if err != nil {
			return err
		}
		for _, a := range old.ToAtoms() {
			if err := removeAtomTxn(txn, a); err != nil {
				return err
			}
		}
		return txn.Delete(key)
	})
}

func (s *Store) AllResources(includeExternal bool) ([]*resource.Resource, error) {
	var out []*resource.Resource
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := buildKey(resourcePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			subject := string(bytes.TrimPrefix(item.KeyCopy(nil), append(prefix, '/')))
			if !includeExternal && store.IsExternalSubject(subject, s.selfURL) {
				continue
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return aerrors.Internalf(subject, "read resource: %v", err)
			}
			r, err := decodeResource(subject, data)
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

func (s *Store) AddAtomToIndex(atom resource.Atom) error {
	return s.db.Update(func(txn *badger.Txn) error { return addAtomTxn(txn, atom) })
}

func (s *Store) RemoveAtomFromIndex(atom resource.Atom) error {
	return s.db.Update(func(txn *badger.Txn) error { return removeAtomTxn(txn, atom) })
}

func addAtomTxn(txn *badger.Txn, a resource.Atom) error {
	if err := postingAdd(txn, valueIndexKey(a.Property, a.Value), a.Subject); err != nil {
		return aerrors.Internalf(a.Subject, "add to value index: %v", err)
	}
	if a.Property == urls.IsA && a.Value.Kind == value.ResourceArray {
		for _, el := range a.Value.Array {
			if el.IsNested() {
				continue
			}
			if err := postingAdd(txn, classIndexKey(el.Subject), a.Subject); err != nil {
				return aerrors.Internalf(a.Subject, "add to class index: %v", err)
			}
		}
	}
	return nil
}

func removeAtomTxn(txn *badger.Txn, a resource.Atom) error {
	if err := postingRemove(txn, valueIndexKey(a.Property, a.Value), a.Subject); err != nil {
		return aerrors.Internalf(a.Subject, "remove from value index: %v", err)
	}
	if a.Property == urls.IsA && a.Value.Kind == value.ResourceArray {
		for _, el := range a.Value.Array {
			if el.IsNested() {
				continue
			}
			if err := postingRemove(txn, classIndexKey(el.Subject), a.Subject); err != nil {
				return aerrors.Internalf(a.Subject, "remove from class index: %v", err)
			}
		}
	}
	return nil
}

// postingGet/postingAdd/postingRemove keep a sorted, deduplicated list of
// subjects at key, encoded as a JSON array of subject strings.
func postingGet(txn *badger.Txn, key []byte) ([]string, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var list []string
	err = item.Value(func(val []byte) error {
		if len(val) == 0 {
			return nil
		}
		return json.Unmarshal(val, &list)
	})
	return list, err
}

func postingAdd(txn *badger.Txn, key []byte, subject string) error {
	list, err := postingGet(txn, key)
	if err != nil {
		return err
	}
	i, found := slices.BinarySearch(list, subject)
	if found {
		return nil
	}
	list = slices.Insert(list, i, subject)
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

func postingRemove(txn *badger.Txn, key []byte, subject string) error {
	list, err := postingGet(txn, key)
	if err != nil {
		return err
	}
	i, found := slices.BinarySearch(list, subject)
	if !found {
		return nil
	}
	list = slices.Delete(list, i, i+1)
	if len(list) == 0 {
		return txn.Delete(key)
	}
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

func (s *Store) SubjectsByValue(property string, v value.Value) ([]string, error) {
	var out []string
	err := s.db.View(func(txn *badger.Txn) error {
		list, err := postingGet(txn, valueIndexKey(property, v))
		out = list
		return err
	})
	return out, err
}

func (s *Store) SubjectsByClass(classURL string) ([]string, error) {
	var out []string
	err := s.db.View(func(txn *badger.Txn) error {
		list, err := postingGet(txn, classIndexKey(classURL))
		out = list
		return err
	})
	return out, err
}

func (s *Store) Query(ctx context.Context, q store.Query, forAgent string) (store.QueryResult, error) {
	return query.Execute(ctx, s, q, forAgent)
}

func (s *Store) GetServerURL() string { return s.serverURL }
func (s *Store) GetSelfURL() string   { return s.selfURL }

func (s *Store) IsExternalSubject(subject string) bool {
	return store.IsExternalSubject(subject, s.selfURL)
}

func (s *Store) HandleCommit(n store.Notification) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
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
	s.subMu.Lock()
	defer s.subMu.Unlock()
	ch := make(chan store.Notification, 64)
	if s.closed {
		close(ch)
		return ch
	}
	s.subscribers = append(s.subscribers, ch)
	return ch
}

func (s *Store) Close() error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = nil
	return s.db.Close()
}

var _ store.Store = (*Store)(nil)
