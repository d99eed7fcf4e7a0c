// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package store declares the Store contract: the resource/atom CRUD
// surface, the inverted value and class indexes, queries, and the
// notification hook a Commit apply invokes once a mutation is durable.
//
// Two backends satisfy this contract: memstore (in-memory, hash-indexed)
// and badgerstore (on-disk, ordered key-value).
package store

import (
	"context"

	"github.com/atomicdata-dev/atomicd/pkg/resource"
	"github.com/atomicdata-dev/atomicd/pkg/value"
)

// AddResourceOpts controls AddResourceOpts's behavior.
type AddResourceOpts struct {
	// CheckRequired runs CheckRequiredProps before writing.
	CheckRequired bool
	// UpdateIndex adds the resource's atoms to the inverted index in the
	// same transaction as the resource write.
	UpdateIndex bool
	// Overwrite allows replacing an existing subject. If false and the
	// subject already exists, AddResourceOpts returns Conflict.
	Overwrite bool
}

// Notification is the store's own hook payload for EventType (NEW);
// Commit apply invokes HandleCommit with one of these once the mutation
// is durable, and it is also what Subscribe delivers to listeners.
type Notification struct {
	Subject     string
	CommitURL   string
	IsNew       bool
	Destroyed   bool
	ResourceNew *resource.Resource // nil when Destroyed
}

// Query describes a filtered, sorted, paginated resource lookup.
type Query struct {
	Property        string
	Value           *value.Value
	Class           string
	SortBy          string
	SortDesc        bool
	Limit           int
	Offset          int
	IncludeExternal bool
}

// QueryResult is what Query (via pkg/query.Execute) returns.
type QueryResult struct {
	Subjects  []string
	Resources []*resource.Resource // the returned page's resources, in Subjects order
	Count     int
}

// Indexed is the subset of Store the query engine (pkg/query) needs: the
// index primitives and resource iteration, without the mutation surface.
type Indexed interface {
	GetResource(subject string) (*resource.Resource, error)
	AllResources(includeExternal bool) ([]*resource.Resource, error)
	SubjectsByValue(property string, v value.Value) ([]string, error)
	SubjectsByClass(classURL string) ([]string, error)
}

// Store is the full contract a backend implements.
type Store interface {
	Indexed

	AddResourceOpts(r *resource.Resource, opts AddResourceOpts) error
	RemoveResource(subject string) error

	AddAtomToIndex(atom resource.Atom) error
	RemoveAtomFromIndex(atom resource.Atom) error

	Query(ctx context.Context, q Query, forAgent string) (QueryResult, error)

	GetServerURL() string
	GetSelfURL() string
	// IsExternalSubject reports whether subject's host, after stripping
	// one leftmost label, differs from the self URL's host. The literal
	// "local" self URL marks a client-only store where everything is
	// external.
	IsExternalSubject(subject string) bool

	// HandleCommit is invoked by the commit engine once a mutation is
	// durable, as its final step. Implementations fan this out to
	// Subscribe listeners; failures here must never roll back the
	// commit.
	HandleCommit(n Notification) error

	// Subscribe returns a channel that receives every Notification handed
	// to HandleCommit after the call to Subscribe. The channel is closed
	// when Close is called.
	Subscribe() <-chan Notification

	Close() error
}
