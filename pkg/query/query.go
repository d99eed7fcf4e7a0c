// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package query implements the query engine: class-indexed or
// property-value-indexed candidate selection, authorization filtering,
// sorting and pagination.
package query

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/atomicdata-dev/atomicd/pkg/hierarchy"
	"github.com/atomicdata-dev/atomicd/pkg/resource"
	"github.com/atomicdata-dev/atomicd/pkg/store"
)

// concurrentAuthThreshold is the candidate-set size at or above which
// authorization checks fan out across a bounded worker pool instead of
// running sequentially.
const concurrentAuthThreshold = 32

// Execute runs a filtered, sorted, paginated, authorization-checked
// resource lookup against any backend satisfying store.Indexed.
func Execute(ctx context.Context, idx store.Indexed, q store.Query, forAgent string) (store.QueryResult, error) {
	candidates, err := candidateSubjects(idx, q)
	if err != nil {
		return store.QueryResult{}, err
	}

	resources, err := authorizedResources(ctx, idx, candidates, forAgent)
	if err != nil {
		return store.QueryResult{}, err
	}

	resources = filterPredicates(resources, q)
	sortResources(resources, q.SortBy, q.SortDesc)

	count := len(resources)
	resources = paginate(resources, q.Limit, q.Offset)

	subjects := make([]string, len(resources))
	for i, r := range resources {
		subjects[i] = r.Subject()
	}

	return store.QueryResult{Subjects: subjects, Resources: resources, Count: count}, nil
}

func candidateSubjects(idx store.Indexed, q store.Query) ([]string, error) {
	switch {
	case q.Class != "":
		return idx.SubjectsByClass(q.Class)
	case q.Property != "" && q.Value != nil:
		return idx.SubjectsByValue(q.Property, *q.Value)
	default:
		all, err := idx.AllResources(q.IncludeExternal)
		if err != nil {
			return nil, err
		}
		subjects := make([]string, len(all))
		for i, r := range all {
			subjects[i] = r.Subject()
		}
		return subjects, nil
	}
}

func authorizedResources(ctx context.Context, idx store.Indexed, candidates []string, forAgent string) ([]*resource.Resource, error) {
	if len(candidates) < concurrentAuthThreshold {
		out := make([]*resource.Resource, 0, len(candidates))
		for _, subj := range candidates {
			r, err := authorizeOne(idx, subj, forAgent)
			if err != nil {
				return nil, err
			}
			if r != nil {
				out = append(out, r)
			}
		}
		return out, nil
	}

	results := make([]*resource.Resource, len(candidates))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	var mu sync.Mutex
	for i, subj := range candidates {
		i, subj := i, subj
		g.Go(func() error {
			r, err := authorizeOne(idx, subj, forAgent)
			if err != nil {
				return err
			}
			mu.Lock()
			results[i] = r
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*resource.Resource, 0, len(candidates))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

// authorizeOne returns the resource if forAgent can read it, nil
// (no error) if not authorized — an unauthorized candidate is simply
// excluded from results, not a query failure.
func authorizeOne(idx store.Indexed, subject, forAgent string) (*resource.Resource, error) {
	r, err := idx.GetResource(subject)
	if err != nil {
		return nil, nil
	}
	if err := hierarchy.CheckRead(idx, subject, forAgent); err != nil {
		return nil, nil
	}
	return r, nil
}

func filterPredicates(resources []*resource.Resource, q store.Query) []*resource.Resource {
	if q.Class == "" && q.Property == "" {
		return resources
	}
	out := resources[:0:0]
	for _, r := range resources {
		if q.Class != "" {
			found := false
			for _, c := range r.Classes() {
				if c == q.Class {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		if q.Property != "" && q.Value != nil {
			v, err := r.Get(q.Property)
			if err != nil || !v.Equal(*q.Value) {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

func sortResources(resources []*resource.Resource, sortBy string, desc bool) {
	if sortBy == "" {
		return
	}
	sort.SliceStable(resources, func(i, j int) bool {
		vi, erri := resources[i].Get(sortBy)
		vj, errj := resources[j].Get(sortBy)
		// Missing values sort last regardless of direction.
		if erri != nil && errj != nil {
			return false
		}
		if erri != nil {
			return false
		}
		if errj != nil {
			return true
		}
		less := vi.String() < vj.String()
		if desc {
			return !less
		}
		return less
	})
}

func paginate(resources []*resource.Resource, limit, offset int) []*resource.Resource {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(resources) {
		return nil
	}
	resources = resources[offset:]
	if limit > 0 && limit < len(resources) {
		resources = resources[:limit]
	}
	return resources
}
