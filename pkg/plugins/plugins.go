// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package plugins implements the class-dispatched commit side-effect
// registry. The commit engine no longer matches on class URLs inline;
// instead it holds one Registry, keyed by class URL, and iterates
// registrants at the pre-apply and post-apply phases. Registration is
// static (done once at startup) and the registry is passed explicitly
// through ApplyOpts — no package-level global state.
package plugins

import (
	"sync"

	"github.com/atomicdata-dev/atomicd/pkg/resource"
)

// Context carries what a hook needs to inspect or react to a commit. It
// intentionally has no dependency on pkg/commit (which depends on this
// package) — hooks see the resource-level effect of a commit, not the
// Commit envelope itself.
type Context struct {
	Subject     string
	CommitURL   string
	ResourceOld *resource.Resource // nil if this is a new resource
	ResourceNew *resource.Resource // nil if this commit destroys the resource
}

// Hooks is the capability set a class may register.
type Hooks struct {
	// BeforeApply runs after schema/authorization checks but before the
	// resource write. Returning an error aborts the commit with that
	// error (typically Validation or Unauthorized).
	BeforeApply func(ctx Context) error
	// AfterApply runs once the commit is durable. Its error is logged,
	// never rolled back — the commit has already taken effect.
	AfterApply func(ctx Context) error
}

// Registry is a class-URL-keyed table of Hooks.
type Registry struct {
	mu      sync.RWMutex
	byClass map[string]Hooks
}

func NewRegistry() *Registry {
	return &Registry{byClass: map[string]Hooks{}}
}

// Register associates hooks with classURL, replacing any prior
// registration for that class.
func (r *Registry) Register(classURL string, hooks Hooks) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byClass[classURL] = hooks
}

// RunBeforeApply invokes every registered BeforeApply hook whose class
// appears in classes, stopping at the first error.
func (r *Registry) RunBeforeApply(classes []string, ctx Context) error {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range classes {
		h, ok := r.byClass[c]
		if !ok || h.BeforeApply == nil {
			continue
		}
		if err := h.BeforeApply(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RunAfterApply invokes every registered AfterApply hook whose class
// appears in classes, collecting (not stopping on) errors for the caller
// to log.
func (r *Registry) RunAfterApply(classes []string, ctx Context) []error {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var errs []error
	for _, c := range classes {
		h, ok := r.byClass[c]
		if !ok || h.AfterApply == nil {
			continue
		}
		if err := h.AfterApply(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
