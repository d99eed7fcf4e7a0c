// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package commit

import (
	"context"
	"strings"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	aerrors "github.com/atomicdata-dev/atomicd/pkg/errors"
	"github.com/atomicdata-dev/atomicd/pkg/hierarchy"
	"github.com/atomicdata-dev/atomicd/pkg/plugins"
	"github.com/atomicdata-dev/atomicd/pkg/resource"
	"github.com/atomicdata-dev/atomicd/pkg/store"
	"github.com/atomicdata-dev/atomicd/pkg/urls"
	"github.com/atomicdata-dev/atomicd/pkg/value"
)

// acceptableTimeDifference is the clock-skew window a commit's
// created-at timestamp is allowed to be ahead of the applying server's
// clock.
const acceptableTimeDifference = 10_000 // ms

// Opts gates each optional phase of ApplyOpts, letting trusted internal
// callers skip checks a client-submitted commit must always pass.
type Opts struct {
	ValidateSignature      bool
	ValidateTimestamp      bool
	ValidatePreviousCommit bool
	ValidateSchema         bool
	ValidateParentPrefix   bool
	ValidateAuthorization  bool
	UpdateIndex            bool
	// StrictPreviousCommit turns the warning logged when an existing
	// resource has no lastCommit (spec's own Open Question) into a
	// Conflict error. Off by default,
	// matching the reference implementation's behavior.
	StrictPreviousCommit bool
}

// DefaultOpts is what a client-submitted commit should be applied with.
func DefaultOpts() Opts {
	return Opts{
		ValidateSignature:      true,
		ValidateTimestamp:      true,
		ValidatePreviousCommit: true,
		ValidateSchema:         true,
		ValidateParentPrefix:   true,
		ValidateAuthorization:  true,
		UpdateIndex:            true,
	}
}

// Response is what ApplyOpts returns on success.
type Response struct {
	CommitResource *resource.Resource
	ResourceNew    *resource.Resource // nil when the commit destroyed the resource
	ResourceOld    *resource.Resource // nil when the resource was newly created
}

// ApplyOpts is the Commit engine's central algorithm: validate, load,
// mutate, authorize, persist and notify, in that order. now
// is the applying server's current time in ms since epoch, passed
// explicitly so callers (and tests) control it rather than reading the
// system clock from inside the engine.
func ApplyOpts(ctx context.Context, s store.Store, c *Commit, opts Opts, resolver resource.ClassResolver, registry *plugins.Registry, log logr.Logger, now int64) (*Response, error) {
	log = log.WithValues("applyID", uuid.NewString(), "subject", c.Subject)

	// Phase 1: parse subject.
	if err := resource.ValidateSubject(c.Subject); err != nil {
		return nil, err
	}

	// Phase 2: signature check.
	if opts.ValidateSignature {
		signerAgent, err := fetchSignerAgent(s, c.Signer)
		if err != nil {
			return nil, err
		}
		if err := c.Verify(signerAgent); err != nil {
			return nil, err
		}
	}

	// Phase 3: timestamp check.
	if opts.ValidateTimestamp && c.CreatedAt > now+acceptableTimeDifference {
		return nil, aerrors.Validationf(c.Subject, "commit createdAt %d is too far in the future (now %d)", c.CreatedAt, now)
	}

	// Phase 4: load target.
	old, err := s.GetResource(c.Subject)
	isNew := false
	if err != nil {
		if aerrors.KindOf(err) != aerrors.NotFound {
			return nil, err
		}
		isNew = true
		old = nil
	}

	// Phase 5: previous-commit check.
	if opts.ValidatePreviousCommit && !isNew {
		lastCommit, lastErr := old.Get(urls.LastCommit)
		if lastErr == nil {
			if c.PreviousCommit != lastCommit.Str {
				return nil, aerrors.Conflictf(c.Subject, "commit's previousCommit %q does not match resource's lastCommit %q", c.PreviousCommit, lastCommit.Str)
			}
		} else if opts.StrictPreviousCommit {
			return nil, aerrors.Conflictf(c.Subject, "resource has no lastCommit but strict previousCommit checking is enabled")
		} else {
			log.Info("commit applied without a previousCommit reference on a resource with no lastCommit", "subject", c.Subject)
		}
	}

	// Phase 6: apply operations onto a working copy, without touching
	// the index yet.
	var working *resource.Resource
	if isNew {
		working = resource.NewUnchecked(c.Subject)
	} else {
		working = old.Clone()
	}
	if err := applyChanges(working, c, resolver); err != nil {
		return nil, err
	}

	// Phase 7: parent-on-new prefix check.
	if opts.ValidateParentPrefix && isNew {
		if parent, perr := working.Get(urls.Parent); perr == nil {
			if !strings.HasPrefix(c.Subject, parent.Str) {
				return nil, aerrors.Conflictf(c.Subject, "subject must be prefixed by its declared parent %q", parent.Str)
			}
		}
	}

	// Phase 8: authorization.
	if opts.ValidateAuthorization {
		if isNew {
			parentSubject := s.GetSelfURL()
			if parent, perr := working.Get(urls.Parent); perr == nil {
				parentSubject = parent.Str
			}
			if err := hierarchy.CheckAppend(s, parentSubject, c.Signer); err != nil {
				return nil, err
			}
		} else {
			start := old
			if _, perr := old.Get(urls.Parent); perr != nil {
				start = old.Clone()
				start.SetPropvalUnsafe(urls.Parent, value.NewAtomicURL(s.GetSelfURL()))
			}
			if err := hierarchy.CheckWriteResource(s, start, c.Signer); err != nil {
				return nil, err
			}
		}
	}

	// Phase 9: schema check.
	if opts.ValidateSchema {
		if err := working.CheckRequiredProps(resolver); err != nil {
			return nil, err
		}
	}

	// Phase 10: stamp lastCommit.
	commitURL := c.URL(s.GetServerURL())
	working.SetPropvalUnsafe(urls.LastCommit, value.NewAtomicURL(commitURL))

	// Phase 11: plugin pre-hooks.
	for _, cls := range working.Classes() {
		if cls == urls.Commit {
			return nil, aerrors.Validationf(c.Subject, "commits cannot be edited directly")
		}
	}
	hookCtx := plugins.Context{Subject: c.Subject, CommitURL: commitURL, ResourceOld: old, ResourceNew: working}
	if err := registry.RunBeforeApply(working.Classes(), hookCtx); err != nil {
		return nil, err
	}

	if ctx.Err() != nil {
		return nil, aerrors.Internalf(c.Subject, "commit apply canceled before persisting: %v", ctx.Err())
	}

	commitResource := c.ToResource(s.GetServerURL())

	// Phase 12: destroy path.
	if c.Destroy {
		if opts.UpdateIndex && old != nil {
			for _, a := range old.ToAtoms() {
				if err := s.RemoveAtomFromIndex(a); err != nil {
					return nil, aerrors.Internalf(c.Subject, "remove atom from index: %v", err)
				}
			}
		}
		if !isNew {
			if err := s.RemoveResource(c.Subject); err != nil {
				return nil, err
			}
		}
		if err := s.AddResourceOpts(commitResource, store.AddResourceOpts{Overwrite: false}); err != nil {
			return nil, err
		}

		notifyAndRunAfterHooks(s, registry, log, store.Notification{
			Subject: c.Subject, CommitURL: commitURL, IsNew: isNew, Destroyed: true,
		}, plugins.Context{Subject: c.Subject, CommitURL: commitURL, ResourceOld: old, ResourceNew: nil})

		return &Response{CommitResource: commitResource, ResourceNew: nil, ResourceOld: old}, nil
	}

	// Phase 13: write resource + index atomically. The backend's
	// AddResourceOpts diffs the full old/new atom sets in one
	// transaction (memstore, badgerstore), which yields the same index
	// state 4.4.1's per-operation diffing would: untouched properties
	// have identical old and new atoms and net to no index change.
	if err := s.AddResourceOpts(working, store.AddResourceOpts{UpdateIndex: opts.UpdateIndex, Overwrite: true}); err != nil {
		return nil, err
	}

	// Phase 14: persist the commit itself. Signatures are unique by
	// content, so this never overwrites.
	if err := s.AddResourceOpts(commitResource, store.AddResourceOpts{Overwrite: false}); err != nil {
		return nil, err
	}

	// Phase 15: notify + post-hooks.
	notifyAndRunAfterHooks(s, registry, log, store.Notification{
		Subject: c.Subject, CommitURL: commitURL, IsNew: isNew, ResourceNew: working,
	}, hookCtx)

	return &Response{CommitResource: commitResource, ResourceNew: working, ResourceOld: old}, nil
}

func notifyAndRunAfterHooks(s store.Store, registry *plugins.Registry, log logr.Logger, n store.Notification, hookCtx plugins.Context) {
	if err := s.HandleCommit(n); err != nil {
		log.Error(err, "commit notification failed", "subject", n.Subject)
	}
	classes := []string{}
	if hookCtx.ResourceNew != nil {
		classes = hookCtx.ResourceNew.Classes()
	} else if hookCtx.ResourceOld != nil {
		classes = hookCtx.ResourceOld.Classes()
	}
	for _, err := range registry.RunAfterApply(classes, hookCtx) {
		log.Error(err, "commit post-hook failed", "subject", n.Subject)
	}
}

// applyChanges implements 4.4.1's operation semantics on working, which
// is either a fresh resource (new subject) or a clone of the prior
// version (existing subject). The index is untouched here; ApplyOpts'
// phase 13 handles that once authorization and schema checks pass.
func applyChanges(working *resource.Resource, c *Commit, resolver resource.ClassResolver) error {
	for prop, v := range c.Set {
		if err := working.SetPropval(prop, v, resolver); err != nil {
			return err
		}
	}
	for _, prop := range c.Remove {
		working.RemovePropval(prop)
	}
	for prop, v := range c.Push {
		if v.Kind != value.ResourceArray {
			return aerrors.Validationf(working.Subject(), "push[%s] must be a resource array", prop)
		}
		if err := working.PushPropval(prop, v.Array...); err != nil {
			return err
		}
		if resolver != nil {
			merged, _ := working.Get(prop)
			if err := resolver.ValidateValue(prop, merged); err != nil {
				return err
			}
		}
	}
	return nil
}

func fetchSignerAgent(s store.Store, signerSubject string) (*resource.Agent, error) {
	signerResource, err := s.GetResource(signerSubject)
	if err != nil {
		return nil, err
	}
	pubKey, err := signerResource.Get(urls.PublicKey)
	if err != nil {
		return nil, aerrors.Unauthenticatedf(signerSubject, "signer resource has no publicKey")
	}
	return resource.NewAgentFromPublicKey(s.GetServerURL(), pubKey.Str)
}
