// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package hierarchy implements read/write/append authorization by walking
// a resource's parent chain.
package hierarchy

import (
	aerrors "github.com/atomicdata-dev/atomicd/pkg/errors"
	"github.com/atomicdata-dev/atomicd/pkg/resource"
	"github.com/atomicdata-dev/atomicd/pkg/urls"
	"github.com/atomicdata-dev/atomicd/pkg/value"
)

// maxHops bounds the parent walk so a cyclic (and therefore malformed)
// parent chain can never hang a request.
const maxHops = 64

// Getter is the subset of pkg/store.Store a hierarchy check needs.
type Getter interface {
	GetResource(subject string) (*resource.Resource, error)
}

// CheckRead reports whether agentSubject may read subject: granted by
// subject's or any ancestor's read or write list (write implies read).
func CheckRead(g Getter, subject, agentSubject string) error {
	return checkAny(g, subject, agentSubject, urls.Read, urls.Write)
}

// CheckWrite reports whether agentSubject may write subject: granted by
// subject's or any ancestor's write list.
func CheckWrite(g Getter, subject, agentSubject string) error {
	return checkAny(g, subject, agentSubject, urls.Write)
}

// CheckAppend reports whether agentSubject may create a new child of
// subject. There is no separate stored append list; write implies
// append, so this checks the same write list as CheckWrite.
func CheckAppend(g Getter, subject, agentSubject string) error {
	return checkAny(g, subject, agentSubject, urls.Write)
}

// CheckWriteResource is CheckWrite starting the walk from start instead
// of fetching it fresh from g. Callers use this when they already hold
// the resource in memory (e.g. the pre-commit version of an edited
// resource) and want its own grants consulted before any default parent
// substitution takes effect further up the chain.
func CheckWriteResource(g Getter, start *resource.Resource, agentSubject string) error {
	return checkAnyFrom(g, start, agentSubject, urls.Write)
}

func checkAny(g Getter, subject, agentSubject string, rightProps ...string) error {
	start, err := g.GetResource(subject)
	if err != nil {
		if aerrors.KindOf(err) == aerrors.NotFound {
			// The subject itself doesn't exist yet (e.g. the server
			// self URL before it has been populated): grants nothing.
			return aerrors.Unauthorizedf(subject, "agent %q is not granted %v", agentSubject, rightProps)
		}
		return err
	}
	return checkAnyFrom(g, start, agentSubject, rightProps...)
}

func checkAnyFrom(g Getter, start *resource.Resource, agentSubject string, rightProps ...string) error {
	current := start
	currentSubject := start.Subject()
	for hop := 0; hop < maxHops; hop++ {
		for _, prop := range rightProps {
			if listGrants(current, prop, agentSubject) {
				return nil
			}
		}

		parent, err := current.Get(urls.Parent)
		if err != nil {
			break // no parent: end of chain
		}
		if parent.Kind != value.AtomicURL || parent.Str == currentSubject {
			break
		}

		next, err := g.GetResource(parent.Str)
		if err != nil {
			if aerrors.KindOf(err) == aerrors.NotFound {
				// An ancestor that doesn't exist yet (e.g. the server
				// self URL before it has been populated) grants
				// nothing and denies nothing further up; treat as the
				// end of the chain.
				break
			}
			return err
		}
		current = next
		currentSubject = parent.Str
	}
	return aerrors.Unauthorizedf(start.Subject(), "agent %q is not granted %v", agentSubject, rightProps)
}

func listGrants(r *resource.Resource, rightProp, agentSubject string) bool {
	v, err := r.Get(rightProp)
	if err != nil || v.Kind != value.ResourceArray {
		return false
	}
	for _, el := range v.Array {
		if el.IsNested() {
			continue
		}
		if el.Subject == agentSubject || el.Subject == urls.PublicAgent {
			return true
		}
	}
	return false
}
