// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package commit

import (
	aerrors "github.com/atomicdata-dev/atomicd/pkg/errors"
	"github.com/atomicdata-dev/atomicd/pkg/resource"
	"github.com/atomicdata-dev/atomicd/pkg/value"
)

// Builder accumulates set/remove/push/destroy operations against a
// subject before signing them into a Commit.
type Builder struct {
	subject        string
	previousCommit string
	set            value.PropVals
	remove         []string
	push           value.PropVals
	destroy        bool
}

// NewBuilder starts a commit against subject.
func NewBuilder(subject string) *Builder {
	return &Builder{subject: subject, set: value.PropVals{}, push: value.PropVals{}}
}

// SetSubject lets a builder be retargeted, mirroring set_subject in the
// reference CommitBuilder.
func (b *Builder) SetSubject(subject string) *Builder {
	b.subject = subject
	return b
}

// SetPreviousCommit records the optimistic-concurrency link.
func (b *Builder) SetPreviousCommit(url string) *Builder {
	b.previousCommit = url
	return b
}

// Set stages a set[prop] = v operation.
func (b *Builder) Set(prop string, v value.Value) *Builder {
	b.set[prop] = v
	return b
}

// PushPropval stages a push[prop] = append(v) operation.
func (b *Builder) PushPropval(prop string, subs ...value.SubResource) *Builder {
	existing, ok := b.push[prop]
	if !ok {
		b.push[prop] = value.Value{Kind: value.ResourceArray, Array: append([]value.SubResource{}, subs...)}
		return b
	}
	existing.Array = append(existing.Array, subs...)
	b.push[prop] = existing
	return b
}

// Remove stages a remove[prop] operation.
func (b *Builder) Remove(prop string) *Builder {
	b.remove = append(b.remove, prop)
	return b
}

// Destroy stages destroy=true.
func (b *Builder) Destroy() *Builder {
	b.destroy = true
	return b
}

// SignAt builds and signs a Commit with an explicit timestamp, the form
// used by tests wanting reproducible signatures.
func (b *Builder) SignAt(agent *resource.Agent, createdAtMillis int64) (*Commit, error) {
	if b.subject == "" {
		return nil, aerrors.Validationf("", "commit builder has no subject")
	}
	c := &Commit{
		Subject:        b.subject,
		CreatedAt:      createdAtMillis,
		PreviousCommit: b.previousCommit,
		Set:            b.set,
		Remove:         b.remove,
		Push:           b.push,
		Destroy:        b.destroy,
	}
	if err := c.Sign(agent); err != nil {
		return nil, err
	}
	return c, nil
}

// Unsigned builds a dry-run Commit without signing it, for clients that
// want to preview apply_opts's effect before committing to a signature.
func (b *Builder) Unsigned(signer string, createdAtMillis int64) *Commit {
	return &Commit{
		Subject:        b.subject,
		Signer:         signer,
		CreatedAt:      createdAtMillis,
		PreviousCommit: b.previousCommit,
		Set:            b.set,
		Remove:         b.remove,
		Push:           b.push,
		Destroy:        b.destroy,
	}
}
