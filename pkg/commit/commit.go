// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package commit implements the Commit engine: deterministic
// serialization, Ed25519 signing/verification, and the 15-phase
// ApplyOpts algorithm that is the store's sole mutation path.
package commit

import (
	"strconv"

	aerrors "github.com/atomicdata-dev/atomicd/pkg/errors"
	"github.com/atomicdata-dev/atomicd/pkg/resource"
	"github.com/atomicdata-dev/atomicd/pkg/serialize"
	"github.com/atomicdata-dev/atomicd/pkg/urls"
	"github.com/atomicdata-dev/atomicd/pkg/value"
)

// Commit is a signed, append-only delta transforming one resource
// version to the next.
type Commit struct {
	Subject        string
	Signer         string // Agent subject URL
	CreatedAt      int64  // ms since epoch
	Signature      string // base64, empty for an unsigned (dry-run) commit
	PreviousCommit string // URL of the previously-applied commit on this subject, if any

	Set     value.PropVals // property -> replacement value
	Remove  []string       // properties to drop
	Push    value.PropVals // property -> ResourceArray value to append
	Destroy bool
}

// CanonicalTree builds the JSON-AD tree used both as the Ed25519 signing
// input and as the wire form's canonical rendering. The signature
// property is never included (it signs everything else).
func (c *Commit) CanonicalTree() map[string]any {
	tree := map[string]any{
		urls.Subject:   c.Subject,
		urls.CreatedAt: c.CreatedAt,
		urls.Signer:    c.Signer,
		urls.IsA:       []any{urls.Commit},
	}
	if len(c.Set) > 0 {
		tree[urls.Set] = serialize.PropValsToTree(c.Set)
	}
	if len(c.Remove) > 0 {
		arr := make([]any, len(c.Remove))
		for i, p := range c.Remove {
			arr[i] = p
		}
		tree[urls.Remove] = arr
	}
	if len(c.Push) > 0 {
		tree[urls.Push] = serialize.PropValsToTree(c.Push)
	}
	if c.PreviousCommit != "" {
		tree[urls.PreviousCommit] = c.PreviousCommit
	}
	if c.Destroy {
		tree[urls.Destroy] = true
	}
	return tree
}

// Canonical renders the byte-exact signing input.
func (c *Commit) Canonical() (string, error) {
	return serialize.CanonicalTree(c.CanonicalTree())
}

// Sign signs c's canonical serialization with agent's private key and
// stores the result in c.Signature.
func (c *Commit) Sign(agent *resource.Agent) error {
	c.Signer = agent.Subject()
	canonical, err := c.Canonical()
	if err != nil {
		return err
	}
	sig, err := agent.Sign([]byte(canonical))
	if err != nil {
		return err
	}
	c.Signature = sig
	return nil
}

// Verify checks c.Signature against c's canonical serialization using
// the given public-key-only Agent.
func (c *Commit) Verify(signerAgent *resource.Agent) error {
	if c.Signature == "" {
		return aerrors.Unauthenticatedf(c.Subject, "commit is not signed")
	}
	canonical, err := c.Canonical()
	if err != nil {
		return err
	}
	return signerAgent.VerifySignature([]byte(canonical), c.Signature)
}

// URL mints the commit's subject: <server>/commits/<signature> for a
// signed commit, or <server>/commits-unsigned/<timestamp> for a dry-run
// (unsigned) one.
func (c *Commit) URL(serverURL string) string {
	if c.Signature == "" {
		return serverURL + "/commits-unsigned/" + strconv.FormatInt(c.CreatedAt, 10)
	}
	return serverURL + "/commits/" + c.Signature
}

// ToResource renders the commit itself as an immutable resource, the
// form persisted by ApplyOpts phase 14.
func (c *Commit) ToResource(serverURL string) *resource.Resource {
	r := resource.NewUnchecked(c.URL(serverURL))
	tree := c.CanonicalTree()
	for k, v := range tree {
		r.SetPropvalUnsafe(k, treeValueToValue(v))
	}
	if c.Signature != "" {
		r.SetPropvalUnsafe(urls.Signature, value.NewString(c.Signature))
	}
	return r
}

// treeValueToValue converts a plain JSON tree node (as produced by
// CanonicalTree) back into a typed value.Value for storage in the
// commit's own Resource. This is a one-way convenience — the stored
// commit resource is for retrieval and audit, not re-applied as a
// Commit.
func treeValueToValue(v any) value.Value {
	switch t := v.(type) {
	case string:
		return value.NewString(t)
	case int64:
		return value.NewInteger(t)
	case bool:
		return value.NewBoolean(t)
	case []any:
		subs := make([]value.SubResource, len(t))
		for i, el := range t {
			if s, ok := el.(string); ok {
				subs[i] = value.SubResource{Subject: s}
			} else if m, ok := el.(map[string]any); ok {
				subs[i] = value.SubResource{Nested: treeMapToPropVals(m)}
			}
		}
		return value.Value{Kind: value.ResourceArray, Array: subs}
	case map[string]any:
		return value.NewNested(treeMapToPropVals(t))
	default:
		return value.Value{}
	}
}

func treeMapToPropVals(m map[string]any) value.PropVals {
	out := make(value.PropVals, len(m))
	for k, v := range m {
		out[k] = treeValueToValue(v)
	}
	return out
}
