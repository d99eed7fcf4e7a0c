// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package resource

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"

	aerrors "github.com/atomicdata-dev/atomicd/pkg/errors"
	"github.com/atomicdata-dev/atomicd/pkg/urls"
	"github.com/atomicdata-dev/atomicd/pkg/value"
)

// Agent is an Ed25519 identity. Its subject is derived from its public
// key so it is self-authenticating: anyone can verify that the agent
// resource at that subject is the one entitled to sign with the
// corresponding private key, without a separate certificate authority.
type Agent struct {
	subject    string
	publicKey  ed25519.PublicKey
	privateKey ed25519.PrivateKey // nil for an agent known only by public key
}

// NewAgent generates a fresh Ed25519 keypair under serverURL.
func NewAgent(serverURL string) (*Agent, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, aerrors.Internalf("", "generate agent keypair: %v", err)
	}
	return &Agent{
		subject:    AgentSubject(serverURL, pub),
		publicKey:  pub,
		privateKey: priv,
	}, nil
}

// NewAgentFromPrivateKey reconstructs an Agent from a base64-encoded
// 32-byte Ed25519 seed, the format Atomic Data agents exchange their keys
// in.
func NewAgentFromPrivateKey(serverURL, privateKeyB64 string) (*Agent, error) {
	seed, err := base64.StdEncoding.DecodeString(privateKeyB64)
	if err != nil {
		return nil, aerrors.Validationf("", "invalid agent private key: %v", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, aerrors.Validationf("", "invalid agent private key: want %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Agent{
		subject:    AgentSubject(serverURL, pub),
		publicKey:  pub,
		privateKey: priv,
	}, nil
}

// NewAgentFromPublicKey reconstructs an Agent known only by its public
// key, sufficient for signature verification but not signing.
func NewAgentFromPublicKey(serverURL, publicKeyB64 string) (*Agent, error) {
	pub, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil {
		return nil, aerrors.Validationf("", "invalid agent public key: %v", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return nil, aerrors.Validationf("", "invalid agent public key: want %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	return &Agent{subject: AgentSubject(serverURL, pub), publicKey: pub}, nil
}

// AgentSubject derives the self-authenticating subject URL for a public
// key.
func AgentSubject(serverURL string, pub ed25519.PublicKey) string {
	return serverURL + "/agents/" + base64.StdEncoding.EncodeToString(pub)
}

func (a *Agent) Subject() string { return a.subject }

// PublicKeyB64 returns the base64-encoded public key, the form stored in
// the Agent resource's publicKey property.
func (a *Agent) PublicKeyB64() string {
	return base64.StdEncoding.EncodeToString(a.publicKey)
}

// PrivateKeyB64 returns the base64-encoded 32-byte seed, or "" if this
// Agent only knows its public key.
func (a *Agent) PrivateKeyB64() string {
	if a.privateKey == nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(a.privateKey.Seed())
}

// CanSign reports whether this Agent holds a private key.
func (a *Agent) CanSign() bool { return a.privateKey != nil }

// Sign returns the base64-encoded Ed25519 signature of message.
func (a *Agent) Sign(message []byte) (string, error) {
	if a.privateKey == nil {
		return "", aerrors.Internalf(a.subject, "agent has no private key to sign with")
	}
	sig := ed25519.Sign(a.privateKey, message)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// VerifySignature checks sigB64 against message using a's public key.
func (a *Agent) VerifySignature(message []byte, sigB64 string) error {
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return aerrors.Unauthenticatedf(a.subject, "invalid signature encoding: %v", err)
	}
	if !ed25519.Verify(a.publicKey, message, sig) {
		return aerrors.Unauthenticatedf(a.subject, "signature verification failed")
	}
	return nil
}

// ToResource renders the Agent as an Atomic Data resource.
func (a *Agent) ToResource() *Resource {
	r := NewUnchecked(a.subject)
	r.SetPropvalUnsafe(urls.IsA, value.NewResourceArray(urls.Agent))
	r.SetPropvalUnsafe(urls.PublicKey, value.NewString(a.PublicKeyB64()))
	return r
}
