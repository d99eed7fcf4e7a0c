// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package commit

import (
	"strconv"

	aerrors "github.com/atomicdata-dev/atomicd/pkg/errors"
	"github.com/atomicdata-dev/atomicd/pkg/resource"
	"github.com/atomicdata-dev/atomicd/pkg/store"
)

// AuthValues is the request-scoped bearer-token analog: a short-lived
// Ed25519 signature over the requested subject and a timestamp,
// produced by an HTTP collaborator from either auth headers or a
// session cookie and handed to the core to resolve into an agent
// subject. The core only ever consumes this struct — it never reads
// headers or cookies itself.
type AuthValues struct {
	PublicKey        string
	Signature        string
	AgentSubject     string
	Timestamp        int64 // ms since epoch
	RequestedSubject string
}

// message is the exact byte sequence AuthValues.Signature covers:
// "<requestedSubject> <timestamp>".
func (a AuthValues) message() []byte {
	return []byte(a.RequestedSubject + " " + strconv.FormatInt(a.Timestamp, 10))
}

// ResolveAgent verifies av.Signature with av.PublicKey, checks that the
// agent subject derived from that key under s's server URL equals
// av.AgentSubject, and returns that subject on success; no agent
// resource is read from s. now is the server's current time in
// ms; the signature's timestamp must fall within the same
// acceptableTimeDifference window ApplyOpts uses for commit timestamps.
// A zero AuthValues (no headers/cookie presented) is the caller's
// signal to treat the request as the public agent.
func ResolveAgent(s store.Store, av AuthValues, now int64) (string, error) {
	if av.RequestedSubject == "" {
		return "", aerrors.Unauthenticatedf("", "missing requested subject for authentication")
	}
	if av.Timestamp > now+acceptableTimeDifference || av.Timestamp < now-acceptableTimeDifference {
		return "", aerrors.Unauthenticatedf(av.AgentSubject, "authentication timestamp %d is outside the acceptable window (now %d)", av.Timestamp, now)
	}

	agent, err := resource.NewAgentFromPublicKey(s.GetServerURL(), av.PublicKey)
	if err != nil {
		return "", err
	}
	if agent.Subject() != av.AgentSubject {
		return "", aerrors.Unauthenticatedf(av.AgentSubject, "public key does not match agent subject")
	}
	if err := agent.VerifySignature(av.message(), av.Signature); err != nil {
		return "", err
	}
	return agent.Subject(), nil
}
