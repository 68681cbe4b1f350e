// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/roster-foundation/roster/lib/secret"
)

// redactionContext is the BLAKE3 derive-key context for the sender
// digest key. Changing it invalidates every digest produced from the
// same key material.
const redactionContext = "roster.identity.redact.v1"

// Redacted is the identity summary passed to components that must not
// see raw sender IDs, such as the intent classifier's prompt. The
// digest is stable for a given sender and team, so classification
// context stays consistent across messages without revealing who is
// talking.
type Redacted struct {
	// SenderDigest is a short hex digest of the sender ID, keyed by
	// deployment secret material and bound to the team ID so digests
	// cannot be correlated across teams.
	SenderDigest string

	// PlayerState and ManagerState carry the registration states;
	// these are coarse enough to share.
	PlayerState  State
	ManagerState State
}

// Redactor produces keyed sender digests. The key is derived from
// per-deployment secret material, so a digest cannot be recomputed
// from the public team and sender IDs alone.
type Redactor struct {
	key [32]byte
}

// NewRedactor derives the digest key from keyMaterial. The material
// may be any length; it is stretched to the 32 bytes keyed BLAKE3
// requires. Empty material is rejected rather than silently producing
// unkeyed digests.
func NewRedactor(keyMaterial *secret.Buffer) (*Redactor, error) {
	if keyMaterial == nil || keyMaterial.Len() == 0 {
		return nil, fmt.Errorf("identity: redaction key material is empty")
	}
	redactor := &Redactor{}
	blake3.DeriveKey(redactionContext, keyMaterial.Bytes(), redactor.key[:])
	return redactor, nil
}

// Redact produces the redacted summary of a resolved identity. The
// sender ID never leaves the process in the clear: only the first
// eight bytes of the keyed digest are exposed.
func (r *Redactor) Redact(resolved Resolved) Redacted {
	// NewKeyed only fails for a wrong key length, which the fixed-size
	// array rules out.
	hasher, err := blake3.NewKeyed(r.key[:])
	if err != nil {
		panic("identity: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(resolved.Team.String()))
	hasher.Write([]byte{0})
	hasher.Write([]byte(resolved.Sender.String()))
	sum := hasher.Sum(nil)

	return Redacted{
		SenderDigest: hex.EncodeToString(sum[:8]),
		PlayerState:  resolved.StateOf(RolePlayer),
		ManagerState: resolved.StateOf(RoleManager),
	}
}
