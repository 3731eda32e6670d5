// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"crypto/ed25519"
	"crypto/sha256"
	"testing"

	"github.com/kiln-foundation/kiln/lib/did"
)

// SigningKey derives a deterministic Ed25519 signing key from a name
// and returns it with its did:key identity. The same name always
// yields the same key, so fixtures stay stable across runs without
// checked-in key files. Never use these keys outside tests.
func SigningKey(t *testing.T, name string) (did.DID, ed25519.PrivateKey) {
	t.Helper()
	seed := sha256.Sum256([]byte("kiln test key: " + name))
	key := ed25519.NewKeyFromSeed(seed[:])
	return did.FromPublicKey(key.Public().(ed25519.PublicKey)), key
}
