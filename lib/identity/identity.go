// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity resolves DIDs to key material and parent links.
//
// The authorization engine never performs I/O itself; everything it
// needs to know about an identity arrives through the Resolver
// interface. A resolution carries two things: the key material that
// verifies the identity's signatures, and an optional parent, the
// account a session key is bound to. The parent link is what lets a
// capability addressed to an account be exercised by one of the
// account's session keys.
//
// Resolver failures are infrastructure failures, not authorization
// outcomes. Callers fail closed: a commit whose signer cannot be
// resolved is not denied on the merits, it is simply not authorized
// until resolution succeeds.
package identity

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/kiln-foundation/kiln/lib/did"
)

// ErrUnknownIdentity is returned by resolvers that maintain a closed
// set of identities when asked about a DID outside that set.
var ErrUnknownIdentity = errors.New("unknown identity")

// Algorithm identifies the kind of key material a resolution carries.
type Algorithm uint8

const (
	// AlgorithmEd25519 key material is a 32-byte Ed25519 public key.
	AlgorithmEd25519 Algorithm = iota + 1

	// AlgorithmEIP155 key material is a 20-byte Ethereum account
	// address. Signatures are verified by recovering the signing key
	// from the signature and comparing derived addresses.
	AlgorithmEIP155
)

// String returns a short name for the algorithm, used in logs.
func (a Algorithm) String() string {
	switch a {
	case AlgorithmEd25519:
		return "ed25519"
	case AlgorithmEIP155:
		return "eip155"
	default:
		return fmt.Sprintf("Algorithm(%d)", a)
	}
}

// PublicKey is resolved key material.
type PublicKey struct {
	Algorithm Algorithm

	// Bytes is the raw material: a 32-byte Ed25519 public key for
	// AlgorithmEd25519, a 20-byte account address for AlgorithmEIP155.
	Bytes []byte
}

// Ed25519 returns the material as an Ed25519 public key. Returns an
// error when the algorithm or length does not match.
func (k PublicKey) Ed25519() (ed25519.PublicKey, error) {
	if k.Algorithm != AlgorithmEd25519 {
		return nil, fmt.Errorf("key material is %s, not ed25519", k.Algorithm)
	}
	if len(k.Bytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("ed25519 key material has length %d, want %d", len(k.Bytes), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(k.Bytes), nil
}

// Address returns the material as an Ethereum account address.
// Returns an error when the algorithm or length does not match.
func (k PublicKey) Address() (did.Address, error) {
	if k.Algorithm != AlgorithmEIP155 {
		return did.Address{}, fmt.Errorf("key material is %s, not eip155", k.Algorithm)
	}
	if len(k.Bytes) != len(did.Address{}) {
		return did.Address{}, fmt.Errorf("eip155 key material has length %d, want %d", len(k.Bytes), len(did.Address{}))
	}
	var address did.Address
	copy(address[:], k.Bytes)
	return address, nil
}

// Identity is a resolved subject: the DID itself and, when the DID is
// a session key registered under an account, the parent account.
type Identity struct {
	DID did.DID

	// Parent is the account this identity is bound to, or zero when
	// the identity stands alone. The link is fixed at registration;
	// nothing re-parents an identity after resolution.
	Parent did.DID
}

// HasParent reports whether the identity is bound to a parent account.
func (i Identity) HasParent() bool { return !i.Parent.IsZero() }

// Resolution is the full answer for one DID.
type Resolution struct {
	Identity Identity
	Key      PublicKey
}

// Resolver resolves a DID to its identity and key material.
//
// Implementations must treat "I cannot answer" as an error, never as
// an empty resolution: the engine converts resolver errors into a
// fail-closed non-decision rather than a deny.
type Resolver interface {
	Resolve(ctx context.Context, id did.DID) (Resolution, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, id did.DID) (Resolution, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, id did.DID) (Resolution, error) {
	return f(ctx, id)
}
