// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package did

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
)

const keyPrefix = "did:key:"

// multicodecEd25519Pub is the varint multicodec prefix for an Ed25519
// public key (0xed), as it appears before the key bytes in the
// multibase payload.
var multicodecEd25519Pub = []byte{0xed, 0x01}

// FromPublicKey constructs the did:key identifier for an Ed25519
// public key. Panics if the key has the wrong length; callers hold
// keys produced by crypto/ed25519, which are always valid.
func FromPublicKey(key ed25519.PublicKey) DID {
	if len(key) != ed25519.PublicKeySize {
		panic(fmt.Sprintf("did: ed25519 public key has length %d, want %d", len(key), ed25519.PublicKeySize))
	}
	payload := make([]byte, 0, len(multicodecEd25519Pub)+ed25519.PublicKeySize)
	payload = append(payload, multicodecEd25519Pub...)
	payload = append(payload, key...)
	return DID{raw: keyPrefix + "z" + base58.Encode(payload)}
}

// parseKey validates a did:key identifier. Only the base58btc
// multibase ('z') carrying an ed25519-pub multicodec payload is
// accepted.
func parseKey(raw string) (DID, error) {
	rest := raw[len(keyPrefix):]
	if len(rest) == 0 {
		return DID{}, fmt.Errorf("did:key %q has no key material", raw)
	}
	if rest[0] != 'z' {
		return DID{}, fmt.Errorf("did:key %q uses unsupported multibase %q (want base58btc 'z')", raw, rest[0])
	}
	payload, err := base58.Decode(rest[1:])
	if err != nil {
		return DID{}, fmt.Errorf("did:key %q has invalid base58: %w", raw, err)
	}
	if len(payload) != len(multicodecEd25519Pub)+ed25519.PublicKeySize ||
		payload[0] != multicodecEd25519Pub[0] || payload[1] != multicodecEd25519Pub[1] {
		return DID{}, fmt.Errorf("did:key %q does not carry an ed25519 public key", raw)
	}
	return DID{raw: raw}, nil
}

// PublicKey returns the Ed25519 public key a did:key identifier
// certifies. Returns an error for other methods. Panics if called on
// a zero-value DID.
func (d DID) PublicKey() (ed25519.PublicKey, error) {
	if d.Method() != MethodKey {
		return nil, fmt.Errorf("%s does not embed a public key", d.raw)
	}
	payload, err := base58.Decode(d.raw[len(keyPrefix)+1:])
	if err != nil {
		// DID was validated at construction; this is unreachable.
		panic(fmt.Sprintf("DID.PublicKey: internal error decoding %q: %v", d.raw, err))
	}
	return ed25519.PublicKey(payload[len(multicodecEd25519Pub):]), nil
}
