// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/kiln-foundation/kiln/lib/did"
)

// BuiltinResolver resolves the self-certifying DID methods without any
// external state: did:key identifiers embed their Ed25519 public key,
// and did:pkh identifiers embed their account address. It never
// returns a parent; parent links require a registry.
type BuiltinResolver struct{}

// NewBuiltinResolver returns the stateless resolver.
func NewBuiltinResolver() BuiltinResolver {
	return BuiltinResolver{}
}

// Resolve derives key material from the identifier itself.
func (BuiltinResolver) Resolve(_ context.Context, id did.DID) (Resolution, error) {
	if id.IsZero() {
		return Resolution{}, errors.New("resolve zero DID")
	}

	switch id.Method() {
	case did.MethodKey:
		key, err := id.PublicKey()
		if err != nil {
			return Resolution{}, fmt.Errorf("resolving %s: %w", id, err)
		}
		return Resolution{
			Identity: Identity{DID: id},
			Key:      PublicKey{Algorithm: AlgorithmEd25519, Bytes: key},
		}, nil

	case did.MethodPKH:
		_, address, err := id.Account()
		if err != nil {
			return Resolution{}, fmt.Errorf("resolving %s: %w", id, err)
		}
		return Resolution{
			Identity: Identity{DID: id},
			Key:      PublicKey{Algorithm: AlgorithmEIP155, Bytes: address[:]},
		}, nil

	default:
		return Resolution{}, fmt.Errorf("resolving %s: unsupported method %s", id, id.Method())
	}
}
