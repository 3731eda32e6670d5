// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/kiln-foundation/kiln/lib/did"
)

// StaticResolver resolves a fixed set of identities. Key material is
// derived from the DIDs themselves (the supported methods are
// self-certifying); what the static set adds is membership and parent
// links. DIDs outside the set resolve to ErrUnknownIdentity.
//
// StaticResolver is safe for concurrent use. It backs tests and the
// offline CLI; daemons use RegistryResolver, which loads the same
// shape from a file.
type StaticResolver struct {
	mu      sync.RWMutex
	builtin BuiltinResolver
	entries map[did.DID]Identity
}

// NewStaticResolver returns an empty resolver.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{entries: make(map[did.DID]Identity)}
}

// Register adds an identity to the set. Registering the same DID again
// replaces its parent link. Returns an error for a zero DID or an
// identity parented to itself.
func (r *StaticResolver) Register(identity Identity) error {
	if identity.DID.IsZero() {
		return fmt.Errorf("register zero DID")
	}
	if identity.Parent == identity.DID {
		return fmt.Errorf("identity %s cannot be its own parent", identity.DID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[identity.DID] = identity
	return nil
}

// Resolve returns the registered identity with key material derived
// from the DID. Unregistered DIDs fail with ErrUnknownIdentity.
func (r *StaticResolver) Resolve(ctx context.Context, id did.DID) (Resolution, error) {
	r.mu.RLock()
	identity, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return Resolution{}, fmt.Errorf("resolving %s: %w", id, ErrUnknownIdentity)
	}

	resolution, err := r.builtin.Resolve(ctx, id)
	if err != nil {
		return Resolution{}, err
	}
	resolution.Identity = identity
	return resolution, nil
}

// Len returns the number of registered identities.
func (r *StaticResolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
