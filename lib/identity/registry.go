// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/kiln-foundation/kiln/lib/did"
)

// RegistryResolver resolves identities from a registry file: the
// deployment's record of which session keys belong to which accounts.
// Key material still comes from the self-certifying DIDs; the registry
// contributes membership and parent links.
//
// The file is JSONC (JSON extended with // line comments, /* block
// comments */, and trailing commas):
//
//	{
//	  // Deny DIDs that are not listed below. When false, unlisted
//	  // DIDs resolve through the builtin rules with no parent.
//	  "strict": true,
//	  "identities": [
//	    {"did": "did:pkh:eip155:1:0x5aAe..."},
//	    {"did": "did:key:z6Mkh...", "parent": "did:pkh:eip155:1:0x5aAe..."},
//	  ],
//	}
type RegistryResolver struct {
	strict  bool
	builtin BuiltinResolver
	entries map[did.DID]Identity
}

// registryFile is the on-disk shape of a registry.
type registryFile struct {
	Strict     bool            `json:"strict"`
	Identities []registryEntry `json:"identities"`
}

type registryEntry struct {
	DID    did.DID `json:"did"`
	Parent did.DID `json:"parent,omitempty"`
}

// ParseRegistry strips JSONC comments and trailing commas from data,
// then builds a resolver from the result. Every listed DID must parse;
// parent references must name another listed identity so a stale
// registry cannot silently orphan a session key.
func ParseRegistry(data []byte) (*RegistryResolver, error) {
	stripped := jsonc.ToJSON(data)

	var file registryFile
	if err := json.Unmarshal(stripped, &file); err != nil {
		return nil, fmt.Errorf("parsing identity registry: %w", err)
	}

	entries := make(map[did.DID]Identity, len(file.Identities))
	for i, entry := range file.Identities {
		if entry.DID.IsZero() {
			return nil, fmt.Errorf("identity registry entry %d has no did", i)
		}
		if entry.Parent == entry.DID {
			return nil, fmt.Errorf("identity %s cannot be its own parent", entry.DID)
		}
		if _, dup := entries[entry.DID]; dup {
			return nil, fmt.Errorf("identity %s listed twice", entry.DID)
		}
		entries[entry.DID] = Identity{DID: entry.DID, Parent: entry.Parent}
	}

	for _, identity := range entries {
		if identity.HasParent() {
			if _, ok := entries[identity.Parent]; !ok {
				return nil, fmt.Errorf("identity %s has parent %s, which is not in the registry", identity.DID, identity.Parent)
			}
		}
	}

	return &RegistryResolver{strict: file.Strict, entries: entries}, nil
}

// LoadRegistry reads a JSONC registry file from disk and parses it.
func LoadRegistry(path string) (*RegistryResolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	resolver, err := ParseRegistry(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return resolver, nil
}

// Resolve returns the registered identity, or falls through to the
// builtin rules for unlisted DIDs when the registry is not strict.
func (r *RegistryResolver) Resolve(ctx context.Context, id did.DID) (Resolution, error) {
	identity, listed := r.entries[id]
	if !listed {
		if r.strict {
			return Resolution{}, fmt.Errorf("resolving %s: %w", id, ErrUnknownIdentity)
		}
		return r.builtin.Resolve(ctx, id)
	}

	resolution, err := r.builtin.Resolve(ctx, id)
	if err != nil {
		return Resolution{}, err
	}
	resolution.Identity = identity
	return resolution, nil
}

// Len returns the number of listed identities.
func (r *RegistryResolver) Len() int { return len(r.entries) }

// Strict reports whether unlisted DIDs are denied resolution.
func (r *RegistryResolver) Strict() bool { return r.strict }
