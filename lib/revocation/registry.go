// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package revocation tracks capabilities that were withdrawn before
// their natural expiry.
//
// The registry is an in-memory set of capability IDs. It auto-cleans:
// once a revoked capability's own validity window has passed, the
// temporal check denies it regardless, so the entry can be dropped.
// Revocations arrive as signed requests so that holders of an issuer
// key can withdraw delegations out-of-band.
package revocation

import (
	"sync"
	"time"

	"github.com/kiln-foundation/kiln/lib/capability"
)

// registryEntry tracks a revoked capability and its natural expiry. A
// zero expiry means the capability never expires; its entry is kept
// for the life of the process.
type registryEntry struct {
	capExpiresAt time.Time
}

// Registry is a thread-safe set of revoked capability IDs.
type Registry struct {
	mu      sync.RWMutex
	entries map[capability.ID]registryEntry
}

// NewRegistry creates an empty revocation registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[capability.ID]registryEntry),
	}
}

// Revoke marks a capability as withdrawn. capExpiresAt is the
// capability's own expiry; pass the zero time for capabilities with
// no expiry.
func (r *Registry) Revoke(id capability.ID, capExpiresAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = registryEntry{capExpiresAt: capExpiresAt}
}

// IsRevoked reports whether a capability has been revoked.
func (r *Registry) IsRevoked(id capability.ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.entries[id]
	return exists
}

// Cleanup removes entries whose capability has expired on its own.
// Call periodically; returns the number of entries removed.
func (r *Registry) Cleanup(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, entry := range r.entries {
		if entry.capExpiresAt.IsZero() {
			continue
		}
		if !now.Before(entry.capExpiresAt) {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}

// Apply revokes every entry of a verified request. Returns the number
// of entries added.
func (r *Registry) Apply(request *Request) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range request.Entries {
		expiry := time.Time{}
		if entry.ExpiresAt != 0 {
			expiry = time.Unix(entry.ExpiresAt, 0)
		}
		r.entries[entry.ID] = registryEntry{capExpiresAt: expiry}
	}
	return len(request.Entries)
}

// Len returns the current number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
