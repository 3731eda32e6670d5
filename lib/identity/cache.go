// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kiln-foundation/kiln/lib/clock"
	"github.com/kiln-foundation/kiln/lib/did"
)

// CachingResolver wraps another resolver with a TTL cache. Concurrent
// requests for the same uncached DID are collapsed into a single
// delegate call. Only successful resolutions are cached: an error must
// not suppress retries, because the engine fails closed while the
// resolver is unavailable.
type CachingResolver struct {
	delegate Resolver
	clock    clock.Clock
	ttl      time.Duration

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[did.DID]cacheEntry
}

type cacheEntry struct {
	resolution Resolution
	expires    time.Time
}

// NewCachingResolver wraps delegate with a cache holding resolutions
// for ttl. Panics on a non-positive ttl; a cache that never holds
// anything is a configuration mistake, not a mode.
func NewCachingResolver(delegate Resolver, clk clock.Clock, ttl time.Duration) *CachingResolver {
	if ttl <= 0 {
		panic("identity: non-positive cache TTL")
	}
	return &CachingResolver{
		delegate: delegate,
		clock:    clk,
		ttl:      ttl,
		entries:  make(map[did.DID]cacheEntry),
	}
}

// Resolve returns the cached resolution when fresh, otherwise asks the
// delegate (once per DID across concurrent callers) and caches the
// answer.
func (r *CachingResolver) Resolve(ctx context.Context, id did.DID) (Resolution, error) {
	now := r.clock.Now()

	r.mu.RLock()
	entry, ok := r.entries[id]
	r.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.resolution, nil
	}

	value, err, _ := r.group.Do(id.String(), func() (any, error) {
		resolution, err := r.delegate.Resolve(ctx, id)
		if err != nil {
			return Resolution{}, err
		}
		r.mu.Lock()
		r.entries[id] = cacheEntry{
			resolution: resolution,
			expires:    r.clock.Now().Add(r.ttl),
		}
		r.mu.Unlock()
		return resolution, nil
	})
	if err != nil {
		return Resolution{}, err
	}
	return value.(Resolution), nil
}

// Invalidate drops the cached resolution for id, forcing the next
// Resolve to ask the delegate. Used when a revocation names an issuer
// whose session bindings may have changed.
func (r *CachingResolver) Invalidate(id did.DID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Len returns the number of cached resolutions, fresh or expired.
func (r *CachingResolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
