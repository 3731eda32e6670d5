// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"crypto/subtle"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer holds key material in an anonymous mmap region outside the
// Go heap: mlocked so it cannot reach swap, marked MADV_DONTDUMP so
// it never lands in a core file, and zeroed on Close. Accessing a
// closed Buffer panics.
//
// Do not copy a Buffer after creation.
type Buffer struct {
	mu     sync.Mutex
	region []byte
	size   int
	closed bool
}

// New allocates a protected buffer of the given size. The caller owns
// it and must Close it once the secret is no longer needed.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: buffer size must be positive, got %d", size)
	}

	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap failed: %w", err)
	}
	if err := protect(region); err != nil {
		unix.Munmap(region)
		return nil, err
	}
	return &Buffer{region: region, size: size}, nil
}

// protect pins the region in RAM and keeps it out of core dumps.
func protect(region []byte) error {
	if err := unix.Mlock(region); err != nil {
		return fmt.Errorf("secret: mlock failed: %w", err)
	}
	if err := unix.Madvise(region, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(region)
		return fmt.Errorf("secret: madvise(MADV_DONTDUMP) failed: %w", err)
	}
	return nil
}

// NewFromBytes moves source into a protected buffer. The source slice
// is zeroed in place once copied, so only the buffer holds the secret
// afterwards.
func NewFromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("secret: cannot create buffer from empty source")
	}
	buffer, err := New(len(source))
	if err != nil {
		return nil, err
	}
	copy(buffer.region, source)
	Zero(source)
	return buffer, nil
}

// view returns the live contents. Callers hold b.mu.
func (b *Buffer) view() []byte {
	if b.closed {
		panic("secret: read from closed buffer")
	}
	return b.region[:b.size]
}

// Bytes returns the secret, aliasing the protected region directly.
// The slice dies with the Buffer; never retain it past Close.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.view()
}

// String copies the secret into an ordinary heap string for API
// boundaries that demand one. The copy is outside the protected
// region, so prefer Bytes where a slice is accepted.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.view())
}

// Len returns the secret's size in bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Equal compares two buffers in constant time. Panics if either is
// closed.
func (b *Buffer) Equal(other *Buffer) bool {
	return subtle.ConstantTimeCompare(b.Bytes(), other.Bytes()) == 1
}

// Close zeros the contents and releases the mapping. Idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	clear(b.region)

	// The mapping is reclaimed at process exit regardless, so report
	// the first teardown failure but always finish.
	var firstErr error
	if err := unix.Munlock(b.region); err != nil {
		firstErr = fmt.Errorf("secret: munlock failed: %w", err)
	}
	if err := unix.Munmap(b.region); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("secret: munmap failed: %w", err)
	}
	b.region = nil
	return firstErr
}

// Zero scrubs a transient slice that held secret material outside a
// Buffer.
func Zero(data []byte) {
	clear(data)
}
