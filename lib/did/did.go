// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package did

import (
	"errors"
	"fmt"
	"strings"
)

// Method identifies the DID method of a parsed identifier.
type Method uint8

const (
	// MethodKey is the did:key method: the identifier self-certifies
	// an Ed25519 public key.
	MethodKey Method = iota + 1

	// MethodPKH is the did:pkh method (CAIP-10 blockchain accounts).
	// Kiln supports the eip155 namespace: Ethereum accounts identified
	// by chain ID and address.
	MethodPKH
)

// String returns the method name as it appears in the identifier.
func (m Method) String() string {
	switch m {
	case MethodKey:
		return "key"
	case MethodPKH:
		return "pkh"
	default:
		return fmt.Sprintf("Method(%d)", m)
	}
}

// DID is a validated decentralized identifier (e.g.
// "did:key:z6Mkh..." or "did:pkh:eip155:1:0x5aAe...").
//
// DID is an immutable value type, canonical in its string form:
// two DIDs naming the same subject compare equal with ==. The zero
// value is not valid; use IsZero to check.
type DID struct {
	raw string
}

// Parse validates and canonicalizes a raw DID string. Returns an
// error if the string is empty, uses an unsupported method, or fails
// the method's structural rules.
func Parse(raw string) (DID, error) {
	switch {
	case raw == "":
		return DID{}, errors.New("empty DID")
	case strings.HasPrefix(raw, keyPrefix):
		return parseKey(raw)
	case strings.HasPrefix(raw, pkhPrefix):
		return parsePKH(raw)
	default:
		return DID{}, fmt.Errorf("unsupported DID method in %q", raw)
	}
}

// Method returns the DID method. Panics if called on a zero-value DID.
func (d DID) Method() Method {
	switch {
	case d.raw == "":
		panic("DID.Method called on zero value")
	case strings.HasPrefix(d.raw, keyPrefix):
		return MethodKey
	case strings.HasPrefix(d.raw, pkhPrefix):
		return MethodPKH
	default:
		// DID was validated at construction; this is unreachable.
		panic(fmt.Sprintf("DID.Method: internal error: unknown method in %q", d.raw))
	}
}

// String returns the canonical identifier string.
func (d DID) String() string { return d.raw }

// IsZero reports whether the DID is the zero value (uninitialized).
func (d DID) IsZero() bool { return d.raw == "" }

// Equal reports whether two DIDs name the same subject. Equivalent to
// == (DIDs are canonical), provided for readability at call sites.
func (d DID) Equal(other DID) bool { return d == other }

// MarshalText implements encoding.TextMarshaler for JSON, CBOR, and
// other text-based serialization formats.
func (d DID) MarshalText() ([]byte, error) {
	if d.raw == "" {
		return []byte{}, nil
	}
	return []byte(d.raw), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Validates and
// canonicalizes the identifier. An empty input produces the zero
// value (unset DID).
func (d *DID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*d = DID{}
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
