// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package revocation

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kiln-foundation/kiln/lib/capability"
	"github.com/kiln-foundation/kiln/lib/codec"
	"github.com/kiln-foundation/kiln/lib/did"
	"github.com/kiln-foundation/kiln/lib/identity"
)

// Entry identifies a single capability to revoke.
type Entry struct {
	// ID is the content address of the capability.
	ID capability.ID `cbor:"1,keyasint"`

	// ExpiresAt is the capability's own expiry (Unix seconds), used
	// for registry auto-cleanup. Zero when the capability never
	// expires.
	ExpiresAt int64 `cbor:"2,keyasint,omitempty"`
}

// Request is a signed instruction to revoke one or more capabilities.
// The wire form follows the envelope convention: a CBOR payload item
// followed by a CBOR proof item.
type Request struct {
	// Issuer is the DID whose key signed the request. Derived from
	// the signing key; who is allowed to revoke is the receiver's
	// policy.
	Issuer did.DID

	// Entries lists the capabilities to revoke.
	Entries []Entry

	// IssuedAt is when the request was created (Unix seconds).
	IssuedAt int64
}

type requestPayload struct {
	Issuer   did.DID `cbor:"1,keyasint"`
	Entries  []Entry `cbor:"2,keyasint"`
	IssuedAt int64   `cbor:"3,keyasint"`
}

type requestProofWire struct {
	Type      string `cbor:"1,keyasint"`
	Signature []byte `cbor:"2,keyasint"`
}

// Errors returned by Verify.
var (
	ErrMalformed = errors.New("revocation: malformed request")
	ErrNoEntries = errors.New("revocation: request has no entries")
)

// Sign signs a revocation request with an Ed25519 key. The request
// issuer is the did:key identifier of the key's public half.
func Sign(key ed25519.PrivateKey, entries []Entry, issuedAt time.Time) ([]byte, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("revocation: private key is %d bytes, want %d", len(key), ed25519.PrivateKeySize)
	}
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}
	for i, entry := range entries {
		if entry.ID.IsZero() {
			return nil, fmt.Errorf("revocation: entry %d has a zero capability ID", i)
		}
	}

	body := requestPayload{
		Issuer:   did.FromPublicKey(key.Public().(ed25519.PublicKey)),
		Entries:  entries,
		IssuedAt: issuedAt.Unix(),
	}
	payloadBytes, err := codec.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("revocation: encoding request: %w", err)
	}
	proof := capability.SignEd25519(key, payloadBytes)
	proofBytes, err := codec.Marshal(requestProofWire{Type: string(proof.Type), Signature: proof.Signature})
	if err != nil {
		return nil, fmt.Errorf("revocation: encoding proof: %w", err)
	}

	wire := make([]byte, 0, len(payloadBytes)+len(proofBytes))
	wire = append(wire, payloadBytes...)
	wire = append(wire, proofBytes...)
	return wire, nil
}

// Verify decodes a signed revocation request and checks its proof
// against the issuer's resolved key. Resolver errors pass through
// unchanged; signature faults wrap capability.ErrInvalidSignature.
// Whether the issuer is entitled to revoke is the caller's policy,
// checked separately.
func Verify(ctx context.Context, resolver identity.Resolver, data []byte) (*Request, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty request", ErrMalformed)
	}
	decoder := codec.NewDecoder(bytes.NewReader(data))

	var payloadRaw codec.RawMessage
	if err := decoder.Decode(&payloadRaw); err != nil {
		return nil, fmt.Errorf("%w: reading payload: %v", ErrMalformed, err)
	}
	var proofRaw codec.RawMessage
	if err := decoder.Decode(&proofRaw); err != nil {
		return nil, fmt.Errorf("%w: reading proof: %v", ErrMalformed, err)
	}
	if err := decoder.Decode(new(codec.RawMessage)); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after proof", ErrMalformed)
	}

	var body requestPayload
	if err := codec.Unmarshal(payloadRaw, &body); err != nil {
		return nil, fmt.Errorf("%w: decoding payload: %v", ErrMalformed, err)
	}
	var proofBody requestProofWire
	if err := codec.Unmarshal(proofRaw, &proofBody); err != nil {
		return nil, fmt.Errorf("%w: decoding proof: %v", ErrMalformed, err)
	}
	if body.Issuer.IsZero() {
		return nil, fmt.Errorf("%w: missing issuer", ErrMalformed)
	}
	if len(body.Entries) == 0 {
		return nil, ErrNoEntries
	}

	resolution, err := resolver.Resolve(ctx, body.Issuer)
	if err != nil {
		return nil, fmt.Errorf("resolving revocation issuer %s: %w", body.Issuer, err)
	}
	proof := capability.Proof{Type: capability.ProofType(proofBody.Type), Signature: proofBody.Signature}
	if err := capability.VerifyProof(proof, []byte(payloadRaw), resolution.Key); err != nil {
		return nil, err
	}

	return &Request{
		Issuer:   body.Issuer,
		Entries:  body.Entries,
		IssuedAt: body.IssuedAt,
	}, nil
}
