// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kiln-foundation/kiln/lib/codec"
	"github.com/kiln-foundation/kiln/lib/did"
	"github.com/kiln-foundation/kiln/lib/resource"
)

// ProofType identifies how a capability's payload was signed.
type ProofType string

const (
	// ProofEd25519 is a raw Ed25519 signature over the CBOR payload.
	// The issuer must be a did:key identifier.
	ProofEd25519 ProofType = "ed25519"

	// ProofEIP191 is an Ethereum personal-sign signature (EIP-191
	// prefix, Keccak-256 digest, recoverable secp256k1) over the CBOR
	// payload. The issuer must be a did:pkh account.
	ProofEIP191 ProofType = "eip191"

	// ProofJWT marks a capability carried as a compact JWS (EdDSA)
	// instead of the native CBOR envelope. The whole wire form is the
	// JWS; the signature field holds it verbatim.
	ProofJWT ProofType = "jwt"
)

// Proof is the signature block of a capability.
type Proof struct {
	Type      ProofType
	Signature []byte
}

// Errors returned by Parse, VerifySignature, and TemporallyValid.
var (
	ErrMalformed        = errors.New("capability: malformed")
	ErrInvalidSignature = errors.New("capability: invalid proof signature")
	ErrExpired          = errors.New("capability: expired")
	ErrNotYetValid      = errors.New("capability: not yet valid")
)

// payload is the signed CBOR body of a native capability envelope.
// Field numbers are the wire contract; they never change meaning.
type payload struct {
	Issuer    did.DID  `cbor:"1,keyasint"`
	Audience  did.DID  `cbor:"2,keyasint"`
	Resources []string `cbor:"3,keyasint,omitempty"`
	NotBefore int64    `cbor:"4,keyasint,omitempty"`
	ExpiresAt int64    `cbor:"5,keyasint,omitempty"`
	Nonce     string   `cbor:"6,keyasint,omitempty"`
}

// proofWire is the proof block as encoded on the wire, following the
// payload as a second CBOR item.
type proofWire struct {
	Type      string `cbor:"1,keyasint"`
	Signature []byte `cbor:"2,keyasint"`
}

// Capability is a parsed, validated delegation: the issuer grants the
// audience write access to the resource scopes, within an optional
// validity window, backed by the issuer's signature.
//
// A Capability is immutable after construction. Its resource scopes
// are parsed exactly once, here; decision-time matching never re-reads
// the raw strings.
type Capability struct {
	issuer    did.DID
	audience  did.DID
	resources []string
	scopes    resource.ScopeList
	notBefore int64
	expiresAt int64
	nonce     string
	proof     Proof

	// wire is the complete envelope as received or minted; id is its
	// content address. payloadBytes is the signed sub-slice for the
	// native CBOR form (nil for the JWS form, which is verified as a
	// whole).
	wire         []byte
	payloadBytes []byte
	id           ID
}

// Parse decodes and validates a capability envelope. Two wire forms
// are accepted: the native form (a CBOR payload item followed by a
// CBOR proof item) and a compact JWS. Parse checks structure only;
// signature and validity-window checks are separate so callers can
// report precisely what failed.
func Parse(data []byte) (*Capability, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty envelope", ErrMalformed)
	}
	if looksLikeJWS(data) {
		return parseJWS(data)
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

	var body payload
	if err := codec.Unmarshal(payloadRaw, &body); err != nil {
		return nil, fmt.Errorf("%w: decoding payload: %v", ErrMalformed, err)
	}
	var proof proofWire
	if err := codec.Unmarshal(proofRaw, &proof); err != nil {
		return nil, fmt.Errorf("%w: decoding proof: %v", ErrMalformed, err)
	}

	switch ProofType(proof.Type) {
	case ProofEd25519, ProofEIP191:
	case ProofJWT:
		// The JWS form is its own wire format; a native envelope
		// claiming it is confused.
		return nil, fmt.Errorf("%w: proof type %q inside a native envelope", ErrMalformed, proof.Type)
	default:
		return nil, fmt.Errorf("%w: unsupported proof type %q", ErrMalformed, proof.Type)
	}
	if len(proof.Signature) == 0 {
		return nil, fmt.Errorf("%w: empty proof signature", ErrMalformed)
	}

	cap, err := fromPayload(body, Proof{Type: ProofType(proof.Type), Signature: proof.Signature})
	if err != nil {
		return nil, err
	}
	cap.wire = data
	cap.payloadBytes = []byte(payloadRaw)
	cap.id = deriveID(data)
	return cap, nil
}

// fromPayload validates the decoded payload fields shared by both wire
// forms.
func fromPayload(body payload, proof Proof) (*Capability, error) {
	if body.Issuer.IsZero() {
		return nil, fmt.Errorf("%w: missing issuer", ErrMalformed)
	}
	if body.Audience.IsZero() {
		return nil, fmt.Errorf("%w: missing audience", ErrMalformed)
	}
	if body.NotBefore < 0 || body.ExpiresAt < 0 {
		return nil, fmt.Errorf("%w: negative validity bound", ErrMalformed)
	}
	if body.ExpiresAt != 0 && body.NotBefore > body.ExpiresAt {
		return nil, fmt.Errorf("%w: validity window is inverted", ErrMalformed)
	}

	return &Capability{
		issuer:    body.Issuer,
		audience:  body.Audience,
		resources: body.Resources,
		scopes:    resource.ParseScopes(body.Resources),
		notBefore: body.NotBefore,
		expiresAt: body.ExpiresAt,
		nonce:     body.Nonce,
		proof:     proof,
	}, nil
}

// looksLikeJWS reports whether data is a compact JWS rather than a
// CBOR envelope. A compact JWS is ASCII starting with the base64url
// JSON header ("eyJ") and has exactly two dot separators; a CBOR map
// never begins with an ASCII 'e'.
func looksLikeJWS(data []byte) bool {
	return bytes.HasPrefix(data, []byte("eyJ")) && bytes.Count(data, []byte(".")) == 2
}

// Issuer returns the DID that signed the capability.
func (c *Capability) Issuer() did.DID { return c.issuer }

// Audience returns the DID the capability was issued to.
func (c *Capability) Audience() did.DID { return c.audience }

// Resources returns the raw resource strings in payload order.
func (c *Capability) Resources() []string { return c.resources }

// Scopes returns the parsed resource scopes, position-aligned with
// Resources. Malformed entries parse to invalid scopes that match
// nothing.
func (c *Capability) Scopes() resource.ScopeList { return c.scopes }

// NotBefore returns the start of the validity window, or the zero time
// when the capability has no lower bound.
func (c *Capability) NotBefore() time.Time {
	if c.notBefore == 0 {
		return time.Time{}
	}
	return time.Unix(c.notBefore, 0).UTC()
}

// ExpiresAt returns the end of the validity window, or the zero time
// when the capability never expires.
func (c *Capability) ExpiresAt() time.Time {
	if c.expiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(c.expiresAt, 0).UTC()
}

// Nonce returns the mint-time nonce, or "" when absent.
func (c *Capability) Nonce() string { return c.nonce }

// Proof returns the signature block.
func (c *Capability) Proof() Proof { return c.proof }

// Bytes returns the complete wire envelope.
func (c *Capability) Bytes() []byte { return c.wire }

// ID returns the capability's content address: the keyed BLAKE3
// digest of the wire envelope. Revocation and audit records refer to
// capabilities by this ID.
func (c *Capability) ID() ID { return c.id }

// TemporallyValid checks the validity window against now. A
// capability is valid from NotBefore inclusive until ExpiresAt
// exclusive; a zero bound is unbounded on that side. Returns
// ErrNotYetValid or ErrExpired, or nil when the window admits now.
func (c *Capability) TemporallyValid(now time.Time) error {
	if c.notBefore != 0 && now.Unix() < c.notBefore {
		return ErrNotYetValid
	}
	if c.expiresAt != 0 && now.Unix() >= c.expiresAt {
		return ErrExpired
	}
	return nil
}
