// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/zeebo/blake3"

	"github.com/kiln-foundation/kiln/lib/capability"
	"github.com/kiln-foundation/kiln/lib/codec"
	"github.com/kiln-foundation/kiln/lib/did"
	"github.com/kiln-foundation/kiln/lib/identity"
	"github.com/kiln-foundation/kiln/lib/streamid"
)

// ErrMalformed reports a commit envelope that does not decode or is
// structurally inconsistent.
var ErrMalformed = errors.New("stream: malformed commit")

// commitIDPrefix is the text prefix of a rendered commit ID.
const commitIDPrefix = "com-"

// commitDomainKey is the BLAKE3 key for commit content addresses, the
// ASCII domain string zero padded to 32 bytes.
var commitDomainKey = [32]byte{
	'k', 'i', 'l', 'n', '.',
	's', 't', 'r', 'e', 'a', 'm', '.',
	'c', 'o', 'm', 'm', 'i', 't',
}

// CommitID is the content address of a commit envelope.
type CommitID [32]byte

func deriveCommitID(wire []byte) CommitID {
	hasher, err := blake3.NewKeyed(commitDomainKey[:])
	if err != nil {
		// NewKeyed fails only on a key that is not 32 bytes.
		panic("stream: keyed hasher: " + err.Error())
	}
	hasher.Write(wire)
	var id CommitID
	hasher.Digest().Read(id[:])
	return id
}

// ParseCommitID parses the text form produced by String.
func ParseCommitID(text string) (CommitID, error) {
	rest, ok := strings.CutPrefix(text, commitIDPrefix)
	if !ok {
		return CommitID{}, fmt.Errorf("commit ID %q: missing %q prefix", text, commitIDPrefix)
	}
	raw, err := hex.DecodeString(rest)
	if err != nil {
		return CommitID{}, fmt.Errorf("commit ID %q: %w", text, err)
	}
	if len(raw) != len(CommitID{}) {
		return CommitID{}, fmt.Errorf("commit ID %q: digest is %d bytes, want %d", text, len(raw), len(CommitID{}))
	}
	var id CommitID
	copy(id[:], raw)
	return id, nil
}

// String renders the full ID, "com-" followed by 64 hex digits.
func (id CommitID) String() string {
	return commitIDPrefix + hex.EncodeToString(id[:])
}

// IsZero reports whether the ID is unset.
func (id CommitID) IsZero() bool { return id == CommitID{} }

// MarshalText implements encoding.TextMarshaler. A zero ID encodes as
// the empty string.
func (id CommitID) MarshalText() ([]byte, error) {
	if id.IsZero() {
		return nil, nil
	}
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces a zero ID.
func (id *CommitID) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*id = CommitID{}
		return nil
	}
	parsed, err := ParseCommitID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// commitPayload is the signed CBOR body of a commit envelope. Field
// numbers are the wire contract.
type commitPayload struct {
	Stream     streamid.StreamID `cbor:"1,keyasint"`
	Signer     did.DID           `cbor:"2,keyasint"`
	Data       []byte            `cbor:"3,keyasint,omitempty"`
	Prev       CommitID          `cbor:"4,keyasint"`
	Capability []byte            `cbor:"5,keyasint,omitempty"`
}

// Commit is a parsed commit envelope. Immutable after construction.
type Commit struct {
	stream     streamid.StreamID
	signer     did.DID
	data       []byte
	prev       CommitID
	capability []byte
	proof      capability.Proof

	wire         []byte
	payloadBytes []byte
	id           CommitID
}

// CommitParams describes a commit to sign. The signer is always
// derived from the signing key.
type CommitParams struct {
	// Stream is the target. Required.
	Stream streamid.StreamID

	// Data is the opaque mutation body. May be empty for control
	// commits.
	Data []byte

	// Prev links to the previous commit; zero for a genesis write.
	Prev CommitID

	// Capability is the wire envelope of the capability justifying a
	// delegated write, or nil when the signer writes in its own
	// right.
	Capability []byte
}

func sealCommit(body commitPayload, sign func(payloadBytes []byte) capability.Proof) (*Commit, error) {
	if body.Stream.IsZero() {
		return nil, fmt.Errorf("sign commit: stream is required")
	}
	payloadBytes, err := codec.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("sign commit: encoding payload: %w", err)
	}
	proof := sign(payloadBytes)
	proofBytes, err := codec.Marshal(commitProofWire{Type: string(proof.Type), Signature: proof.Signature})
	if err != nil {
		return nil, fmt.Errorf("sign commit: encoding proof: %w", err)
	}

	wire := make([]byte, 0, len(payloadBytes)+len(proofBytes))
	wire = append(wire, payloadBytes...)
	wire = append(wire, proofBytes...)

	return &Commit{
		stream:       body.Stream,
		signer:       body.Signer,
		data:         body.Data,
		prev:         body.Prev,
		capability:   body.Capability,
		proof:        proof,
		wire:         wire,
		payloadBytes: payloadBytes,
		id:           deriveCommitID(wire),
	}, nil
}

// commitProofWire mirrors the capability proof block; commits use the
// same detached proof forms.
type commitProofWire struct {
	Type      string `cbor:"1,keyasint"`
	Signature []byte `cbor:"2,keyasint"`
}

// SignCommit signs a commit with an Ed25519 key. The signer is the
// did:key identifier of the key's public half.
func SignCommit(params CommitParams, key ed25519.PrivateKey) (*Commit, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("sign commit: private key is %d bytes, want %d", len(key), ed25519.PrivateKeySize)
	}
	signer := did.FromPublicKey(key.Public().(ed25519.PublicKey))
	body := commitPayload{
		Stream:     params.Stream,
		Signer:     signer,
		Data:       params.Data,
		Prev:       params.Prev,
		Capability: params.Capability,
	}
	return sealCommit(body, func(payloadBytes []byte) capability.Proof {
		return capability.SignEd25519(key, payloadBytes)
	})
}

// SignCommitEIP191 signs a commit with an Ethereum personal-sign
// signature. The signer is the did:pkh account of the key on the
// given eip155 chain.
func SignCommitEIP191(params CommitParams, chainID uint64, key *secp256k1.PrivateKey) (*Commit, error) {
	if key == nil {
		return nil, fmt.Errorf("sign commit: nil private key")
	}
	if chainID == 0 {
		return nil, fmt.Errorf("sign commit: chain ID is required")
	}
	signer := did.FromAccount(chainID, did.AddressFromPublicKey(key.PubKey()))
	body := commitPayload{
		Stream:     params.Stream,
		Signer:     signer,
		Data:       params.Data,
		Prev:       params.Prev,
		Capability: params.Capability,
	}
	return sealCommit(body, func(payloadBytes []byte) capability.Proof {
		return capability.SignEIP191(key, payloadBytes)
	})
}

// ParseCommit decodes and validates a commit envelope: a CBOR payload
// item followed by a CBOR proof item. The embedded capability, if
// any, is not parsed here; the authorization engine does that so it
// can classify capability faults precisely.
func ParseCommit(data []byte) (*Commit, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty envelope", ErrMalformed)
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

	var body commitPayload
	if err := codec.Unmarshal(payloadRaw, &body); err != nil {
		return nil, fmt.Errorf("%w: decoding payload: %v", ErrMalformed, err)
	}
	var proof commitProofWire
	if err := codec.Unmarshal(proofRaw, &proof); err != nil {
		return nil, fmt.Errorf("%w: decoding proof: %v", ErrMalformed, err)
	}

	if body.Stream.IsZero() {
		return nil, fmt.Errorf("%w: missing stream", ErrMalformed)
	}
	if body.Signer.IsZero() {
		return nil, fmt.Errorf("%w: missing signer", ErrMalformed)
	}
	switch capability.ProofType(proof.Type) {
	case capability.ProofEd25519, capability.ProofEIP191:
	default:
		// Commits are always signed detached; the JWS form exists
		// only for capabilities.
		return nil, fmt.Errorf("%w: unsupported proof type %q", ErrMalformed, proof.Type)
	}
	if len(proof.Signature) == 0 {
		return nil, fmt.Errorf("%w: empty proof signature", ErrMalformed)
	}

	return &Commit{
		stream:       body.Stream,
		signer:       body.Signer,
		data:         body.Data,
		prev:         body.Prev,
		capability:   body.Capability,
		proof:        capability.Proof{Type: capability.ProofType(proof.Type), Signature: proof.Signature},
		wire:         data,
		payloadBytes: []byte(payloadRaw),
		id:           deriveCommitID(data),
	}, nil
}

// Stream returns the target stream.
func (c *Commit) Stream() streamid.StreamID { return c.stream }

// Signer returns the DID that signed the commit.
func (c *Commit) Signer() did.DID { return c.signer }

// Data returns the opaque mutation body.
func (c *Commit) Data() []byte { return c.data }

// Prev returns the previous commit's address, zero for a genesis
// write.
func (c *Commit) Prev() CommitID { return c.prev }

// CapabilityEnvelope returns the attached capability's wire bytes, or
// nil when the signer writes in its own right.
func (c *Commit) CapabilityEnvelope() []byte { return c.capability }

// HasCapability reports whether a capability envelope is attached.
func (c *Commit) HasCapability() bool { return len(c.capability) > 0 }

// Proof returns the signature block.
func (c *Commit) Proof() capability.Proof { return c.proof }

// SignedBytes returns the exact bytes the proof signs.
func (c *Commit) SignedBytes() []byte { return c.payloadBytes }

// Bytes returns the complete wire envelope.
func (c *Commit) Bytes() []byte { return c.wire }

// ID returns the commit's content address.
func (c *Commit) ID() CommitID { return c.id }

// VerifySignature checks the proof against the signer's resolved key
// material. Resolver errors pass through unchanged; signature faults
// wrap capability.ErrInvalidSignature.
func (c *Commit) VerifySignature(ctx context.Context, resolver identity.Resolver) error {
	resolution, err := resolver.Resolve(ctx, c.signer)
	if err != nil {
		return fmt.Errorf("resolving signer %s: %w", c.signer, err)
	}
	return capability.VerifyProof(c.proof, c.payloadBytes, resolution.Key)
}
