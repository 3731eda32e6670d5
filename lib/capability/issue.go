// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/google/uuid"

	"github.com/kiln-foundation/kiln/lib/codec"
	"github.com/kiln-foundation/kiln/lib/did"
	"github.com/kiln-foundation/kiln/lib/resource"
)

// IssueParams describes the delegation to mint. The issuer is always
// derived from the signing key, so it cannot disagree with the proof.
type IssueParams struct {
	// Audience receives the delegation. Required.
	Audience did.DID

	// Resources are the scope strings the capability covers. Every
	// entry must parse to a satisfiable scope; minting a capability
	// that can never match is refused. An empty list is allowed and
	// covers nothing.
	Resources []string

	// NotBefore and ExpiresAt bound the validity window. A zero time
	// leaves that side unbounded. Seconds precision; sub-second parts
	// are dropped.
	NotBefore time.Time
	ExpiresAt time.Time

	// Nonce distinguishes otherwise identical delegations. Left
	// empty, a random UUID is used.
	Nonce string
}

// buildPayload validates params and assembles the signed body.
func buildPayload(issuer did.DID, params IssueParams) (payload, error) {
	if params.Audience.IsZero() {
		return payload{}, fmt.Errorf("issue capability: audience is required")
	}
	for i, raw := range params.Resources {
		scope := resource.ParseScope(raw)
		if scope.Kind() == resource.KindInvalid {
			return payload{}, fmt.Errorf("issue capability: resource %d: %q is not a valid scope", i, raw)
		}
		if scope.Kind() == resource.KindModelWildcard && scope.Model().IsZero() {
			return payload{}, fmt.Errorf("issue capability: resource %d: %q can never match", i, raw)
		}
	}
	var notBefore, expiresAt int64
	if !params.NotBefore.IsZero() {
		notBefore = params.NotBefore.Unix()
	}
	if !params.ExpiresAt.IsZero() {
		expiresAt = params.ExpiresAt.Unix()
	}
	if expiresAt != 0 && notBefore >= expiresAt {
		return payload{}, fmt.Errorf("issue capability: validity window is empty")
	}
	nonce := params.Nonce
	if nonce == "" {
		nonce = uuid.NewString()
	}
	return payload{
		Issuer:    issuer,
		Audience:  params.Audience,
		Resources: params.Resources,
		NotBefore: notBefore,
		ExpiresAt: expiresAt,
		Nonce:     nonce,
	}, nil
}

// sealNative encodes the payload, signs it with sign, and assembles
// the native two-item envelope.
func sealNative(body payload, sign func(payloadBytes []byte) Proof) (*Capability, error) {
	payloadBytes, err := codec.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("issue capability: encoding payload: %w", err)
	}
	proof := sign(payloadBytes)
	proofBytes, err := codec.Marshal(proofWire{Type: string(proof.Type), Signature: proof.Signature})
	if err != nil {
		return nil, fmt.Errorf("issue capability: encoding proof: %w", err)
	}

	wire := make([]byte, 0, len(payloadBytes)+len(proofBytes))
	wire = append(wire, payloadBytes...)
	wire = append(wire, proofBytes...)

	cap, err := fromPayload(body, proof)
	if err != nil {
		// buildPayload enforces stricter rules than fromPayload;
		// this is unreachable.
		return nil, err
	}
	cap.wire = wire
	cap.payloadBytes = payloadBytes
	cap.id = deriveID(wire)
	return cap, nil
}

// Issue mints a capability signed with an Ed25519 key. The issuer is
// the did:key identifier of the key's public half.
func Issue(params IssueParams, key ed25519.PrivateKey) (*Capability, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("issue capability: private key is %d bytes, want %d", len(key), ed25519.PrivateKeySize)
	}
	issuer := did.FromPublicKey(key.Public().(ed25519.PublicKey))
	body, err := buildPayload(issuer, params)
	if err != nil {
		return nil, err
	}
	return sealNative(body, func(payloadBytes []byte) Proof {
		return SignEd25519(key, payloadBytes)
	})
}

// IssueEIP191 mints a capability signed the way Ethereum wallets sign
// arbitrary messages: the CBOR payload is prefixed per EIP-191,
// digested with Keccak-256, and signed with a recoverable secp256k1
// signature. The issuer is the did:pkh account of the key on the
// given eip155 chain.
func IssueEIP191(params IssueParams, chainID uint64, key *secp256k1.PrivateKey) (*Capability, error) {
	if key == nil {
		return nil, fmt.Errorf("issue capability: nil private key")
	}
	if chainID == 0 {
		return nil, fmt.Errorf("issue capability: chain ID is required")
	}
	issuer := did.FromAccount(chainID, did.AddressFromPublicKey(key.PubKey()))
	body, err := buildPayload(issuer, params)
	if err != nil {
		return nil, err
	}
	return sealNative(body, func(payloadBytes []byte) Proof {
		return SignEIP191(key, payloadBytes)
	})
}
