// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"

	"github.com/kiln-foundation/kiln/lib/did"
	"github.com/kiln-foundation/kiln/lib/identity"
)

// VerifySignature checks the proof against the issuer's resolved key
// material. Resolver errors are returned as-is so callers can
// distinguish "could not resolve" from "resolved and the signature is
// wrong"; everything else wraps ErrInvalidSignature.
func (c *Capability) VerifySignature(ctx context.Context, resolver identity.Resolver) error {
	resolution, err := resolver.Resolve(ctx, c.issuer)
	if err != nil {
		return fmt.Errorf("resolving issuer %s: %w", c.issuer, err)
	}
	if c.proof.Type == ProofJWT {
		return c.verifyJWS(resolution.Key)
	}
	return VerifyProof(c.proof, c.payloadBytes, resolution.Key)
}

// VerifyProof checks a detached proof over message with the signer's
// key material. Capabilities use it over their payload bytes; commit
// envelopes use it the same way. The JWS proof type is not detached
// and is rejected here.
func VerifyProof(proof Proof, message []byte, key identity.PublicKey) error {
	switch proof.Type {
	case ProofEd25519:
		publicKey, err := key.Ed25519()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		if len(proof.Signature) != ed25519.SignatureSize {
			return fmt.Errorf("%w: signature is %d bytes, want %d", ErrInvalidSignature, len(proof.Signature), ed25519.SignatureSize)
		}
		if !ed25519.Verify(publicKey, message, proof.Signature) {
			return ErrInvalidSignature
		}
		return nil

	case ProofEIP191:
		expected, err := key.Address()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		recovered, err := recoverPersonalSign(message, proof.Signature)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		if recovered != expected {
			return fmt.Errorf("%w: recovered signer %s, want %s", ErrInvalidSignature, recovered, expected)
		}
		return nil
	}
	return fmt.Errorf("%w: unsupported proof type %q", ErrInvalidSignature, proof.Type)
}

// SignEd25519 produces a detached Ed25519 proof over message.
func SignEd25519(key ed25519.PrivateKey, message []byte) Proof {
	return Proof{Type: ProofEd25519, Signature: ed25519.Sign(key, message)}
}

// SignEIP191 produces a detached personal-sign proof over message in
// the wallet layout, r || s || v.
func SignEIP191(key *secp256k1.PrivateKey, message []byte) Proof {
	compact := secpecdsa.SignCompact(key, personalSignDigest(message), false)
	signature := make([]byte, 65)
	copy(signature[:64], compact[1:])
	signature[64] = compact[0]
	return Proof{Type: ProofEIP191, Signature: signature}
}

// recoverPersonalSign recovers the Ethereum address that produced a
// personal-sign signature over message. The signature is the wallet
// layout, r || s || v, with v either 27/28 or already normalized to
// 0/1.
func recoverPersonalSign(message, signature []byte) (did.Address, error) {
	if len(signature) != 65 {
		return did.Address{}, fmt.Errorf("signature is %d bytes, want 65", len(signature))
	}
	v := signature[64]
	if v < 27 {
		v += 27
	}
	if v != 27 && v != 28 {
		return did.Address{}, fmt.Errorf("recovery id %d out of range", signature[64])
	}

	// RecoverCompact wants the header byte first.
	compact := make([]byte, 65)
	compact[0] = v
	copy(compact[1:], signature[:64])

	publicKey, _, err := secpecdsa.RecoverCompact(compact, personalSignDigest(message))
	if err != nil {
		return did.Address{}, fmt.Errorf("recovering key: %w", err)
	}
	return did.AddressFromPublicKey(publicKey), nil
}

// personalSignDigest computes the EIP-191 personal-sign digest of
// message: Keccak-256 over the "\x19Ethereum Signed Message:\n" prefix,
// the decimal message length, and the message itself.
func personalSignDigest(message []byte) []byte {
	hasher := sha3.NewLegacyKeccak256()
	fmt.Fprintf(hasher, "\x19Ethereum Signed Message:\n%d", len(message))
	hasher.Write(message)
	return hasher.Sum(nil)
}
