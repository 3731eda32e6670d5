// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kiln-foundation/kiln/lib/did"
	"github.com/kiln-foundation/kiln/lib/identity"
)

// jwtClaims is the claim set of the JWS wire form. Registered claims
// carry the standard fields; the resource scopes ride in a private
// "rsc" claim.
type jwtClaims struct {
	jwt.RegisteredClaims
	Resources []string `json:"rsc,omitempty"`
}

// IssueJWT mints a capability as a compact JWS signed with EdDSA. The
// claims mirror the native payload: iss, aud, nbf, exp, jti, and the
// scopes under "rsc". Wallets and services that speak JWT can verify
// these without knowing the CBOR envelope.
func IssueJWT(params IssueParams, key ed25519.PrivateKey) (*Capability, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("issue capability: private key is %d bytes, want %d", len(key), ed25519.PrivateKeySize)
	}
	issuer := did.FromPublicKey(key.Public().(ed25519.PublicKey))
	body, err := buildPayload(issuer, params)
	if err != nil {
		return nil, err
	}

	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   body.Issuer.String(),
			Audience: jwt.ClaimStrings{body.Audience.String()},
			ID:       body.Nonce,
		},
		Resources: body.Resources,
	}
	if body.NotBefore != 0 {
		claims.NotBefore = jwt.NewNumericDate(time.Unix(body.NotBefore, 0))
	}
	if body.ExpiresAt != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Unix(body.ExpiresAt, 0))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(key)
	if err != nil {
		return nil, fmt.Errorf("issue capability: signing JWS: %w", err)
	}
	wire := []byte(signed)

	cap, err := fromPayload(body, Proof{Type: ProofJWT, Signature: wire})
	if err != nil {
		// buildPayload enforces stricter rules than fromPayload;
		// this is unreachable.
		return nil, err
	}
	cap.wire = wire
	cap.id = deriveID(wire)
	return cap, nil
}

// parseJWS decodes the claims of a compact JWS without verifying it.
// Verification happens later against the resolved issuer key, like
// the native form.
func parseJWS(data []byte) (*Capability, error) {
	var claims jwtClaims
	if _, _, err := jwt.NewParser().ParseUnverified(string(data), &claims); err != nil {
		return nil, fmt.Errorf("%w: decoding JWS: %v", ErrMalformed, err)
	}
	if len(claims.Audience) != 1 {
		return nil, fmt.Errorf("%w: JWS has %d audiences, want exactly 1", ErrMalformed, len(claims.Audience))
	}
	issuer, err := did.Parse(claims.Issuer)
	if err != nil {
		return nil, fmt.Errorf("%w: JWS issuer: %v", ErrMalformed, err)
	}
	audience, err := did.Parse(claims.Audience[0])
	if err != nil {
		return nil, fmt.Errorf("%w: JWS audience: %v", ErrMalformed, err)
	}

	body := payload{
		Issuer:    issuer,
		Audience:  audience,
		Resources: claims.Resources,
		Nonce:     claims.ID,
	}
	if claims.NotBefore != nil {
		body.NotBefore = claims.NotBefore.Unix()
	}
	if claims.ExpiresAt != nil {
		body.ExpiresAt = claims.ExpiresAt.Unix()
	}

	cap, err := fromPayload(body, Proof{Type: ProofJWT, Signature: data})
	if err != nil {
		return nil, err
	}
	cap.wire = data
	cap.id = deriveID(data)
	return cap, nil
}

// verifyJWS checks the JWS signature with the issuer's Ed25519 key.
// Only EdDSA is admitted; claim validation stays with TemporallyValid
// so the decision engine controls the clock.
func (c *Capability) verifyJWS(key identity.PublicKey) error {
	publicKey, err := key.Ed25519()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	keyfunc := func(*jwt.Token) (any, error) { return publicKey, nil }
	if _, err := parser.ParseWithClaims(string(c.wire), &jwtClaims{}, keyfunc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}
