// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/golang-jwt/jwt/v5"

	"github.com/kiln-foundation/kiln/lib/codec"
	"github.com/kiln-foundation/kiln/lib/did"
	"github.com/kiln-foundation/kiln/lib/identity"
	"github.com/kiln-foundation/kiln/lib/resource"
	"github.com/kiln-foundation/kiln/lib/streamid"
)

func testEd25519Key(t *testing.T) (did.DID, ed25519.PrivateKey) {
	t.Helper()
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return did.FromPublicKey(public), private
}

func testSecpKey(t *testing.T) *secp256k1.PrivateKey {
	t.Helper()
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	return key
}

func testAudience(t *testing.T) did.DID {
	t.Helper()
	audience, _ := testEd25519Key(t)
	return audience
}

func TestIssueAndParse(t *testing.T) {
	issuer, key := testEd25519Key(t)
	audience := testAudience(t)
	stream := streamid.FromGenesis([]byte("genesis"))
	model := streamid.FromGenesis([]byte("model"))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cap, err := Issue(IssueParams{
		Audience: audience,
		Resources: []string{
			stream.URL(),
			"ceramic://*?model=" + model.String(),
		},
		NotBefore: now,
		ExpiresAt: now.Add(time.Hour),
	}, key)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	parsed, err := Parse(cap.Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !parsed.Issuer().Equal(issuer) {
		t.Errorf("Issuer = %s, want %s", parsed.Issuer(), issuer)
	}
	if !parsed.Audience().Equal(audience) {
		t.Errorf("Audience = %s, want %s", parsed.Audience(), audience)
	}
	if len(parsed.Resources()) != 2 {
		t.Fatalf("Resources length = %d, want 2", len(parsed.Resources()))
	}
	if got := parsed.Scopes()[0].Kind(); got != resource.KindExact {
		t.Errorf("Scopes[0].Kind = %v, want exact", got)
	}
	if got := parsed.Scopes()[1].Kind(); got != resource.KindModelWildcard {
		t.Errorf("Scopes[1].Kind = %v, want model wildcard", got)
	}
	if !parsed.NotBefore().Equal(now) {
		t.Errorf("NotBefore = %v, want %v", parsed.NotBefore(), now)
	}
	if !parsed.ExpiresAt().Equal(now.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", parsed.ExpiresAt(), now.Add(time.Hour))
	}
	if parsed.Proof().Type != ProofEd25519 {
		t.Errorf("Proof.Type = %q, want %q", parsed.Proof().Type, ProofEd25519)
	}

	// The nonce defaults to a fresh UUID.
	if len(parsed.Nonce()) != 36 {
		t.Errorf("Nonce = %q, want a UUID", parsed.Nonce())
	}

	// Content address is stable across parses.
	if parsed.ID() != cap.ID() {
		t.Errorf("ID changed across parse: %s vs %s", parsed.ID(), cap.ID())
	}
	if parsed.ID().IsZero() {
		t.Error("ID is zero")
	}
}

func TestVerifySignature_Ed25519(t *testing.T) {
	_, key := testEd25519Key(t)
	cap, err := Issue(IssueParams{Audience: testAudience(t)}, key)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	resolver := identity.NewBuiltinResolver()
	if err := cap.VerifySignature(context.Background(), resolver); err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}
}

func TestVerifySignature_TamperedPayload(t *testing.T) {
	_, key := testEd25519Key(t)
	cap, err := Issue(IssueParams{Audience: testAudience(t), Nonce: "fixed-nonce-value"}, key)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Flip one byte of the nonce, which rides inside the signed
	// payload as plain ASCII. The envelope stays structurally valid.
	wire := bytes.Clone(cap.Bytes())
	at := bytes.Index(wire, []byte("fixed-nonce-value"))
	if at < 0 {
		t.Fatal("nonce not found in wire form")
	}
	wire[at] ^= 0x01

	tampered, err := Parse(wire)
	if err != nil {
		t.Fatalf("Parse tampered envelope: %v", err)
	}
	err = tampered.VerifySignature(context.Background(), identity.NewBuiltinResolver())
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("VerifySignature tampered: got %v, want ErrInvalidSignature", err)
	}

	// Tampering also changes the content address.
	if tampered.ID() == cap.ID() {
		t.Error("tampered envelope has the same ID")
	}
}

func TestVerifySignature_ResolverError(t *testing.T) {
	_, key := testEd25519Key(t)
	cap, err := Issue(IssueParams{Audience: testAudience(t)}, key)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	wantErr := errors.New("registry unreachable")
	resolver := identity.ResolverFunc(func(context.Context, did.DID) (identity.Resolution, error) {
		return identity.Resolution{}, wantErr
	})

	err = cap.VerifySignature(context.Background(), resolver)
	if !errors.Is(err, wantErr) {
		t.Errorf("VerifySignature: got %v, want the resolver error", err)
	}
	if errors.Is(err, ErrInvalidSignature) {
		t.Error("resolver failure must not read as an invalid signature")
	}
}

func rawEnvelope(t *testing.T, body payload, proof proofWire) []byte {
	t.Helper()
	payloadBytes, err := codec.Marshal(body)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	proofBytes, err := codec.Marshal(proof)
	if err != nil {
		t.Fatalf("marshal proof: %v", err)
	}
	return append(payloadBytes, proofBytes...)
}

func TestParse_Malformed(t *testing.T) {
	issuer, key := testEd25519Key(t)
	audience := testAudience(t)
	good, err := Issue(IssueParams{Audience: audience}, key)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tests := []struct {
		name string
		wire []byte
	}{
		{"empty", nil},
		{"garbage", []byte{0xff, 0xff, 0xff, 0xff}},
		{"truncated", good.Bytes()[:len(good.Bytes())-5]},
		{"trailing data", append(bytes.Clone(good.Bytes()), 0x00)},
		{"truncated proof", good.Bytes()[:len(good.Bytes())-len(good.Proof().Signature)-6]},
		{"missing issuer", rawEnvelope(t,
			payload{Audience: audience, Nonce: "n"},
			proofWire{Type: "ed25519", Signature: make([]byte, 64)})},
		{"missing audience", rawEnvelope(t,
			payload{Issuer: issuer, Nonce: "n"},
			proofWire{Type: "ed25519", Signature: make([]byte, 64)})},
		{"unsupported proof type", rawEnvelope(t,
			payload{Issuer: issuer, Audience: audience},
			proofWire{Type: "rsa", Signature: make([]byte, 64)})},
		{"jwt type in native envelope", rawEnvelope(t,
			payload{Issuer: issuer, Audience: audience},
			proofWire{Type: "jwt", Signature: make([]byte, 64)})},
		{"empty signature", rawEnvelope(t,
			payload{Issuer: issuer, Audience: audience},
			proofWire{Type: "ed25519"})},
		{"negative expiry", rawEnvelope(t,
			payload{Issuer: issuer, Audience: audience, ExpiresAt: -1},
			proofWire{Type: "ed25519", Signature: make([]byte, 64)})},
		{"inverted window", rawEnvelope(t,
			payload{Issuer: issuer, Audience: audience, NotBefore: 200, ExpiresAt: 100},
			proofWire{Type: "ed25519", Signature: make([]byte, 64)})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.wire)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Parse: got %v, want ErrMalformed", err)
			}
		})
	}
}

func TestTemporallyValid(t *testing.T) {
	_, key := testEd25519Key(t)
	notBefore := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expiresAt := notBefore.Add(time.Hour)

	bounded, err := Issue(IssueParams{
		Audience:  testAudience(t),
		NotBefore: notBefore,
		ExpiresAt: expiresAt,
	}, key)
	if err != nil {
		t.Fatalf("Issue bounded: %v", err)
	}
	unbounded, err := Issue(IssueParams{Audience: testAudience(t)}, key)
	if err != nil {
		t.Fatalf("Issue unbounded: %v", err)
	}

	tests := []struct {
		name string
		cap  *Capability
		now  time.Time
		want error
	}{
		{"before window", bounded, notBefore.Add(-time.Second), ErrNotYetValid},
		{"at not-before", bounded, notBefore, nil},
		{"inside window", bounded, notBefore.Add(30 * time.Minute), nil},
		{"last valid second", bounded, expiresAt.Add(-time.Second), nil},
		{"at expiry", bounded, expiresAt, ErrExpired},
		{"after expiry", bounded, expiresAt.Add(time.Hour), ErrExpired},
		{"unbounded early", unbounded, time.Unix(1, 0), nil},
		{"unbounded late", unbounded, time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cap.TemporallyValid(tt.now)
			if !errors.Is(err, tt.want) {
				t.Errorf("TemporallyValid(%v) = %v, want %v", tt.now, err, tt.want)
			}
		})
	}
}

func TestIssue_Validation(t *testing.T) {
	_, key := testEd25519Key(t)
	audience := testAudience(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		params IssueParams
	}{
		{"missing audience", IssueParams{}},
		{"invalid resource", IssueParams{Audience: audience, Resources: []string{"https://example.com"}}},
		{"unsatisfiable model wildcard", IssueParams{Audience: audience, Resources: []string{"ceramic://*?model="}}},
		{"empty window", IssueParams{Audience: audience, NotBefore: now, ExpiresAt: now}},
		{"inverted window", IssueParams{Audience: audience, NotBefore: now, ExpiresAt: now.Add(-time.Hour)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Issue(tt.params, key); err == nil {
				t.Error("Issue: expected error")
			}
		})
	}
}

func TestIssueEIP191AndVerify(t *testing.T) {
	key := testSecpKey(t)
	audience := testAudience(t)

	cap, err := IssueEIP191(IssueParams{Audience: audience}, 1, key)
	if err != nil {
		t.Fatalf("IssueEIP191: %v", err)
	}
	if cap.Issuer().Method() != did.MethodPKH {
		t.Fatalf("Issuer method = %v, want pkh", cap.Issuer().Method())
	}
	if cap.Proof().Type != ProofEIP191 {
		t.Errorf("Proof.Type = %q, want %q", cap.Proof().Type, ProofEIP191)
	}
	if len(cap.Proof().Signature) != 65 {
		t.Errorf("signature length = %d, want 65", len(cap.Proof().Signature))
	}

	parsed, err := Parse(cap.Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := parsed.VerifySignature(context.Background(), identity.NewBuiltinResolver()); err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}
}

func TestIssueEIP191_ChainIDRequired(t *testing.T) {
	if _, err := IssueEIP191(IssueParams{Audience: testAudience(t)}, 0, testSecpKey(t)); err == nil {
		t.Error("IssueEIP191 with chain ID 0: expected error")
	}
}

func TestRecoverPersonalSign_NormalizedRecoveryID(t *testing.T) {
	key := testSecpKey(t)
	message := []byte("sign me")

	// Some wallets emit v as 0/1 instead of 27/28. Both layouts must
	// recover the same address.
	signature := SignEIP191(key, message).Signature
	wallet, err := recoverPersonalSign(message, signature)
	if err != nil {
		t.Fatalf("recover v=27 form: %v", err)
	}
	signature[64] -= 27
	normalized, err := recoverPersonalSign(message, signature)
	if err != nil {
		t.Fatalf("recover v=0 form: %v", err)
	}
	if wallet != normalized {
		t.Errorf("recovered %s and %s from the same signature", wallet, normalized)
	}
	if want := did.AddressFromPublicKey(key.PubKey()); wallet != want {
		t.Errorf("recovered %s, want %s", wallet, want)
	}
}

func TestRecoverPersonalSign_BadInput(t *testing.T) {
	if _, err := recoverPersonalSign([]byte("m"), make([]byte, 10)); err == nil {
		t.Error("short signature: expected error")
	}
	bad := make([]byte, 65)
	bad[64] = 9
	if _, err := recoverPersonalSign([]byte("m"), bad); err == nil {
		t.Error("recovery id 9: expected error")
	}
}

func TestIssueJWTAndParse(t *testing.T) {
	issuer, key := testEd25519Key(t)
	audience := testAudience(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stream := streamid.FromGenesis([]byte("doc"))

	cap, err := IssueJWT(IssueParams{
		Audience:  audience,
		Resources: []string{stream.URL()},
		NotBefore: now,
		ExpiresAt: now.Add(time.Hour),
		Nonce:     "jwt-nonce",
	}, key)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}

	// The wire form is a compact JWS.
	wire := string(cap.Bytes())
	if !strings.HasPrefix(wire, "eyJ") || strings.Count(wire, ".") != 2 {
		t.Fatalf("wire form is not a compact JWS: %q", wire)
	}

	parsed, err := Parse(cap.Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !parsed.Issuer().Equal(issuer) {
		t.Errorf("Issuer = %s, want %s", parsed.Issuer(), issuer)
	}
	if !parsed.Audience().Equal(audience) {
		t.Errorf("Audience = %s, want %s", parsed.Audience(), audience)
	}
	if parsed.Proof().Type != ProofJWT {
		t.Errorf("Proof.Type = %q, want %q", parsed.Proof().Type, ProofJWT)
	}
	if parsed.Nonce() != "jwt-nonce" {
		t.Errorf("Nonce = %q, want jwt-nonce", parsed.Nonce())
	}
	if !parsed.NotBefore().Equal(now) {
		t.Errorf("NotBefore = %v, want %v", parsed.NotBefore(), now)
	}
	if len(parsed.Scopes()) != 1 || parsed.Scopes()[0].Kind() != resource.KindExact {
		t.Errorf("Scopes = %v, want one exact scope", parsed.Scopes().Strings())
	}
	if parsed.ID() != cap.ID() {
		t.Errorf("ID changed across parse: %s vs %s", parsed.ID(), cap.ID())
	}

	if err := parsed.VerifySignature(context.Background(), identity.NewBuiltinResolver()); err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}
}

func TestVerifySignature_JWTTampered(t *testing.T) {
	_, key := testEd25519Key(t)
	cap, err := IssueJWT(IssueParams{Audience: testAudience(t)}, key)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}

	// Corrupt one character of the encoded signature segment.
	wire := bytes.Clone(cap.Bytes())
	last := wire[len(wire)-1]
	if last == 'A' {
		wire[len(wire)-1] = 'B'
	} else {
		wire[len(wire)-1] = 'A'
	}

	tampered, err := Parse(wire)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	err = tampered.VerifySignature(context.Background(), identity.NewBuiltinResolver())
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("VerifySignature: got %v, want ErrInvalidSignature", err)
	}
}

func TestVerifySignature_JWTRejectsNonEdDSA(t *testing.T) {
	issuer, _ := testEd25519Key(t)
	audience := testAudience(t)

	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuer.String(),
			Audience: jwt.ClaimStrings{audience.String()},
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("signing HS256 token: %v", err)
	}

	cap, err := Parse([]byte(signed))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	err = cap.VerifySignature(context.Background(), identity.NewBuiltinResolver())
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("VerifySignature HS256: got %v, want ErrInvalidSignature", err)
	}
}

func TestParse_JWTMalformed(t *testing.T) {
	tests := []struct {
		name string
		wire string
	}{
		{"two dots but not a token", "eyJ.a.b"},
		{"bad issuer", mintRawJWT(t, "not-a-did", "did:key:z6MkhaXgBZDvotDkL5257faiztiGiC2QtKLGpbnnEGta2doK")},
		{"bad audience", mintRawJWT(t, "did:key:z6MkhaXgBZDvotDkL5257faiztiGiC2QtKLGpbnnEGta2doK", "nope")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.wire))
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Parse: got %v, want ErrMalformed", err)
			}
		})
	}
}

func mintRawJWT(t *testing.T, issuer, audience string) string {
	t.Helper()
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuer,
			Audience: jwt.ClaimStrings{audience},
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(key)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func TestIDTextRoundtrip(t *testing.T) {
	_, key := testEd25519Key(t)
	cap, err := Issue(IssueParams{Audience: testAudience(t)}, key)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	text := cap.ID().String()
	if !strings.HasPrefix(text, "cap-") || len(text) != 4+64 {
		t.Fatalf("ID text = %q, want cap- plus 64 hex digits", text)
	}
	parsed, err := ParseID(text)
	if err != nil {
		t.Fatalf("ParseID: %v", err)
	}
	if parsed != cap.ID() {
		t.Errorf("ParseID(%q) = %s", text, parsed)
	}

	if short := cap.ID().Short(); !strings.HasPrefix(short, "cap-") || len(short) != 4+12 {
		t.Errorf("Short = %q, want cap- plus 12 hex digits", short)
	}

	for _, bad := range []string{"", "cap-", "cap-zz", "deadbeef", "cap-" + strings.Repeat("ab", 16)} {
		if _, err := ParseID(bad); err == nil {
			t.Errorf("ParseID(%q): expected error", bad)
		}
	}
}
