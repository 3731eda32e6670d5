// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package capability defines the signed delegation object that
// authorizes writes to streams.
//
// A capability says: issuer grants audience the right to write to
// these resource scopes, between these times. It travels with the
// commit that exercises it and is verified statelessly: nothing about
// a capability's validity depends on server state except the issuer's
// resolved key material and, separately, the revocation registry.
//
// Two wire forms exist. The native form is a deterministic CBOR
// payload item followed by a CBOR proof item, signed either with
// Ed25519 (did:key issuers) or with an Ethereum personal-sign
// signature (did:pkh issuers, verified by key recovery). The second
// form is a compact JWS with EdDSA, for issuers that live in
// JWT-speaking systems. Parse accepts both and yields the same
// Capability.
//
// Parsing, signature verification, and temporal validity are three
// separate steps so the caller can report exactly which one failed.
package capability
