// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package did provides validated decentralized identifier value types.
//
// Kiln identifies every actor (stream controllers, capability issuers
// and audiences, commit signers) by DID. Two methods are supported:
//
//   - did:key: self-certifying Ed25519 identifiers. The identifier
//     encodes the public key itself (multibase base58btc of the
//     ed25519-pub multicodec), so key material resolution needs no
//     external state.
//   - did:pkh: blockchain account identifiers (CAIP-10), restricted
//     to the eip155 namespace (Ethereum accounts). The identifier
//     encodes a chain ID and an EIP-55 checksummed account address;
//     possession is proven by personal-sign signatures, not by a key
//     embedded in the identifier.
//
// DID is an immutable, comparable value type: validated at
// construction, canonical in its string form, usable as a map key.
// The zero value is invalid; use IsZero to check.
package did
