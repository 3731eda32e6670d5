// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the one place kiln configures CBOR.
//
// Kiln splits its serialization by audience: JSON for what people
// read (audit records, --json output, JSONC fixtures and registries)
// and CBOR for what gets signed, hashed, or shipped over the daemon
// socket (capability payloads, commit envelopes, revocation requests,
// the socket protocol). The CBOR side must be deterministic, since
// stream, commit, and capability IDs are digests over encoded bytes;
// the encoder here uses Core Deterministic Encoding (RFC 8949 §4.2)
// so every package derives the same bytes for the same value.
//
// [Marshal] and [Unmarshal] cover whole envelopes; [NewEncoder] and
// [NewDecoder] cover socket streams. [Diagnose] and [DiagnoseFirst]
// render envelopes in diagnostic notation for the inspect tooling.
//
// # Struct Tag Rules
//
// Tags double as format documentation:
//
//   - `cbor` tags mark wire-only types. Signed payloads use integer
//     keys (`keyasint`) on top, keeping envelopes small and
//     canonical.
//   - `json` tags mark types serialized as JSON, or as both: with no
//     `cbor` tag present, fxamacker/cbor falls back to `json` tags,
//     so one tag names the field in both formats (audit records rely
//     on this).
//   - Both tags on one field is reserved for boundary types that
//     must match an existing CBOR protocol AND an existing JSON
//     shape at once, like the CLI's decision report. Everything else
//     picks one.
package codec
