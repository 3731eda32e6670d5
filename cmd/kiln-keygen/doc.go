// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// kiln-keygen generates Ed25519 signing keys for Kiln writers and
// seals them on disk with an age passphrase.
//
//	kiln-keygen --out writer.key
//
// prompts for a passphrase (twice, echo disabled), writes the sealed
// key to writer.key and the derived did:key to writer.key.pub, and
// prints the DID on stdout. The DID is what stream controllers list
// and what capabilities name as audience; the sealed file is the only
// copy of the private key.
//
//	kiln-keygen --show writer.key
//
// unseals an existing key and prints its DID, proving the sealed file
// still opens with the passphrase.
//
// Non-interactive use reads the passphrase from a file, or stdin
// with "-":
//
//	kiln-keygen --out writer.key --passphrase-file /run/secrets/pass
package main
