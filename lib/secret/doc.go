// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret keeps passphrases and signing keys off the Go heap.
//
// A [Buffer] lives in an anonymous mmap region the garbage collector
// never sees, mlocked against swap and excluded from core dumps;
// Close zeros it before unmapping. [NewFromBytes] scrubs its source
// as it copies, and [ReadFromPath] does the same for secrets read
// from files or stdin, so the only live copy is the protected one.
//
// lib/keystore builds on this for passphrases and unsealed key
// material.
package secret
