// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds the helpers kiln package tests share.
//
// [SigningKey] derives a deterministic Ed25519 key and did:key
// identity from a name, so fixtures stay stable across runs without
// checked-in key files. [SocketDir] gives daemon tests a socket path
// short enough for sun_path. [RequireReceive] and [RequireClosed]
// wrap channel waits in a timeout so a wedged goroutine fails the
// test instead of hanging it.
//
// Helpers fail the test via t.Fatalf rather than returning errors;
// none of these conditions are recoverable mid-test.
package testutil
