// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports what build a kiln binary is.
//
// [Info] renders the --version line: the [Release] string, plus a VCS
// revision when one is known. Release builds stamp both with
// -ldflags:
//
//	go build -ldflags "\
//	  -X github.com/kiln-foundation/kiln/lib/version.Release=1.0.0 \
//	  -X github.com/kiln-foundation/kiln/lib/version.Revision=$(git rev-parse --short HEAD)"
//
// Unstamped binaries fall back to the revision the Go toolchain
// embeds in module builds, so plain `go install` output is still
// attributable.
package version
