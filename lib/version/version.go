// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime/debug"
)

// Release is the semantic version of the kiln tree. Release builds
// override it with -ldflags -X; everything else reports a dev build.
var Release = "0.2.0-dev"

// Revision is the VCS revision the binary was built from, injected
// with -ldflags -X. When empty, Info falls back to the revision the
// Go toolchain recorded in the binary's build info.
var Revision = ""

// Info returns the one-line string printed by --version.
func Info() string {
	rev := Revision
	if rev == "" {
		rev = embeddedRevision()
	}
	if rev == "" {
		return Release
	}
	return fmt.Sprintf("%s (%s)", Release, rev)
}

// embeddedRevision reads the vcs.revision and vcs.modified settings
// stamped by the Go toolchain, truncating the revision to 12 hex
// digits.
func embeddedRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	var rev string
	var dirty bool
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			rev = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if rev != "" && dirty {
		rev += "+dirty"
	}
	return rev
}
