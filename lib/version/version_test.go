// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfoContainsRelease(t *testing.T) {
	if got := Info(); !strings.Contains(got, Release) {
		t.Errorf("Info() = %q, want it to contain %q", got, Release)
	}
}

func TestInfoUsesInjectedRevision(t *testing.T) {
	defer func(prev string) { Revision = prev }(Revision)
	Revision = "abc1234"
	if got := Info(); !strings.Contains(got, "(abc1234)") {
		t.Errorf("Info() = %q, want injected revision", got)
	}
}
