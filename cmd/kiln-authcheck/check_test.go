// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kiln-foundation/kiln/lib/did"
	"github.com/kiln-foundation/kiln/lib/stream"
	"github.com/kiln-foundation/kiln/lib/streamid"
	"github.com/kiln-foundation/kiln/lib/testutil"
)

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

// checkFixtures signs a commit on a single-controller tile and writes
// the commit and stream fixtures. The signer need not be the
// controller.
func checkFixtures(t *testing.T, controller did.DID, signerKey ed25519.PrivateKey) (commitPath, streamPath string) {
	t.Helper()
	dir := t.TempDir()

	tileID := streamid.FromGenesis([]byte("check-tile"))
	commit, err := stream.SignCommit(stream.CommitParams{
		Stream: tileID,
		Data:   []byte(`{"title":"hello"}`),
	}, signerKey)
	if err != nil {
		t.Fatalf("SignCommit: %v", err)
	}

	commitPath = writeFixture(t, dir, "commit.jsonc", fmt.Sprintf(`{
  // signed commit envelope, standard base64
  "commit": %q,
}`, base64.StdEncoding.EncodeToString(commit.Bytes())))

	streamPath = writeFixture(t, dir, "stream.jsonc", fmt.Sprintf(`{
  "id": %q,
  "type": "tile",
  "controllers": [%q],
}`, tileID.String(), controller.String()))

	return commitPath, streamPath
}

func TestLoadCommitFixture(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid", func(t *testing.T) {
		path := writeFixture(t, dir, "ok.jsonc", `{
  // comments and trailing commas are fine
  "commit": "aGVsbG8=",
}`)
		got, err := loadCommitFixture(path)
		if err != nil {
			t.Fatalf("loadCommitFixture: %v", err)
		}
		if string(got) != "hello" {
			t.Errorf("commit = %q, want hello", got)
		}
	})

	t.Run("missing field", func(t *testing.T) {
		path := writeFixture(t, dir, "empty.jsonc", `{}`)
		if _, err := loadCommitFixture(path); err == nil || !strings.Contains(err.Error(), "missing commit field") {
			t.Fatalf("err = %v, want missing field", err)
		}
	})

	t.Run("bad base64", func(t *testing.T) {
		path := writeFixture(t, dir, "bad.jsonc", `{"commit": "***"}`)
		if _, err := loadCommitFixture(path); err == nil {
			t.Fatal("expected error for invalid base64")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := loadCommitFixture(filepath.Join(dir, "absent.jsonc")); err == nil {
			t.Fatal("expected error for missing file")
		}
	})
}

func TestLoadSnapshotFixture(t *testing.T) {
	dir := t.TempDir()
	controller, _ := testutil.SigningKey(t, "controller")
	tileID := streamid.FromGenesis([]byte("fixture-tile"))

	t.Run("valid", func(t *testing.T) {
		path := writeFixture(t, dir, "tile.jsonc", fmt.Sprintf(`{
  "id": %q,
  "type": "tile", // write policy
  "controllers": [%q],
}`, tileID, controller))
		snapshot, err := loadSnapshotFixture(path)
		if err != nil {
			t.Fatalf("loadSnapshotFixture: %v", err)
		}
		if !snapshot.ID.Equal(tileID) {
			t.Errorf("ID = %s, want %s", snapshot.ID, tileID)
		}
		if snapshot.Type != stream.TypeTile {
			t.Errorf("Type = %v, want tile", snapshot.Type)
		}
		if len(snapshot.Controllers) != 1 || snapshot.Controllers[0] != controller {
			t.Errorf("Controllers = %v, want [%s]", snapshot.Controllers, controller)
		}
	})

	t.Run("structurally invalid", func(t *testing.T) {
		path := writeFixture(t, dir, "invalid.jsonc", fmt.Sprintf(`{
  "id": %q,
  "type": "tile",
  "controllers": [],
}`, tileID))
		if _, err := loadSnapshotFixture(path); err == nil || !strings.Contains(err.Error(), "no controllers") {
			t.Fatalf("err = %v, want validation failure", err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		path := writeFixture(t, dir, "garbage.jsonc", `{"id": [`)
		if _, err := loadSnapshotFixture(path); err == nil {
			t.Fatal("expected error for malformed fixture")
		}
	})
}

func TestEvaluateOfflineAllow(t *testing.T) {
	controller, controllerKey := testutil.SigningKey(t, "controller")
	commitPath, streamPath := checkFixtures(t, controller, controllerKey)

	commitBytes, err := loadCommitFixture(commitPath)
	if err != nil {
		t.Fatalf("loadCommitFixture: %v", err)
	}
	snapshot, err := loadSnapshotFixture(streamPath)
	if err != nil {
		t.Fatalf("loadSnapshotFixture: %v", err)
	}

	report, err := evaluateOffline(t.Context(), "", commitBytes, snapshot)
	if err != nil {
		t.Fatalf("evaluateOffline: %v", err)
	}
	if report.Decision != "allow" {
		t.Fatalf("Decision = %q (reason %q), want allow", report.Decision, report.Reason)
	}
	if report.Checkpoint != "scope-checked" {
		t.Errorf("Checkpoint = %q, want scope-checked", report.Checkpoint)
	}
	if report.EffectiveIssuer != controller.String() {
		t.Errorf("EffectiveIssuer = %q, want %s", report.EffectiveIssuer, controller)
	}
}

func TestEvaluateOfflineDeny(t *testing.T) {
	controller, _ := testutil.SigningKey(t, "controller")
	_, strangerKey := testutil.SigningKey(t, "stranger")
	commitPath, streamPath := checkFixtures(t, controller, strangerKey)

	commitBytes, err := loadCommitFixture(commitPath)
	if err != nil {
		t.Fatalf("loadCommitFixture: %v", err)
	}
	snapshot, err := loadSnapshotFixture(streamPath)
	if err != nil {
		t.Fatalf("loadSnapshotFixture: %v", err)
	}

	report, err := evaluateOffline(t.Context(), "", commitBytes, snapshot)
	if err != nil {
		t.Fatalf("evaluateOffline: %v", err)
	}
	if report.Decision != "deny" {
		t.Fatalf("Decision = %q, want deny", report.Decision)
	}
	if report.Reason != "issuer is not a stream controller" {
		t.Errorf("Reason = %q", report.Reason)
	}
}

func TestEvaluateOfflineStrictRegistry(t *testing.T) {
	controller, _ := testutil.SigningKey(t, "controller")
	_, strangerKey := testutil.SigningKey(t, "stranger")
	commitPath, streamPath := checkFixtures(t, controller, strangerKey)

	registryPath := writeFixture(t, t.TempDir(), "registry.jsonc", fmt.Sprintf(`{
  "strict": true,
  "identities": [
    {"did": %q},
  ],
}`, controller))

	commitBytes, err := loadCommitFixture(commitPath)
	if err != nil {
		t.Fatalf("loadCommitFixture: %v", err)
	}
	snapshot, err := loadSnapshotFixture(streamPath)
	if err != nil {
		t.Fatalf("loadSnapshotFixture: %v", err)
	}

	// The stranger is not in the strict registry: evaluation must fail
	// closed with an error, not reach a decision.
	_, err = evaluateOffline(t.Context(), registryPath, commitBytes, snapshot)
	if err == nil || !strings.Contains(err.Error(), "evaluating commit") {
		t.Fatalf("err = %v, want resolver failure", err)
	}
}

func TestFormatReport(t *testing.T) {
	deny := decisionReport{
		Decision:        "deny",
		Reason:          "capability expired",
		Checkpoint:      "received",
		EffectiveIssuer: "did:key:z6MkExample",
	}
	got := formatReport(deny)
	want := "DECISION: deny\n" +
		"REASON:   capability expired\n" +
		"\n" +
		"EVALUATION:\n" +
		"  1. received       passed\n" +
		"  2. chain-verified failed\n" +
		"\n" +
		"ATTRIBUTION:\n" +
		"  issuer:     did:key:z6MkExample\n"
	if got != want {
		t.Errorf("formatReport:\n%s\nwant:\n%s", got, want)
	}

	allow := decisionReport{Decision: "allow", Checkpoint: "scope-checked"}
	got = formatReport(allow)
	if strings.Contains(got, "REASON") {
		t.Errorf("allow output contains REASON:\n%s", got)
	}
	if !strings.Contains(got, "4. scope-checked  passed") || strings.Contains(got, "failed") {
		t.Errorf("allow trace wrong:\n%s", got)
	}
}

func TestRunCheckExitCodes(t *testing.T) {
	controller, controllerKey := testutil.SigningKey(t, "controller")
	_, strangerKey := testutil.SigningKey(t, "stranger")

	allowCommit, allowStream := checkFixtures(t, controller, controllerKey)
	denyCommit, denyStream := checkFixtures(t, controller, strangerKey)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"allow", []string{"check", "--commit", allowCommit, "--stream", allowStream}, 0},
		{"allow json", []string{"check", "--commit", allowCommit, "--stream", allowStream, "--json"}, 0},
		{"deny", []string{"check", "--commit", denyCommit, "--stream", denyStream}, 1},
		{"missing flags", []string{"check"}, 2},
		{"unreadable fixture", []string{"check", "--commit", "/nonexistent.jsonc", "--stream", allowStream}, 2},
		{"registry with socket", []string{"check", "--commit", allowCommit, "--stream", allowStream, "--socket", "/tmp/x.sock", "--registry", "/tmp/r.jsonc"}, 2},
		{"unknown subcommand", []string{"frobnicate"}, 2},
		{"no subcommand", nil, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(tt.args); got != tt.want {
				t.Errorf("run(%v) = %d, want %d", tt.args, got, tt.want)
			}
		})
	}
}
