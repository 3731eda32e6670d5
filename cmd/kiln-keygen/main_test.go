// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kiln-foundation/kiln/lib/keystore"
	"github.com/kiln-foundation/kiln/lib/secret"
)

func testPassphrase(t *testing.T, value string) *secret.Buffer {
	t.Helper()
	buffer, err := secret.NewFromBytes([]byte(value))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })
	return buffer
}

func TestGenerateAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "writer.key")
	passphrase := testPassphrase(t, "correct horse battery staple")

	signer, err := generate(path, passphrase)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if signer.IsZero() {
		t.Fatal("generate returned a zero DID")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("sealed key: %v", err)
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		t.Errorf("sealed key mode = %o, want 0600", mode)
	}

	pub, err := os.ReadFile(path + ".pub")
	if err != nil {
		t.Fatalf("reading .pub: %v", err)
	}
	if got := strings.TrimSpace(string(pub)); got != signer.String() {
		t.Errorf(".pub = %q, want %s", got, signer)
	}

	shown, err := show(path, passphrase)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if shown != signer {
		t.Errorf("show = %s, want %s", shown, signer)
	}
}

func TestShowWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "writer.key")
	if _, err := generate(path, testPassphrase(t, "first passphrase")); err != nil {
		t.Fatalf("generate: %v", err)
	}

	_, err := show(path, testPassphrase(t, "second passphrase"))
	if !errors.Is(err, keystore.ErrWrongPassphrase) {
		t.Fatalf("err = %v, want ErrWrongPassphrase", err)
	}
}

func TestGenerateRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "writer.key")
	if err := os.WriteFile(path, []byte("existing"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	err := runGenerate(path, "")
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("err = %v, want overwrite refusal", err)
	}
}

func TestReadPassphraseFromFile(t *testing.T) {
	passPath := filepath.Join(t.TempDir(), "pass")
	if err := os.WriteFile(passPath, []byte("hunter2\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	buffer, err := readPassphrase(passPath, true)
	if err != nil {
		t.Fatalf("readPassphrase: %v", err)
	}
	defer buffer.Close()

	if got := buffer.String(); got != "hunter2" {
		t.Errorf("passphrase = %q, want hunter2 (trailing newline trimmed)", got)
	}
}
