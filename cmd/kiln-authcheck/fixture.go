// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/kiln-foundation/kiln/lib/stream"
)

// commitFixture is the on-disk shape of a commit fixture: the signed
// wire envelope, standard base64.
type commitFixture struct {
	Commit []byte `json:"commit"`
}

// loadCommitFixture reads a JSONC commit fixture and returns the wire
// envelope.
func loadCommitFixture(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading commit fixture: %w", err)
	}
	var fixture commitFixture
	if err := json.Unmarshal(jsonc.ToJSON(data), &fixture); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(fixture.Commit) == 0 {
		return nil, fmt.Errorf("%s: missing commit field", path)
	}
	return fixture.Commit, nil
}

// loadSnapshotFixture reads a JSONC stream snapshot fixture. The
// snapshot must be structurally valid.
func loadSnapshotFixture(path string) (stream.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return stream.Snapshot{}, fmt.Errorf("reading stream fixture: %w", err)
	}
	var snapshot stream.Snapshot
	if err := json.Unmarshal(jsonc.ToJSON(data), &snapshot); err != nil {
		return stream.Snapshot{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := snapshot.Validate(); err != nil {
		return stream.Snapshot{}, fmt.Errorf("%s: %w", path, err)
	}
	return snapshot, nil
}
