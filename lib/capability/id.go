// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// idPrefix is the text prefix of a rendered capability ID.
const idPrefix = "cap-"

// idDomainKey is the BLAKE3 key for capability content addresses,
// the ASCII domain string zero padded to the 32 bytes NewKeyed
// requires. Distinct from the stream genesis domain so a capability
// envelope and a genesis document can never collide.
var idDomainKey = [32]byte{
	'k', 'i', 'l', 'n', '.',
	'c', 'a', 'p', 'a', 'b', 'i', 'l', 'i', 't', 'y', '.',
	'e', 'n', 'v', 'e', 'l', 'o', 'p', 'e',
}

// ID is the content address of a capability envelope.
type ID [32]byte

// deriveID hashes the complete wire envelope.
func deriveID(wire []byte) ID {
	hasher, err := blake3.NewKeyed(idDomainKey[:])
	if err != nil {
		// NewKeyed fails only on a key that is not 32 bytes.
		panic("capability: keyed hasher: " + err.Error())
	}
	hasher.Write(wire)
	var id ID
	hasher.Digest().Read(id[:])
	return id
}

// ParseID parses the text form produced by String.
func ParseID(text string) (ID, error) {
	rest, ok := strings.CutPrefix(text, idPrefix)
	if !ok {
		return ID{}, fmt.Errorf("capability ID %q: missing %q prefix", text, idPrefix)
	}
	raw, err := hex.DecodeString(rest)
	if err != nil {
		return ID{}, fmt.Errorf("capability ID %q: %w", text, err)
	}
	if len(raw) != len(ID{}) {
		return ID{}, fmt.Errorf("capability ID %q: digest is %d bytes, want %d", text, len(raw), len(ID{}))
	}
	var id ID
	copy(id[:], raw)
	return id, nil
}

// String renders the full ID, "cap-" followed by 64 hex digits.
func (id ID) String() string {
	return idPrefix + hex.EncodeToString(id[:])
}

// Short renders an abbreviated form for logs.
func (id ID) Short() string {
	return idPrefix + hex.EncodeToString(id[:6])
}

// IsZero reports whether the ID is unset.
func (id ID) IsZero() bool { return id == ID{} }

// MarshalText implements encoding.TextMarshaler. A zero ID encodes as
// the empty string.
func (id ID) MarshalText() ([]byte, error) {
	if id.IsZero() {
		return nil, nil
	}
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces a zero ID.
func (id *ID) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*id = ID{}
		return nil
	}
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
