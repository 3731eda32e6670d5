// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"fmt"

	"github.com/kiln-foundation/kiln/lib/did"
	"github.com/kiln-foundation/kiln/lib/streamid"
)

// Type distinguishes the stream kinds with different write policies.
type Type uint8

const (
	// TypeTile is a free-form document. Any controller may write.
	TypeTile Type = iota + 1

	// TypeModelInstance is a document conforming to a model stream.
	// It has exactly one controller, and delegated writes must hold a
	// capability scoped to the model.
	TypeModelInstance
)

// String returns the text form used in fixtures and logs.
func (t Type) String() string {
	switch t {
	case TypeTile:
		return "tile"
	case TypeModelInstance:
		return "model-instance"
	}
	return fmt.Sprintf("invalid(%d)", uint8(t))
}

// ParseType parses the text form produced by String.
func ParseType(text string) (Type, error) {
	switch text {
	case "tile":
		return TypeTile, nil
	case "model-instance":
		return TypeModelInstance, nil
	}
	return 0, fmt.Errorf("unknown stream type %q", text)
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if t == 0 {
		return nil, nil
	}
	if t != TypeTile && t != TypeModelInstance {
		return nil, fmt.Errorf("cannot marshal stream type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero Type, which Validate rejects.
func (t *Type) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*t = 0
		return nil
	}
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Snapshot is the control metadata of a stream at the moment of an
// authorization decision.
type Snapshot struct {
	// ID is the stream being written.
	ID streamid.StreamID `json:"id"`

	// Type selects the write policy.
	Type Type `json:"type"`

	// Controllers are the DIDs that control the stream. Tiles have
	// one or more; model instances exactly one.
	Controllers []did.DID `json:"controllers"`

	// Model is the model stream a model instance conforms to. Unset
	// for tiles.
	Model streamid.StreamID `json:"model,omitempty"`
}

// Validate checks structural consistency. The authorization engine
// refuses snapshots that fail here rather than guessing a policy for
// them.
func (s Snapshot) Validate() error {
	if s.ID.IsZero() {
		return fmt.Errorf("stream snapshot: missing ID")
	}
	switch s.Type {
	case TypeTile:
		if len(s.Controllers) == 0 {
			return fmt.Errorf("stream %s: tile has no controllers", s.ID)
		}
		if !s.Model.IsZero() {
			return fmt.Errorf("stream %s: tile carries a model", s.ID)
		}
	case TypeModelInstance:
		if len(s.Controllers) != 1 {
			return fmt.Errorf("stream %s: model instance has %d controllers, want exactly 1", s.ID, len(s.Controllers))
		}
		if s.Model.IsZero() {
			return fmt.Errorf("stream %s: model instance has no model", s.ID)
		}
	default:
		return fmt.Errorf("stream %s: unknown type %d", s.ID, uint8(s.Type))
	}
	seen := make(map[did.DID]struct{}, len(s.Controllers))
	for i, controller := range s.Controllers {
		if controller.IsZero() {
			return fmt.Errorf("stream %s: controller %d is empty", s.ID, i)
		}
		if _, dup := seen[controller]; dup {
			return fmt.Errorf("stream %s: duplicate controller %s", s.ID, controller)
		}
		seen[controller] = struct{}{}
	}
	return nil
}

// RequiredControllers returns the set of DIDs a write's effective
// issuer must belong to. For a validated snapshot this is the whole
// controller list: tiles accept any controller, and a model instance
// has exactly one.
func (s Snapshot) RequiredControllers() []did.DID {
	return s.Controllers
}

// HasController reports whether d is one of the stream's controllers.
func (s Snapshot) HasController(d did.DID) bool {
	for _, controller := range s.Controllers {
		if controller.Equal(d) {
			return true
		}
	}
	return false
}
