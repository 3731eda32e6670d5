// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"fmt"
	"strings"

	"github.com/kiln-foundation/kiln/lib/streamid"
)

// Kind identifies the parsed variant of a scope.
type Kind uint8

const (
	// KindInvalid marks a scope string that failed to parse. Invalid
	// scopes are retained verbatim for diagnostics and match nothing.
	KindInvalid Kind = iota

	// KindExact grants access to one specific stream.
	KindExact

	// KindWildcard grants access to every stream without a model
	// requirement.
	KindWildcard

	// KindModelWildcard grants access to every stream governed by a
	// specific model.
	KindModelWildcard
)

// String returns a short name for the kind, used in logs and traces.
func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindExact:
		return "exact"
	case KindWildcard:
		return "wildcard"
	case KindModelWildcard:
		return "model-wildcard"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Scope is one parsed resource scope. Immutable after parsing; the
// zero value is an invalid scope with an empty raw string.
type Scope struct {
	raw    string
	kind   Kind
	stream streamid.StreamID
	model  streamid.StreamID
}

// scopePrefix is the scheme every scope string must carry.
const scopePrefix = streamid.Scheme + "://"

// ParseScope parses a scope string. It never returns an error: input
// that does not match the grammar yields a KindInvalid scope that
// matches nothing. The raw string is retained for diagnostics either
// way.
func ParseScope(raw string) Scope {
	invalid := Scope{raw: raw, kind: KindInvalid}

	rest, ok := strings.CutPrefix(raw, scopePrefix)
	if !ok {
		return invalid
	}

	if rest == "*" {
		return Scope{raw: raw, kind: KindWildcard}
	}

	if query, ok := strings.CutPrefix(rest, "*?"); ok {
		// The only defined parameter is model. Anything else in the
		// query (extra parameters, a second model) does not parse.
		value, ok := strings.CutPrefix(query, "model=")
		if !ok || strings.ContainsAny(value, "&=?") {
			return invalid
		}
		// An empty or unparseable model value is a real model
		// wildcard that no stream can satisfy. The scope stays
		// well-formed so diagnostics show what was asked for, but a
		// grant over an unknowable model grants nothing.
		model, err := streamid.Parse(value)
		if err != nil {
			return Scope{raw: raw, kind: KindModelWildcard}
		}
		return Scope{raw: raw, kind: KindModelWildcard, model: model}
	}

	// Anything else must be a bare stream ID. Query parameters are
	// only defined on the wildcard form.
	if strings.ContainsRune(rest, '?') {
		return invalid
	}
	id, err := streamid.Parse(rest)
	if err != nil {
		return invalid
	}
	return Scope{raw: raw, kind: KindExact, stream: id}
}

// Raw returns the original scope string as it appeared in the
// capability.
func (s Scope) Raw() string { return s.raw }

// String returns the original scope string.
func (s Scope) String() string { return s.raw }

// Kind returns the parsed variant.
func (s Scope) Kind() Kind { return s.kind }

// Stream returns the stream a KindExact scope names. Panics for other
// kinds.
func (s Scope) Stream() streamid.StreamID {
	if s.kind != KindExact {
		panic("Scope.Stream called on " + s.kind.String() + " scope")
	}
	return s.stream
}

// Model returns the model a KindModelWildcard scope names. The result
// is zero when the scope's model value was empty or unparseable (an
// unsatisfiable wildcard). Panics for other kinds.
func (s Scope) Model() streamid.StreamID {
	if s.kind != KindModelWildcard {
		panic("Scope.Model called on " + s.kind.String() + " scope")
	}
	return s.model
}

// matches reports whether this single scope covers a target stream. A
// zero model means the target has no model (a tile document); a
// non-zero model means the target is a model-instance document.
func (s Scope) matches(stream, model streamid.StreamID) bool {
	if model.IsZero() {
		switch s.kind {
		case KindExact:
			return s.stream == stream
		case KindWildcard:
			return true
		default:
			// Model wildcards never cover unmodeled targets, and
			// invalid scopes never cover anything.
			return false
		}
	}

	// Model-instance target: only a wildcard naming this exact model
	// covers it. An unsatisfiable (zero-model) wildcard covers
	// nothing.
	return s.kind == KindModelWildcard && !s.model.IsZero() && s.model == model
}

// ScopeList is an ordered set of scopes with union semantics: a target
// is covered when any entry matches. The empty list covers nothing.
type ScopeList []Scope

// ParseScopes parses each string in raw, preserving order. Strings
// that fail to parse become KindInvalid entries rather than being
// dropped, so positions line up with the capability's resource list.
func ParseScopes(raw []string) ScopeList {
	if len(raw) == 0 {
		return nil
	}
	scopes := make(ScopeList, len(raw))
	for i, r := range raw {
		scopes[i] = ParseScope(r)
	}
	return scopes
}

// Covers reports whether any scope in the list covers the target
// stream. A zero model means the target has no model. An empty list
// covers nothing.
func (l ScopeList) Covers(stream, model streamid.StreamID) bool {
	_, ok := l.MatchedScope(stream, model)
	return ok
}

// MatchedScope returns the first scope in the list covering the
// target, for decision traces. Returns ok=false when nothing matches.
func (l ScopeList) MatchedScope(stream, model streamid.StreamID) (Scope, bool) {
	for _, scope := range l {
		if scope.matches(stream, model) {
			return scope, true
		}
	}
	return Scope{}, false
}

// Strings returns the raw form of every scope, preserving order.
func (l ScopeList) Strings() []string {
	if len(l) == 0 {
		return nil
	}
	raw := make([]string, len(l))
	for i, scope := range l {
		raw[i] = scope.raw
	}
	return raw
}
