// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"testing"

	"github.com/kiln-foundation/kiln/lib/streamid"
)

var (
	streamA = streamid.FromGenesis([]byte("stream-a"))
	streamB = streamid.FromGenesis([]byte("stream-b"))
	modelX  = streamid.FromGenesis([]byte("model-x"))
	modelY  = streamid.FromGenesis([]byte("model-y"))
	noModel = streamid.StreamID{}
)

func TestParseScope(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Kind
	}{
		{"exact", "ceramic://" + streamA.String(), KindExact},
		{"wildcard", "ceramic://*", KindWildcard},
		{"model wildcard", "ceramic://*?model=" + modelX.String(), KindModelWildcard},
		{"empty model", "ceramic://*?model=", KindModelWildcard},
		{"unparseable model", "ceramic://*?model=not-a-stream", KindModelWildcard},
		{"empty string", "", KindInvalid},
		{"wrong scheme", "https://" + streamA.String(), KindInvalid},
		{"scheme only", "ceramic://", KindInvalid},
		{"junk id", "ceramic://not-a-stream", KindInvalid},
		{"double wildcard", "ceramic://**", KindInvalid},
		{"query on exact", "ceramic://" + streamA.String() + "?model=" + modelX.String(), KindInvalid},
		{"unknown parameter", "ceramic://*?controller=x", KindInvalid},
		{"extra parameter", "ceramic://*?model=" + modelX.String() + "&x=1", KindInvalid},
		{"bare query", "ceramic://*?", KindInvalid},
		{"missing equals", "ceramic://*?model", KindInvalid},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			scope := ParseScope(test.raw)
			if scope.Kind() != test.want {
				t.Errorf("ParseScope(%q).Kind() = %v, want %v", test.raw, scope.Kind(), test.want)
			}
			if scope.Raw() != test.raw {
				t.Errorf("Raw() = %q, want %q (verbatim retention)", scope.Raw(), test.raw)
			}
		})
	}
}

func TestParseScopeFields(t *testing.T) {
	exact := ParseScope("ceramic://" + streamA.String())
	if exact.Stream() != streamA {
		t.Errorf("Stream() = %v, want %v", exact.Stream(), streamA)
	}

	modelScope := ParseScope("ceramic://*?model=" + modelX.String())
	if modelScope.Model() != modelX {
		t.Errorf("Model() = %v, want %v", modelScope.Model(), modelX)
	}

	emptyModel := ParseScope("ceramic://*?model=")
	if !emptyModel.Model().IsZero() {
		t.Error("empty model value should parse to a zero model")
	}
}

func TestCoversUnmodeledTargets(t *testing.T) {
	tests := []struct {
		name   string
		scopes []string
		stream streamid.StreamID
		want   bool
	}{
		{"exact match", []string{"ceramic://" + streamA.String()}, streamA, true},
		{"exact other stream", []string{"ceramic://" + streamA.String()}, streamB, false},
		{"wildcard", []string{"ceramic://*"}, streamA, true},
		{"wildcard any stream", []string{"ceramic://*"}, streamB, true},
		{"model wildcard never covers unmodeled", []string{"ceramic://*?model=" + modelX.String()}, streamA, false},
		{"empty list", nil, streamA, false},
		{"malformed never matches", []string{"ceramic:/broken", "http://x", "ceramic://zzz"}, streamA, false},
		{"union finds match", []string{"ceramic://" + streamB.String(), "ceramic://" + streamA.String()}, streamA, true},
		{"malformed beside valid", []string{"ceramic://zzz", "ceramic://*"}, streamA, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			scopes := ParseScopes(test.scopes)
			if got := scopes.Covers(test.stream, noModel); got != test.want {
				t.Errorf("Covers(%v, none) = %v, want %v (scopes %v)", test.stream, got, test.want, test.scopes)
			}
		})
	}
}

func TestCoversModelInstanceTargets(t *testing.T) {
	tests := []struct {
		name   string
		scopes []string
		stream streamid.StreamID
		model  streamid.StreamID
		want   bool
	}{
		{"model wildcard covers its model", []string{"ceramic://*?model=" + modelX.String()}, streamA, modelX, true},
		{"model wildcard other model", []string{"ceramic://*?model=" + modelX.String()}, streamA, modelY, false},
		{"exact stream ID insufficient", []string{"ceramic://" + streamA.String()}, streamA, modelX, false},
		{"bare wildcard insufficient", []string{"ceramic://*"}, streamA, modelX, false},
		{"empty model value unsatisfiable", []string{"ceramic://*?model="}, streamA, modelX, false},
		{"unparseable model unsatisfiable", []string{"ceramic://*?model=garbage"}, streamA, modelX, false},
		{"model wildcard among others", []string{"ceramic://" + streamA.String(), "ceramic://*?model=" + modelX.String()}, streamA, modelX, true},
		{"empty list", nil, streamA, modelX, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			scopes := ParseScopes(test.scopes)
			if got := scopes.Covers(test.stream, test.model); got != test.want {
				t.Errorf("Covers(%v, %v) = %v, want %v (scopes %v)", test.stream, test.model, got, test.want, test.scopes)
			}
		})
	}
}

func TestMatchedScopeReturnsFirstMatch(t *testing.T) {
	scopes := ParseScopes([]string{
		"ceramic://" + streamB.String(),
		"ceramic://*",
		"ceramic://" + streamA.String(),
	})

	matched, ok := scopes.MatchedScope(streamA, noModel)
	if !ok {
		t.Fatal("expected a match")
	}
	if matched.Raw() != "ceramic://*" {
		t.Errorf("MatchedScope = %q, want the wildcard (first matching entry)", matched.Raw())
	}

	if _, ok := ScopeList(nil).MatchedScope(streamA, noModel); ok {
		t.Error("empty list should not match")
	}
}

func TestParseScopesPreservesPositions(t *testing.T) {
	raw := []string{"ceramic://*", "broken", "ceramic://" + streamA.String()}
	scopes := ParseScopes(raw)

	if len(scopes) != len(raw) {
		t.Fatalf("len = %d, want %d", len(scopes), len(raw))
	}
	if scopes[1].Kind() != KindInvalid {
		t.Errorf("scopes[1].Kind() = %v, want KindInvalid", scopes[1].Kind())
	}
	got := scopes.Strings()
	for i := range raw {
		if got[i] != raw[i] {
			t.Errorf("Strings()[%d] = %q, want %q", i, got[i], raw[i])
		}
	}
}
