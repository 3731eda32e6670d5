// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package resource implements the capability resource-scope grammar
// and its matching rules.
//
// A scope is a URI-shaped string naming the streams a capability
// grants write access to:
//
//	ceramic://<stream-id>          one specific stream
//	ceramic://*                    every stream
//	ceramic://*?model=<model-id>   every stream whose model is <model-id>
//
// Scope strings are parsed exactly once, at capability ingestion, into
// a closed set of variants (Kind). Matching is then a total function
// over the parsed form: it cannot fail, and malformed input cannot be
// misread at decision time.
//
// # Fail-closed rules
//
// Matching never raises and never guesses:
//
//   - A scope that does not parse (wrong scheme, junk after the ID,
//     unknown query parameters) is KindInvalid. It is kept verbatim
//     for diagnostics and matches nothing.
//   - A model wildcard whose model value is empty or unparseable is
//     present but unsatisfiable: it matches nothing.
//   - An empty scope list covers nothing.
//
// # Model-instance targets
//
// A target with a model (a model-instance document) is only covered by
// a model wildcard naming that model. Naming the document's own stream
// ID, or holding the bare wildcard, is not sufficient: write access to
// a modeled document is granted per model, so a delegation that never
// mentions the model does not extend to its instances. Targets without
// a model are covered by their exact stream ID or the bare wildcard;
// model wildcards never cover them.
package resource
