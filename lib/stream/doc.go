// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream models the mutable documents of the network: their
// control metadata and the signed commits that mutate them.
//
// The authorization engine never sees a full stream, only a Snapshot
// of the control fields a decision needs: type, controllers, and for
// model instances the model stream. Snapshots come from whatever
// storage the caller has; the engine treats them as ground truth for
// the moment of the decision.
//
// A Commit is the unit of mutation: an envelope naming the target
// stream and the signing DID, carrying opaque payload data, an
// optional link to the previous commit, and an optional capability
// that justifies the write. Commits share the capability package's
// proof forms, so a wallet that can sign a capability can sign a
// commit the same way.
package stream
