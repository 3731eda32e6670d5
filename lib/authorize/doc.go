// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package authorize decides whether a signed commit may be applied to
// a stream.
//
// A decision consumes exactly three inputs: the commit envelope, a
// snapshot of the target stream's control metadata, and the evaluation
// time. Identity resolution is the only I/O; everything else is a pure
// function of those inputs, so the same commit against the same
// snapshot at the same instant always yields the same Result.
//
// Evaluation runs a fixed pipeline and stops at the first failure:
//
//  1. Verify the commit signature against the signer's resolved key.
//  2. If a capability is attached: parse it, check its validity
//     window, check that its audience is the signer or the signer's
//     parent (one hop, never more), verify its proof, and consult the
//     revocation registry. The write is then attributed to the
//     capability's issuer; without a capability it is attributed to
//     the signer itself.
//  3. Check the attributed issuer against the stream's controllers:
//     tiles admit any controller, model instances exactly their one
//     controller.
//  4. For delegated writes, check that the capability's scopes cover
//     the target: the stream itself for tiles, the model for model
//     instances.
//
// Every deny carries a reason and the checkpoint the pipeline reached,
// so callers can log and debug decisions without re-running them.
// Failures of the resolver are returned as errors, never as decisions:
// when identity cannot be established the caller must treat the commit
// as unauthorized, but the condition is transient and must not be
// cached or recorded as a policy denial.
package authorize
