// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// kiln-authcheck evaluates a signed commit against a stream snapshot
// and prints the decision with its evaluation trace. It is the
// operator's one-shot view of what the authorization engine would say,
// either in-process (offline) or through a running kiln-authd socket.
//
// # Checking a commit
//
//	kiln-authcheck check --commit commit.jsonc --stream stream.jsonc
//	kiln-authcheck check --commit commit.jsonc --stream stream.jsonc --registry registry.jsonc
//	kiln-authcheck check --commit commit.jsonc --stream stream.jsonc --socket /run/kiln/authd.sock
//
// Offline evaluation resolves identities with the builtin did:key and
// did:pkh rules, or from a JSONC registry file when --registry is
// given. With --socket the commit is sent to the daemon instead, so
// the decision reflects the daemon's resolver, cache, and revocation
// state.
//
// Fixtures are JSONC (comments and trailing commas allowed). A commit
// fixture wraps the signed wire envelope in base64:
//
//	{
//	  // Produced by a Kiln writer; standard base64.
//	  "commit": "uQEaAfX...",
//	}
//
// A stream fixture is the snapshot itself:
//
//	{
//	  "id": "k3vQpN...",
//	  "type": "tile",
//	  "controllers": ["did:key:z6Mkh..."],
//	}
//
// The human-readable output is the decision followed by the stage
// trace, with the checkpoint marking how far evaluation got:
//
//	DECISION: deny
//	REASON:   capability expired
//
//	EVALUATION:
//	  1. received       passed
//	  2. chain-verified failed
//
// With --json the decision is printed as a JSON object instead.
//
// Exit codes: 0 allow, 1 deny, 2 evaluation or usage error. A denied
// commit is a successful evaluation; only infrastructure failures
// (unreadable fixtures, resolver errors, unreachable daemon) exit 2.
//
// # Inspecting a commit envelope
//
//	kiln-authcheck inspect --commit commit.jsonc
//
// Prints the envelope's payload and proof in CBOR diagnostic notation
// without verifying signatures or evaluating policy. Useful when the
// engine rejects a commit as malformed and the question is what the
// writer actually put on the wire.
//
//	PAYLOAD: {"data": {"title": "hello"}, "prev": h'12ab...'}
//	PROOF:   {"signature": h'77fe...', "kind": "ed25519"}
//
// # Reading audit logs
//
//	kiln-authcheck log --audit /var/log/kiln/decisions.audit
//
// Decodes a kiln-authd audit log and prints one line per record, or
// one JSON object per line with --json.
package main
