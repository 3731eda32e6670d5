// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Kiln-authd is the authorization daemon. It evaluates signed stream
// commits against capability delegations and stream control metadata,
// and answers allow/deny over a Unix socket.
//
// The daemon holds no stream state. Each request carries everything
// the decision needs: the commit envelope bytes and a snapshot of the
// target stream's controllers. The only state the daemon accumulates
// is the revocation registry, fed by signed revocation requests over
// the same socket and swept hourly for entries past their capability's
// natural expiry.
//
// # Configuration
//
// A single YAML file, passed via --config:
//
//	socket_path: /run/kiln/authd.sock
//	registry_path: /etc/kiln/identities.jsonc
//	metrics_address: 127.0.0.1:9464
//	audit_path: /var/log/kiln/decisions.log
//	audit_compression: zstd
//	resolver_cache_ttl: 30s
//	revokers:
//	  - did:key:z6MkhaXgBZDvotDkL5257faiztiGiC2QtKLGpbnnEGta2doK
//
// Only socket_path has a default. With no registry_path, every DID
// resolves through the builtin did:key and did:pkh rules. With no
// revokers, the revoke action refuses all requests.
//
// # Socket API
//
// Clients connect to the Unix socket and send one CBOR request per
// connection. The "action" field selects the operation: authorize
// (commit bytes + stream snapshot, returns the decision with its
// evaluation trace), revoke (signed revocation request), or status
// (uptime and decision counters).
package main
