// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the Unix socket protocol shared by kiln
// daemons and their clients.
//
// A kiln daemon is a standalone binary serving a CBOR request-response
// API on a Unix socket. Each connection carries exactly one exchange:
// the client writes a single CBOR map containing an "action" field plus
// action-specific fields, the server writes a single Response envelope,
// and the connection closes. CBOR is self-delimiting, so no framing
// protocol sits between the two values.
//
// The package provides building blocks, not a runtime: daemons compose
// SocketServer with their own handlers in main(), and tools reach them
// through Client.
//
// # Authentication
//
// There is no socket-level caller authentication. Filesystem
// permissions on the socket path determine who can reach a daemon.
// Operations that change daemon state (capability revocation) carry
// their own signed payloads and are verified against the identity
// registry, not against the connection.
package service
