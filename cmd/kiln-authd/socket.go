// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kiln-foundation/kiln/lib/audit"
	"github.com/kiln-foundation/kiln/lib/authorize"
	"github.com/kiln-foundation/kiln/lib/clock"
	"github.com/kiln-foundation/kiln/lib/codec"
	"github.com/kiln-foundation/kiln/lib/did"
	"github.com/kiln-foundation/kiln/lib/identity"
	"github.com/kiln-foundation/kiln/lib/resource"
	"github.com/kiln-foundation/kiln/lib/revocation"
	"github.com/kiln-foundation/kiln/lib/service"
	"github.com/kiln-foundation/kiln/lib/stream"
)

// authService is the daemon's core state: the evaluator, the
// revocation registry it feeds, and the instruments around them.
type authService struct {
	authorizer  *authorize.Authorizer
	revocations *revocation.Registry

	// resolver verifies revocation request signatures. It is the same
	// resolver stack the authorizer uses.
	resolver identity.Resolver

	// revokers are the DIDs allowed to sign revocation requests.
	// Empty means the revoke action refuses everything.
	revokers map[did.DID]struct{}

	// auditLog receives one record per decision. Nil when auditing is
	// disabled.
	auditLog *audit.Writer

	metrics   *metrics
	clock     clock.Clock
	startedAt time.Time
	logger    *slog.Logger

	allowed          atomic.Uint64
	denied           atomic.Uint64
	evaluationErrors atomic.Uint64
}

// registerActions registers all socket API actions on the server.
func (s *authService) registerActions(server *service.SocketServer) {
	server.Handle("authorize", s.handleAuthorize)
	server.Handle("revoke", s.handleRevoke)
	server.Handle("status", s.handleStatus)
}

// authorizeRequest is the wire form of the "authorize" action.
type authorizeRequest struct {
	// Commit is the full commit envelope (payload and proof items).
	Commit []byte `cbor:"commit"`

	// Snapshot is the target stream's control metadata.
	Snapshot stream.Snapshot `cbor:"snapshot"`
}

// authorizeResponse reports a decision and its evaluation trace.
type authorizeResponse struct {
	Decision        string `cbor:"decision"`
	Reason          string `cbor:"reason,omitempty"`
	Checkpoint      string `cbor:"checkpoint"`
	EffectiveIssuer string `cbor:"effective_issuer,omitempty"`
	CapabilityID    string `cbor:"capability_id,omitempty"`
	MatchedScope    string `cbor:"matched_scope,omitempty"`
}

// handleAuthorize evaluates one commit against one stream snapshot.
// On-the-merits outcomes (allow and every deny reason) come back as a
// successful response carrying the decision. Only malformed requests
// and resolver failures produce an error response: the caller must
// treat those as "not authorized" without recording a policy decision.
func (s *authService) handleAuthorize(ctx context.Context, raw []byte) (any, error) {
	var request authorizeRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("decoding authorize request: %w", err)
	}
	if len(request.Commit) == 0 {
		return nil, fmt.Errorf("missing required field: commit")
	}

	commit, err := stream.ParseCommit(request.Commit)
	if err != nil {
		return nil, fmt.Errorf("parsing commit: %w", err)
	}

	now := s.clock.Now()
	result, err := s.authorizer.Authorize(ctx, commit, request.Snapshot)
	if err != nil {
		s.evaluationErrors.Add(1)
		s.metrics.observeError()
		s.appendAudit(audit.Record{
			Time:   now,
			Stream: commit.Stream(),
			Signer: commit.Signer(),
			Error:  err.Error(),
		})
		return nil, fmt.Errorf("evaluating commit: %w", err)
	}

	if result.Decision == authorize.Allow {
		s.allowed.Add(1)
	} else {
		s.denied.Add(1)
	}
	s.metrics.observeDecision(result)
	s.appendAudit(decisionRecord(now, commit, result))

	return decisionResponse(result), nil
}

// decisionResponse flattens a Result into the wire form.
func decisionResponse(result authorize.Result) authorizeResponse {
	response := authorizeResponse{
		Decision:   result.Decision.String(),
		Checkpoint: result.Checkpoint.String(),
	}
	if result.Decision == authorize.Deny {
		response.Reason = result.Reason.String()
	}
	if !result.EffectiveIssuer.IsZero() {
		response.EffectiveIssuer = result.EffectiveIssuer.String()
	}
	if !result.CapabilityID.IsZero() {
		response.CapabilityID = result.CapabilityID.String()
	}
	if result.MatchedScope.Kind() != resource.KindInvalid {
		response.MatchedScope = result.MatchedScope.String()
	}
	return response
}

// decisionRecord builds the audit record for a completed evaluation.
func decisionRecord(now time.Time, commit *stream.Commit, result authorize.Result) audit.Record {
	record := audit.Record{
		Time:            now,
		Stream:          commit.Stream(),
		Signer:          commit.Signer(),
		Decision:        result.Decision.String(),
		Checkpoint:      result.Checkpoint.String(),
		EffectiveIssuer: result.EffectiveIssuer,
	}
	if result.Decision == authorize.Deny {
		record.Reason = result.Reason.String()
	}
	if !result.CapabilityID.IsZero() {
		record.CapabilityID = result.CapabilityID.String()
	}
	if result.MatchedScope.Kind() != resource.KindInvalid {
		record.MatchedScope = result.MatchedScope.String()
	}
	return record
}

// appendAudit writes one record to the audit log, if configured. A
// failed append is logged but does not fail the request: the decision
// already happened, and refusing to report it helps nobody.
func (s *authService) appendAudit(record audit.Record) {
	if s.auditLog == nil {
		return
	}
	if err := s.auditLog.Append(record); err != nil {
		s.logger.Error("audit append failed", "error", err)
	}
}

// revokeRequest is the wire form of the "revoke" action.
type revokeRequest struct {
	// Revocation is a signed revocation request (CBOR payload and
	// proof items).
	Revocation []byte `cbor:"revocation"`
}

// revokeResponse reports how many entries the registry absorbed.
type revokeResponse struct {
	Revoked int `cbor:"revoked"`
}

// handleRevoke verifies a signed revocation request and applies it to
// the registry. The signature must verify against the issuer's
// resolved key, and the issuer must be in the configured revokers
// list.
func (s *authService) handleRevoke(ctx context.Context, raw []byte) (any, error) {
	var request revokeRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("decoding revoke request: %w", err)
	}
	if len(request.Revocation) == 0 {
		return nil, fmt.Errorf("missing required field: revocation")
	}

	verified, err := revocation.Verify(ctx, s.resolver, request.Revocation)
	if err != nil {
		return nil, fmt.Errorf("revocation verification failed: %w", err)
	}

	if _, allowed := s.revokers[verified.Issuer]; !allowed {
		return nil, fmt.Errorf("issuer %s is not a configured revoker", verified.Issuer)
	}

	added := s.revocations.Apply(verified)
	s.logger.Info("capabilities revoked",
		"issuer", verified.Issuer,
		"entries", len(verified.Entries),
		"added", added,
	)

	return revokeResponse{Revoked: added}, nil
}

// statusResponse is the response to the "status" action.
type statusResponse struct {
	UptimeSeconds       float64 `cbor:"uptime_seconds"`
	Allowed             uint64  `cbor:"allowed"`
	Denied              uint64  `cbor:"denied"`
	EvaluationErrors    uint64  `cbor:"evaluation_errors"`
	RevokedCapabilities int     `cbor:"revoked_capabilities"`
}

// handleStatus reports uptime and decision counters.
func (s *authService) handleStatus(ctx context.Context, raw []byte) (any, error) {
	uptime := s.clock.Now().Sub(s.startedAt)
	return statusResponse{
		UptimeSeconds:       uptime.Seconds(),
		Allowed:             s.allowed.Load(),
		Denied:              s.denied.Load(),
		EvaluationErrors:    s.evaluationErrors.Load(),
		RevokedCapabilities: s.revocations.Len(),
	}, nil
}

// cleanupInterval is how often expired entries are swept from the
// revocation registry.
const cleanupInterval = time.Hour

// runCleanup sweeps the revocation registry until ctx is cancelled.
// Entries whose capability has passed its own expiry no longer affect
// decisions (the temporal check fires first), so dropping them only
// reclaims memory.
func (s *authService) runCleanup(ctx context.Context) {
	ticker := s.clock.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.revocations.Cleanup(s.clock.Now()); removed > 0 {
				s.logger.Info("revocation registry swept", "removed", removed)
			}
		}
	}
}
