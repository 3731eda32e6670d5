// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package authorize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiln-foundation/kiln/lib/capability"
	"github.com/kiln-foundation/kiln/lib/clock"
	"github.com/kiln-foundation/kiln/lib/identity"
	"github.com/kiln-foundation/kiln/lib/revocation"
	"github.com/kiln-foundation/kiln/lib/stream"
	"github.com/kiln-foundation/kiln/lib/streamid"
)

// Config assembles an Authorizer.
type Config struct {
	// Resolver establishes identities and key material. Required.
	Resolver identity.Resolver

	// Clock supplies the evaluation time for Authorize. Defaults to
	// the real clock.
	Clock clock.Clock

	// Revocations is consulted for attached capabilities when set.
	Revocations *revocation.Registry

	// Logger receives one debug record per decision when set.
	Logger *slog.Logger
}

// Authorizer evaluates commits against stream snapshots. Safe for
// concurrent use.
type Authorizer struct {
	resolver    identity.Resolver
	clock       clock.Clock
	revocations *revocation.Registry
	logger      *slog.Logger
}

// New creates an Authorizer from cfg.
func New(cfg Config) (*Authorizer, error) {
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("authorize: a resolver is required")
	}
	c := cfg.Clock
	if c == nil {
		c = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Authorizer{
		resolver:    cfg.Resolver,
		clock:       c,
		revocations: cfg.Revocations,
		logger:      logger,
	}, nil
}

// Authorize evaluates a commit against a stream snapshot at the
// current time. The returned error is non-nil only when identity
// resolution or the inputs themselves fail; the caller must then
// treat the commit as unauthorized without recording a policy
// decision. All on-the-merits outcomes arrive as a Result.
func (a *Authorizer) Authorize(ctx context.Context, commit *stream.Commit, snapshot stream.Snapshot) (Result, error) {
	return a.AuthorizeAt(ctx, commit, snapshot, a.clock.Now())
}

// AuthorizeAt is like Authorize but evaluates at an explicit time.
// This supports deterministic testing and replaying audit questions
// ("would this commit have been authorized at T?").
func (a *Authorizer) AuthorizeAt(ctx context.Context, commit *stream.Commit, snapshot stream.Snapshot, now time.Time) (Result, error) {
	result, err := a.evaluate(ctx, commit, snapshot, now)
	if err != nil {
		a.logger.Debug("authorization aborted",
			"error", err,
			"checkpoint", result.Checkpoint.String(),
		)
		return result, err
	}
	attrs := []any{
		"stream", commit.Stream().String(),
		"signer", commit.Signer().String(),
		"decision", result.Decision.String(),
		"checkpoint", result.Checkpoint.String(),
	}
	if result.Decision == Deny {
		attrs = append(attrs, "reason", result.Reason.String())
	}
	if !result.CapabilityID.IsZero() {
		attrs = append(attrs, "capability", result.CapabilityID.Short())
	}
	a.logger.Debug("authorization decision", attrs...)
	return result, nil
}

func (a *Authorizer) evaluate(ctx context.Context, commit *stream.Commit, snapshot stream.Snapshot, now time.Time) (Result, error) {
	result := Result{Decision: Deny, Checkpoint: Received}

	if commit == nil {
		return result, fmt.Errorf("authorize: nil commit")
	}
	if err := snapshot.Validate(); err != nil {
		return result, fmt.Errorf("authorize: %w", err)
	}
	if !commit.Stream().Equal(snapshot.ID) {
		return result, fmt.Errorf("authorize: commit targets %s but snapshot describes %s", commit.Stream(), snapshot.ID)
	}

	// Resolve the signer. The resolution also supplies the parent
	// link the chain check needs.
	signer, err := a.resolver.Resolve(ctx, commit.Signer())
	if err != nil {
		return result, fmt.Errorf("resolving signer %s: %w", commit.Signer(), err)
	}

	// The commit's own signature.
	if err := capability.VerifyProof(commit.Proof(), commit.SignedBytes(), signer.Key); err != nil {
		result.Reason = ReasonInvalidSignature
		return result, nil
	}

	// The capability chain, when a capability is attached. The write
	// is attributed to the capability's issuer; a bare commit is
	// attributed to the signer.
	var cap *capability.Capability
	if commit.HasCapability() {
		cap, err = capability.Parse(commit.CapabilityEnvelope())
		if err != nil {
			result.Reason = ReasonMalformedCapability
			return result, nil
		}
		result.CapabilityID = cap.ID()

		if err := cap.TemporallyValid(now); err != nil {
			if errors.Is(err, capability.ErrNotYetValid) {
				result.Reason = ReasonNotYetValid
			} else {
				result.Reason = ReasonExpiredCapability
			}
			return result, nil
		}

		// One delegation hop: the audience must be the signer, or the
		// signer's parent when the signer is a session key acting for
		// it. Longer chains do not exist.
		audience := cap.Audience()
		if !audience.Equal(commit.Signer()) {
			if !signer.Identity.HasParent() || !audience.Equal(signer.Identity.Parent) {
				result.Reason = ReasonInvalidCapabilityChain
				return result, nil
			}
		}

		if err := cap.VerifySignature(ctx, a.resolver); err != nil {
			if errors.Is(err, capability.ErrInvalidSignature) {
				result.Reason = ReasonInvalidSignature
				return result, nil
			}
			return result, fmt.Errorf("verifying capability %s: %w", cap.ID().Short(), err)
		}

		if a.revocations != nil && a.revocations.IsRevoked(cap.ID()) {
			result.Reason = ReasonCapabilityRevoked
			return result, nil
		}

		result.EffectiveIssuer = cap.Issuer()
	} else {
		result.EffectiveIssuer = commit.Signer()
	}
	result.Checkpoint = ChainVerified

	// Controller policy. The validated snapshot pins model instances
	// to a single controller, so membership covers both stream types.
	if !snapshot.HasController(result.EffectiveIssuer) {
		result.Reason = ReasonIssuerMismatch
		return result, nil
	}
	result.Checkpoint = IssuerChecked

	// Scope enforcement applies only to delegated writes; a
	// controller signing in its own right holds no scopes to check.
	if cap != nil {
		var model streamid.StreamID
		if snapshot.Type == stream.TypeModelInstance {
			model = snapshot.Model
		}
		matched, ok := cap.Scopes().MatchedScope(snapshot.ID, model)
		if !ok {
			result.Reason = ReasonInsufficientCapabilityScope
			return result, nil
		}
		result.MatchedScope = matched
	}
	result.Checkpoint = ScopeChecked

	result.Decision = Allow
	return result, nil
}
