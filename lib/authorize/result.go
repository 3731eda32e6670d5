// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package authorize

import (
	"github.com/kiln-foundation/kiln/lib/capability"
	"github.com/kiln-foundation/kiln/lib/did"
	"github.com/kiln-foundation/kiln/lib/resource"
)

// Decision is the outcome of an authorization check.
type Decision int

const (
	// Deny means the commit must not be applied.
	Deny Decision = iota

	// Allow means the commit is authorized.
	Allow
)

// String returns "allow" or "deny".
func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// DenyReason describes why a commit was denied.
type DenyReason int

const (
	// ReasonMalformedCapability means the attached capability envelope
	// did not parse.
	ReasonMalformedCapability DenyReason = iota

	// ReasonInvalidSignature means a signature did not verify: the
	// commit's own signature, or the attached capability's proof.
	ReasonInvalidSignature

	// ReasonNotYetValid means the capability's validity window has not
	// opened.
	ReasonNotYetValid

	// ReasonExpiredCapability means the capability's validity window
	// has closed.
	ReasonExpiredCapability

	// ReasonInvalidCapabilityChain means the capability's audience is
	// neither the commit signer nor the signer's parent.
	ReasonInvalidCapabilityChain

	// ReasonCapabilityRevoked means the capability was withdrawn
	// before its natural expiry.
	ReasonCapabilityRevoked

	// ReasonIssuerMismatch means the attributed issuer is not a
	// controller of the stream (or, for model instances, not the
	// controller).
	ReasonIssuerMismatch

	// ReasonInsufficientCapabilityScope means no scope of the
	// capability covers the target.
	ReasonInsufficientCapabilityScope
)

// String returns a human-readable reason.
func (r DenyReason) String() string {
	switch r {
	case ReasonMalformedCapability:
		return "malformed capability"
	case ReasonInvalidSignature:
		return "invalid signature"
	case ReasonNotYetValid:
		return "capability not yet valid"
	case ReasonExpiredCapability:
		return "capability expired"
	case ReasonInvalidCapabilityChain:
		return "invalid capability chain"
	case ReasonCapabilityRevoked:
		return "capability revoked"
	case ReasonIssuerMismatch:
		return "issuer is not a stream controller"
	case ReasonInsufficientCapabilityScope:
		return "insufficient capability scope"
	default:
		return "unknown"
	}
}

// Checkpoint is the last pipeline stage a commit passed. A denied
// commit failed in the stage after its checkpoint; an allowed commit
// always reaches ScopeChecked.
type Checkpoint int

const (
	// Received: the commit arrived; nothing has been verified.
	Received Checkpoint = iota

	// ChainVerified: the commit signature, and the capability's
	// window, audience linkage, proof, and revocation status, all
	// passed.
	ChainVerified

	// IssuerChecked: the attributed issuer satisfies the stream's
	// controller policy.
	IssuerChecked

	// ScopeChecked: the capability's scopes cover the target.
	ScopeChecked
)

// String returns the stage name used in traces and logs.
func (c Checkpoint) String() string {
	switch c {
	case Received:
		return "received"
	case ChainVerified:
		return "chain-verified"
	case IssuerChecked:
		return "issuer-checked"
	case ScopeChecked:
		return "scope-checked"
	default:
		return "unknown"
	}
}

// Result describes the outcome of an authorization check, including
// the decision and a trace of how far evaluation got. The trace
// supports debugging (kiln-authcheck) and audit logging.
type Result struct {
	// Decision is Allow or Deny.
	Decision Decision

	// Reason describes why the check was denied. Only meaningful when
	// Decision is Deny.
	Reason DenyReason

	// Checkpoint is the last stage the commit passed.
	Checkpoint Checkpoint

	// EffectiveIssuer is the DID the write is attributed to: the
	// capability's issuer for delegated writes, the signer itself
	// otherwise. Zero if evaluation failed before attribution.
	EffectiveIssuer did.DID

	// CapabilityID is the content address of the attached capability.
	// Zero for self-signed commits or when the capability did not
	// parse.
	CapabilityID capability.ID

	// MatchedScope is the first capability scope that covered the
	// target. Zero for self-signed commits or when denied before the
	// scope stage.
	MatchedScope resource.Scope
}
