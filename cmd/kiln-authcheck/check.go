// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/pflag"

	"github.com/kiln-foundation/kiln/lib/authorize"
	"github.com/kiln-foundation/kiln/lib/clock"
	"github.com/kiln-foundation/kiln/lib/identity"
	"github.com/kiln-foundation/kiln/lib/resource"
	"github.com/kiln-foundation/kiln/lib/revocation"
	"github.com/kiln-foundation/kiln/lib/service"
	"github.com/kiln-foundation/kiln/lib/stream"
)

// decisionReport is the decision in both wire and output form: CBOR
// tags match the kiln-authd authorize response, JSON tags drive
// --json output.
type decisionReport struct {
	Decision        string `cbor:"decision" json:"decision"`
	Reason          string `cbor:"reason,omitempty" json:"reason,omitempty"`
	Checkpoint      string `cbor:"checkpoint" json:"checkpoint"`
	EffectiveIssuer string `cbor:"effective_issuer,omitempty" json:"effective_issuer,omitempty"`
	CapabilityID    string `cbor:"capability_id,omitempty" json:"capability_id,omitempty"`
	MatchedScope    string `cbor:"matched_scope,omitempty" json:"matched_scope,omitempty"`
}

func runCheck(args []string) int {
	flags := pflag.NewFlagSet("check", pflag.ContinueOnError)
	var (
		commitPath   string
		streamPath   string
		registryPath string
		socketPath   string
		jsonOutput   bool
	)
	flags.StringVar(&commitPath, "commit", "", "signed commit fixture (JSONC)")
	flags.StringVar(&streamPath, "stream", "", "stream snapshot fixture (JSONC)")
	flags.StringVar(&registryPath, "registry", "", "identity registry (JSONC); default is builtin resolution")
	flags.StringVar(&socketPath, "socket", "", "evaluate through a running kiln-authd socket")
	flags.BoolVar(&jsonOutput, "json", false, "print the decision as JSON")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	if commitPath == "" || streamPath == "" {
		fmt.Fprintln(os.Stderr, "error: --commit and --stream are required")
		return 2
	}
	if socketPath != "" && registryPath != "" {
		fmt.Fprintln(os.Stderr, "error: --registry has no effect with --socket; the daemon resolves identities")
		return 2
	}

	commitBytes, err := loadCommitFixture(commitPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	snapshot, err := loadSnapshotFixture(streamPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	ctx := context.Background()
	var report decisionReport
	if socketPath != "" {
		report, err = evaluateSocket(ctx, socketPath, commitBytes, snapshot)
	} else {
		report, err = evaluateOffline(ctx, registryPath, commitBytes, snapshot)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	if jsonOutput {
		encoded, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 2
		}
		fmt.Println(string(encoded))
	} else {
		fmt.Print(formatReport(report))
	}

	if report.Decision == authorize.Allow.String() {
		return 0
	}
	return 1
}

// evaluateOffline runs the authorization engine in-process with an
// empty revocation registry and the real clock.
func evaluateOffline(ctx context.Context, registryPath string, commitBytes []byte, snapshot stream.Snapshot) (decisionReport, error) {
	var resolver identity.Resolver
	if registryPath != "" {
		registry, err := identity.LoadRegistry(registryPath)
		if err != nil {
			return decisionReport{}, err
		}
		resolver = registry
	} else {
		resolver = identity.NewBuiltinResolver()
	}

	commit, err := stream.ParseCommit(commitBytes)
	if err != nil {
		return decisionReport{}, fmt.Errorf("parsing commit: %w", err)
	}

	authorizer, err := authorize.New(authorize.Config{
		Resolver:    resolver,
		Clock:       clock.Real(),
		Revocations: revocation.NewRegistry(),
	})
	if err != nil {
		return decisionReport{}, err
	}

	result, err := authorizer.Authorize(ctx, commit, snapshot)
	if err != nil {
		return decisionReport{}, fmt.Errorf("evaluating commit: %w", err)
	}
	return reportFromResult(result), nil
}

// evaluateSocket sends the commit to a running daemon and decodes its
// response.
func evaluateSocket(ctx context.Context, socketPath string, commitBytes []byte, snapshot stream.Snapshot) (decisionReport, error) {
	client := service.NewClient(socketPath)
	var report decisionReport
	err := client.Call(ctx, "authorize", map[string]any{
		"commit":   commitBytes,
		"snapshot": snapshot,
	}, &report)
	if err != nil {
		return decisionReport{}, err
	}
	return report, nil
}

// reportFromResult flattens an engine result into the report form.
func reportFromResult(result authorize.Result) decisionReport {
	report := decisionReport{
		Decision:   result.Decision.String(),
		Checkpoint: result.Checkpoint.String(),
	}
	if result.Decision == authorize.Deny {
		report.Reason = result.Reason.String()
	}
	if !result.EffectiveIssuer.IsZero() {
		report.EffectiveIssuer = result.EffectiveIssuer.String()
	}
	if !result.CapabilityID.IsZero() {
		report.CapabilityID = result.CapabilityID.String()
	}
	if result.MatchedScope.Kind() != resource.KindInvalid {
		report.MatchedScope = result.MatchedScope.String()
	}
	return report
}

// evaluationStages is the fixed checkpoint order of the engine. The
// report's checkpoint is the last stage that passed.
var evaluationStages = []string{"received", "chain-verified", "issuer-checked", "scope-checked"}

// formatReport writes a human-readable decision trace.
func formatReport(report decisionReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DECISION: %s\n", report.Decision)
	if report.Reason != "" {
		fmt.Fprintf(&b, "REASON:   %s\n", report.Reason)
	}

	b.WriteString("\nEVALUATION:\n")
	reached := slices.Index(evaluationStages, report.Checkpoint)
	if reached < 0 {
		fmt.Fprintf(&b, "  checkpoint %s\n", report.Checkpoint)
	} else {
		for i := 0; i <= reached; i++ {
			fmt.Fprintf(&b, "  %d. %-14s passed\n", i+1, evaluationStages[i])
		}
		if report.Decision != authorize.Allow.String() && reached+1 < len(evaluationStages) {
			fmt.Fprintf(&b, "  %d. %-14s failed\n", reached+2, evaluationStages[reached+1])
		}
	}

	if report.EffectiveIssuer != "" || report.CapabilityID != "" || report.MatchedScope != "" {
		b.WriteString("\nATTRIBUTION:\n")
		if report.EffectiveIssuer != "" {
			fmt.Fprintf(&b, "  issuer:     %s\n", report.EffectiveIssuer)
		}
		if report.CapabilityID != "" {
			fmt.Fprintf(&b, "  capability: %s\n", report.CapabilityID)
		}
		if report.MatchedScope != "" {
			fmt.Fprintf(&b, "  scope:      %s\n", report.MatchedScope)
		}
	}
	return b.String()
}
