// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/kiln-foundation/kiln/lib/codec"
)

func runInspect(args []string) int {
	flags := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
	commitPath := flags.String("commit", "", "commit fixture to inspect (JSONC)")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: kiln-authcheck inspect --commit <file>\n\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *commitPath == "" {
		fmt.Fprintln(os.Stderr, "error: --commit is required")
		flags.Usage()
		return 2
	}

	wire, err := loadCommitFixture(*commitPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	rendered, err := formatEnvelope(wire)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	fmt.Print(rendered)
	return 0
}

// formatEnvelope renders a signed envelope's item sequence in CBOR
// diagnostic notation without verifying anything. The envelope need
// not even parse as a commit, which is the point: this is the tool
// for looking at bytes the engine rejects.
func formatEnvelope(wire []byte) (string, error) {
	payload, rest, err := codec.DiagnoseFirst(wire)
	if err != nil {
		return "", fmt.Errorf("payload is not CBOR: %w", err)
	}
	if len(rest) == 0 {
		return "", errors.New("envelope ends after the payload item; no proof follows")
	}
	proof, err := codec.Diagnose(rest)
	if err != nil {
		return "", fmt.Errorf("proof is not CBOR: %w", err)
	}
	return fmt.Sprintf("PAYLOAD: %s\nPROOF:   %s\n", payload, proof), nil
}
