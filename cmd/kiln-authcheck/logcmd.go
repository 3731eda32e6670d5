// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kiln-foundation/kiln/lib/audit"
)

func runLog(args []string) int {
	flags := pflag.NewFlagSet("log", pflag.ContinueOnError)
	var (
		auditPath  string
		jsonOutput bool
	)
	flags.StringVar(&auditPath, "audit", "", "audit log to decode")
	flags.BoolVar(&jsonOutput, "json", false, "print one JSON object per record")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	if auditPath == "" {
		fmt.Fprintln(os.Stderr, "error: --audit is required")
		return 2
	}

	file, err := os.Open(auditPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	defer file.Close()

	reader := audit.NewReader(file)
	for {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return 0
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: reading audit log: %v\n", err)
			return 2
		}
		if jsonOutput {
			encoded, err := json.Marshal(record)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				return 2
			}
			fmt.Println(string(encoded))
		} else {
			fmt.Println(formatRecord(record))
		}
	}
}

// formatRecord renders one audit record as a single line. Records for
// failed evaluations (no decision) show as "error".
func formatRecord(record audit.Record) string {
	verdict := record.Decision
	if record.Error != "" {
		verdict = "error"
	}
	line := fmt.Sprintf("%s  %-5s  stream=%s  signer=%s",
		record.Time.UTC().Format(time.RFC3339), verdict, record.Stream, record.Signer)
	if record.Reason != "" {
		line += fmt.Sprintf("  reason=%q", record.Reason)
	}
	if record.CapabilityID != "" {
		line += fmt.Sprintf("  capability=%s", record.CapabilityID)
	}
	if record.Error != "" {
		line += fmt.Sprintf("  error=%q", record.Error)
	}
	return line
}
