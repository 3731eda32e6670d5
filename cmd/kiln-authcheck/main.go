// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/kiln-foundation/kiln/lib/version"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch args[0] {
	case "check":
		return runCheck(args[1:])
	case "inspect":
		return runInspect(args[1:])
	case "log":
		return runLog(args[1:])
	case "version", "--version":
		fmt.Printf("kiln-authcheck %s\n", version.Info())
		return 0
	case "-h", "--help", "help":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "error: unknown subcommand %q\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: kiln-authcheck <subcommand> [flags]

Subcommands:
  check     Evaluate a commit fixture against a stream snapshot
  inspect   Print a commit envelope in CBOR diagnostic notation
  log       Decode and print an audit log
  version   Print version information

Run 'kiln-authcheck <subcommand> --help' for subcommand flags.
`)
}
