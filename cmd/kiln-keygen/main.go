// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/kiln-foundation/kiln/lib/did"
	"github.com/kiln-foundation/kiln/lib/keystore"
	"github.com/kiln-foundation/kiln/lib/secret"
	"github.com/kiln-foundation/kiln/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("kiln-keygen", pflag.ContinueOnError)
	var (
		outPath        string
		showPath       string
		passphraseFile string
		showVersion    bool
	)
	flags.StringVar(&outPath, "out", "", "write a new sealed key to this path")
	flags.StringVar(&showPath, "show", "", "print the DID of an existing sealed key")
	flags.StringVar(&passphraseFile, "passphrase-file", "", `read the passphrase from this file ("-" for stdin) instead of prompting`)
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Printf("kiln-keygen %s\n", version.Info())
		return nil
	}

	switch {
	case outPath != "" && showPath != "":
		return fmt.Errorf("--out and --show are mutually exclusive")
	case outPath != "":
		return runGenerate(outPath, passphraseFile)
	case showPath != "":
		return runShow(showPath, passphraseFile)
	default:
		return fmt.Errorf("one of --out or --show is required")
	}
}

// runGenerate creates a new sealed key and prints its DID.
func runGenerate(outPath, passphraseFile string) error {
	if _, err := os.Stat(outPath); err == nil {
		return fmt.Errorf("%s already exists; refusing to overwrite a signing key", outPath)
	}

	passphrase, err := readPassphrase(passphraseFile, true)
	if err != nil {
		return err
	}
	defer passphrase.Close()

	signer, err := generate(outPath, passphrase)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "sealed key written to %s\n", outPath)
	fmt.Println(signer)
	return nil
}

// generate creates a keypair, seals it to outPath, and returns the
// derived DID.
func generate(outPath string, passphrase *secret.Buffer) (did.DID, error) {
	public, private, err := keystore.Generate()
	if err != nil {
		return did.DID{}, err
	}
	if err := keystore.Save(outPath, private, passphrase); err != nil {
		return did.DID{}, err
	}
	return did.FromPublicKey(public), nil
}

// runShow unseals an existing key and prints its DID.
func runShow(path, passphraseFile string) error {
	passphrase, err := readPassphrase(passphraseFile, false)
	if err != nil {
		return err
	}
	defer passphrase.Close()

	signer, err := show(path, passphrase)
	if err != nil {
		return err
	}

	fmt.Println(signer)
	return nil
}

// show unseals the key at path and re-derives its DID.
func show(path string, passphrase *secret.Buffer) (did.DID, error) {
	key, err := keystore.Load(path, passphrase)
	if err != nil {
		return did.DID{}, err
	}
	defer secret.Zero(key)

	return did.FromPublicKey(key.Public().(ed25519.PublicKey)), nil
}

// readPassphrase obtains the sealing passphrase: from a file (or stdin
// with "-") when passphraseFile is set, otherwise interactively with
// echo disabled. confirm prompts twice and requires both entries to
// match.
func readPassphrase(passphraseFile string, confirm bool) (*secret.Buffer, error) {
	if passphraseFile != "" {
		return secret.ReadFromPath(passphraseFile)
	}

	stdinFd := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFd) {
		return nil, fmt.Errorf("no terminal available for the passphrase prompt (use --passphrase-file)")
	}

	first, err := promptPassphrase(stdinFd, "Passphrase: ")
	if err != nil {
		return nil, err
	}
	if !confirm {
		return first, nil
	}

	second, err := promptPassphrase(stdinFd, "Confirm passphrase: ")
	if err != nil {
		first.Close()
		return nil, err
	}
	defer second.Close()

	if !first.Equal(second) {
		first.Close()
		return nil, fmt.Errorf("passphrases do not match")
	}
	return first, nil
}

// promptPassphrase reads one passphrase from the terminal with echo
// disabled. The prompt goes to stderr so stdout stays scriptable.
func promptPassphrase(fd int, prompt string) (*secret.Buffer, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}

	buffer, err := secret.NewFromBytes(raw)
	if err != nil {
		secret.Zero(raw)
		return nil, err
	}
	return buffer, nil
}
