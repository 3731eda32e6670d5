// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package keystore stores Ed25519 signing keys on disk, sealed with
// age scrypt (passphrase) encryption. Key material never touches disk
// unencrypted: the sealed file holds the age ciphertext of the 32-byte
// seed, and a cleartext .pub companion records the derived did:key for
// operators.
//
// Passphrases arrive as *secret.Buffer values. Conversion to string
// happens only at the age API boundary, where the heap copy is brief
// and call-scoped.
package keystore

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"

	"filippo.io/age"

	"github.com/kiln-foundation/kiln/lib/did"
	"github.com/kiln-foundation/kiln/lib/secret"
)

// ErrWrongPassphrase reports that the sealed key could not be opened
// with the supplied passphrase.
var ErrWrongPassphrase = errors.New("keystore: wrong passphrase")

// defaultWorkFactor is the scrypt cost exponent for newly sealed keys.
// It matches the age default.
const defaultWorkFactor = 18

// Generate creates a new Ed25519 signing keypair.
func Generate() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generating Ed25519 keypair: %w", err)
	}
	return public, private, nil
}

// Save seals the private key's seed to path with the passphrase and
// writes the derived did:key to path+".pub". The sealed file has 0600
// permissions, the .pub file 0644.
func Save(path string, key ed25519.PrivateKey, passphrase *secret.Buffer) error {
	return save(path, key, passphrase, defaultWorkFactor)
}

func save(path string, key ed25519.PrivateKey, passphrase *secret.Buffer, workFactor int) error {
	if len(key) != ed25519.PrivateKeySize {
		return fmt.Errorf("keystore: private key has %d bytes, want %d", len(key), ed25519.PrivateKeySize)
	}

	recipient, err := age.NewScryptRecipient(passphrase.String())
	if err != nil {
		return fmt.Errorf("keystore: building scrypt recipient: %w", err)
	}
	recipient.SetWorkFactor(workFactor)

	var sealed bytes.Buffer
	writer, err := age.Encrypt(&sealed, recipient)
	if err != nil {
		return fmt.Errorf("keystore: creating age encryptor: %w", err)
	}
	if _, err := writer.Write(key.Seed()); err != nil {
		return fmt.Errorf("keystore: sealing key seed: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("keystore: finalizing age encryption: %w", err)
	}

	if err := os.WriteFile(path, sealed.Bytes(), 0600); err != nil {
		return fmt.Errorf("keystore: writing sealed key: %w", err)
	}

	signer := did.FromPublicKey(key.Public().(ed25519.PublicKey))
	if err := os.WriteFile(path+".pub", []byte(signer.String()+"\n"), 0644); err != nil {
		return fmt.Errorf("keystore: writing public key: %w", err)
	}
	return nil
}

// Load opens the sealed key at path with the passphrase and rebuilds
// the Ed25519 private key from its seed. Returns ErrWrongPassphrase
// when the passphrase does not open the file.
func Load(path string, passphrase *secret.Buffer) (ed25519.PrivateKey, error) {
	sealed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keystore: reading sealed key: %w", err)
	}

	identity, err := age.NewScryptIdentity(passphrase.String())
	if err != nil {
		return nil, fmt.Errorf("keystore: building scrypt identity: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(sealed), identity)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) {
			return nil, ErrWrongPassphrase
		}
		return nil, fmt.Errorf("keystore: unsealing key: %w", err)
	}

	seed, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("keystore: reading unsealed seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		secret.Zero(seed)
		return nil, fmt.Errorf("keystore: sealed seed has %d bytes, want %d", len(seed), ed25519.SeedSize)
	}

	key := ed25519.NewKeyFromSeed(seed)
	secret.Zero(seed)
	return key, nil
}

// LoadOrGenerate loads the sealed key at path, or generates, saves,
// and returns a new one if the file does not exist. The boolean
// reports whether a new key was generated. A file that exists but
// cannot be opened (wrong passphrase, corruption) is an error, never
// silently replaced.
func LoadOrGenerate(path string, passphrase *secret.Buffer) (ed25519.PrivateKey, bool, error) {
	return loadOrGenerate(path, passphrase, defaultWorkFactor)
}

func loadOrGenerate(path string, passphrase *secret.Buffer, workFactor int) (ed25519.PrivateKey, bool, error) {
	key, err := Load(path, passphrase)
	if err == nil {
		return key, false, nil
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return nil, false, err
	}

	_, key, err = Generate()
	if err != nil {
		return nil, false, err
	}
	if err := save(path, key, passphrase, workFactor); err != nil {
		return nil, false, err
	}
	return key, true, nil
}
