// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package did

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/sha3"
)

const pkhPrefix = "did:pkh:"

// Address is a 20-byte Ethereum account address.
type Address [20]byte

// String returns the address in EIP-55 checksummed hex form
// ("0x" prefix, mixed case).
func (a Address) String() string {
	lower := hex.EncodeToString(a[:])
	digest := keccak256([]byte(lower))
	checksummed := []byte(lower)
	for i, c := range checksummed {
		if c < 'a' || c > 'f' {
			continue
		}
		// Nibble i of the digest decides the case of hex digit i.
		nibble := digest[i/2] >> 4
		if i%2 == 1 {
			nibble = digest[i/2] & 0x0f
		}
		if nibble >= 8 {
			checksummed[i] = c - ('a' - 'A')
		}
	}
	return "0x" + string(checksummed)
}

// IsZero reports whether the address is all zero bytes.
func (a Address) IsZero() bool { return a == Address{} }

// ParseAddress validates a "0x"-prefixed hex account address.
// All-lowercase and all-uppercase hex are accepted as unchecksummed;
// mixed-case input must carry a valid EIP-55 checksum.
func ParseAddress(raw string) (Address, error) {
	if !strings.HasPrefix(raw, "0x") && !strings.HasPrefix(raw, "0X") {
		return Address{}, fmt.Errorf("address %q missing 0x prefix", raw)
	}
	digits := raw[2:]
	if len(digits) != 40 {
		return Address{}, fmt.Errorf("address %q has %d hex digits, want 40", raw, len(digits))
	}
	decoded, err := hex.DecodeString(digits)
	if err != nil {
		return Address{}, fmt.Errorf("address %q is not hex: %w", raw, err)
	}
	var address Address
	copy(address[:], decoded)

	hasUpper := strings.ContainsAny(digits, "ABCDEF")
	hasLower := strings.ContainsAny(digits, "abcdef")
	if hasUpper && hasLower && raw[2:] != address.String()[2:] {
		return Address{}, fmt.Errorf("address %q fails EIP-55 checksum", raw)
	}
	return address, nil
}

// AddressFromPublicKey derives the Ethereum account address for a
// secp256k1 public key: the last 20 bytes of the Keccak-256 digest of
// the uncompressed key (without the 0x04 prefix byte).
func AddressFromPublicKey(key *secp256k1.PublicKey) Address {
	uncompressed := key.SerializeUncompressed()
	digest := keccak256(uncompressed[1:])
	var address Address
	copy(address[:], digest[12:])
	return address
}

// FromAccount constructs the did:pkh identifier for an eip155 account.
// Panics on a zero chain ID; chain 0 is not a valid eip155 reference.
func FromAccount(chainID uint64, address Address) DID {
	if chainID == 0 {
		panic("did: zero chain ID for did:pkh account")
	}
	return DID{raw: fmt.Sprintf("%seip155:%d:%s", pkhPrefix, chainID, address)}
}

// parsePKH validates a did:pkh identifier and canonicalizes the
// address to its EIP-55 form. Only the eip155 namespace is accepted.
func parsePKH(raw string) (DID, error) {
	rest := raw[len(pkhPrefix):]
	parts := strings.SplitN(rest, ":", 3)
	if len(parts) != 3 {
		return DID{}, fmt.Errorf("did:pkh %q is not namespace:reference:address", raw)
	}
	if parts[0] != "eip155" {
		return DID{}, fmt.Errorf("did:pkh %q uses unsupported namespace %q", raw, parts[0])
	}
	chainID, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return DID{}, fmt.Errorf("did:pkh %q has invalid chain ID: %w", raw, err)
	}
	if chainID == 0 || parts[1] != strconv.FormatUint(chainID, 10) {
		return DID{}, fmt.Errorf("did:pkh %q has non-canonical chain ID %q", raw, parts[1])
	}
	address, err := ParseAddress(parts[2])
	if err != nil {
		return DID{}, fmt.Errorf("did:pkh %q: %w", raw, err)
	}
	return FromAccount(chainID, address), nil
}

// Account returns the chain ID and account address of a did:pkh
// identifier. Returns an error for other methods. Panics if called on
// a zero-value DID.
func (d DID) Account() (chainID uint64, address Address, err error) {
	if d.Method() != MethodPKH {
		return 0, Address{}, fmt.Errorf("%s is not a blockchain account", d.raw)
	}
	parts := strings.SplitN(d.raw[len(pkhPrefix):], ":", 3)
	chainID, parseErr := strconv.ParseUint(parts[1], 10, 64)
	if parseErr != nil {
		// DID was validated at construction; this is unreachable.
		panic(fmt.Sprintf("DID.Account: internal error parsing %q: %v", d.raw, parseErr))
	}
	address, parseErr = ParseAddress(parts[2])
	if parseErr != nil {
		// DID was validated at construction; this is unreachable.
		panic(fmt.Sprintf("DID.Account: internal error parsing %q: %v", d.raw, parseErr))
	}
	return chainID, address, nil
}

// keccak256 returns the legacy Keccak-256 digest Ethereum uses (not
// the finalized SHA-3).
func keccak256(data ...[]byte) []byte {
	digest := sha3.NewLegacyKeccak256()
	for _, d := range data {
		digest.Write(d)
	}
	return digest.Sum(nil)
}
