// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
)

// ReadFromPath loads a secret from path, with "-" meaning the first
// line of stdin. Surrounding whitespace is trimmed, the secret lands
// in a protected Buffer owned by the caller, and the transient read
// is zeroed on the way.
func ReadFromPath(path string) (*Buffer, error) {
	raw, err := readRaw(path)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		Zero(raw)
		return nil, fmt.Errorf("secret is empty")
	}

	buffer, err := NewFromBytes(trimmed)
	// NewFromBytes scrubbed trimmed; this catches the surrounding
	// whitespace and, for stdin, the scanner's internal buffer.
	Zero(raw)
	if err != nil {
		return nil, err
	}
	return buffer, nil
}

func readRaw(path string) ([]byte, error) {
	if path != "-" {
		return os.ReadFile(path)
	}
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return nil, fmt.Errorf("stdin is empty")
	}
	// Deliberately aliases the scanner's buffer so the caller's Zero
	// reaches it.
	return scanner.Bytes(), nil
}
