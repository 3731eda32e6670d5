// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kiln-foundation/kiln/lib/did"
	"github.com/kiln-foundation/kiln/lib/streamid"
)

func testRecords(t *testing.T) []Record {
	t.Helper()
	signer, err := did.Parse("did:key:z6MkhaXgBZDvotDkL5257faiztiGiC2QtKLGpbnnEGta2doK")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []Record{
		{
			Time:            base,
			Stream:          streamid.FromGenesis([]byte("doc-a")),
			Signer:          signer,
			Decision:        "allow",
			Checkpoint:      "scope-checked",
			EffectiveIssuer: signer,
			CapabilityID:    "cap-" + strings.Repeat("ab", 32),
			MatchedScope:    "ceramic://*",
		},
		{
			Time:       base.Add(time.Second),
			Stream:     streamid.FromGenesis([]byte("doc-b")),
			Signer:     signer,
			Decision:   "deny",
			Reason:     "issuer-mismatch",
			Checkpoint: "chain-verified",
		},
		{
			Time:   base.Add(2 * time.Second),
			Stream: streamid.FromGenesis([]byte("doc-c")),
			Signer: signer,
			Error:  "resolving identity: registry unreachable",
		},
	}
}

func recordsEqual(a, b Record) bool {
	if !a.Time.Equal(b.Time) {
		return false
	}
	a.Time, b.Time = time.Time{}, time.Time{}
	return a == b
}

func TestRoundtrip(t *testing.T) {
	records := testRecords(t)

	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			var log bytes.Buffer
			writer, err := NewWriter(&log, compression)
			if err != nil {
				t.Fatalf("NewWriter: %v", err)
			}
			for _, record := range records {
				if err := writer.Append(record); err != nil {
					t.Fatalf("Append: %v", err)
				}
			}

			reader := NewReader(bytes.NewReader(log.Bytes()))
			for i, want := range records {
				got, err := reader.Next()
				if err != nil {
					t.Fatalf("Next %d: %v", i, err)
				}
				if !recordsEqual(got, want) {
					t.Errorf("record %d = %+v, want %+v", i, got, want)
				}
			}
			if _, err := reader.Next(); err != io.EOF {
				t.Fatalf("Next after end: got %v, want io.EOF", err)
			}
		})
	}
}

func TestMixedCompressionFrames(t *testing.T) {
	records := testRecords(t)
	var log bytes.Buffer

	// Simulate a configuration change mid-file: frames carry their
	// own tags, so the reader does not care.
	for i, compression := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
		writer, err := NewWriter(&log, compression)
		if err != nil {
			t.Fatalf("NewWriter: %v", err)
		}
		if err := writer.Append(records[i]); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	reader := NewReader(bytes.NewReader(log.Bytes()))
	for i, want := range records {
		got, err := reader.Next()
		if err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
		if !recordsEqual(got, want) {
			t.Errorf("record %d = %+v, want %+v", i, got, want)
		}
	}
}

func TestIncompressibleInput(t *testing.T) {
	data := make([]byte, 4096)
	rand.Read(data)

	for _, compression := range []Compression{CompressionLZ4, CompressionZstd} {
		if _, err := compress(data, compression); !errors.Is(err, errIncompressible) {
			t.Errorf("%s on random data: got %v, want errIncompressible", compression, err)
		}
	}

	// The writer falls back to an uncompressed frame and the record
	// still roundtrips.
	record := testRecords(t)[0]
	record.Error = hex.EncodeToString(data)

	var log bytes.Buffer
	writer, err := NewWriter(&log, CompressionLZ4)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := writer.Append(record); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := NewReader(bytes.NewReader(log.Bytes())).Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got.Error != record.Error {
		t.Error("incompressible record did not roundtrip")
	}
}

func TestEmptyLog(t *testing.T) {
	if _, err := NewReader(bytes.NewReader(nil)).Next(); err != io.EOF {
		t.Fatalf("Next on empty log: got %v, want io.EOF", err)
	}
}

func TestTruncatedLog(t *testing.T) {
	records := testRecords(t)
	var log bytes.Buffer
	writer, err := NewWriter(&log, CompressionNone)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for _, record := range records[:2] {
		if err := writer.Append(record); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	truncated := log.Bytes()[:log.Len()-10]
	reader := NewReader(bytes.NewReader(truncated))
	if _, err := reader.Next(); err != nil {
		t.Fatalf("first Next: %v", err)
	}
	if _, err := reader.Next(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("second Next: got %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestOversizedFrameHeader(t *testing.T) {
	// A frame header claiming 2 MiB must be rejected before any
	// allocation of that size.
	frame := []byte{byte(CompressionNone), 0x80, 0x80, 0x80, 0x01, 0x00}
	_, err := NewReader(bytes.NewReader(frame)).Next()
	if err == nil || !strings.Contains(err.Error(), "cap") {
		t.Fatalf("Next: got %v, want frame size cap error", err)
	}
}

func TestAppendOversizedRecord(t *testing.T) {
	var log bytes.Buffer
	writer, err := NewWriter(&log, CompressionNone)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	record := Record{Error: strings.Repeat("x", maxRecordSize+1)}
	if err := writer.Append(record); err == nil {
		t.Fatal("Append: expected error for an oversized record")
	}
}

func TestWriterClose(t *testing.T) {
	var log bytes.Buffer
	writer, err := NewWriter(&log, CompressionNone)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := writer.Append(testRecords(t)[0]); err == nil {
		t.Fatal("Append after Close: expected error")
	}
}

func TestOpenFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.log")
	records := testRecords(t)

	// Two sessions against the same path must append, not truncate.
	for _, record := range records[:2] {
		writer, err := OpenFile(path, CompressionZstd)
		if err != nil {
			t.Fatalf("OpenFile: %v", err)
		}
		if err := writer.Append(record); err != nil {
			t.Fatalf("Append: %v", err)
		}
		if err := writer.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer file.Close()

	reader := NewReader(file)
	for i, want := range records[:2] {
		got, err := reader.Next()
		if err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
		if !recordsEqual(got, want) {
			t.Errorf("record %d = %+v, want %+v", i, got, want)
		}
	}
	if _, err := reader.Next(); err != io.EOF {
		t.Fatalf("Next after end: got %v, want io.EOF", err)
	}
}

func TestCompressionNames(t *testing.T) {
	tests := []struct {
		name        string
		compression Compression
	}{
		{"none", CompressionNone},
		{"lz4", CompressionLZ4},
		{"zstd", CompressionZstd},
	}
	for _, test := range tests {
		if got := test.compression.String(); got != test.name {
			t.Errorf("String() = %q, want %q", got, test.name)
		}
		parsed, err := ParseCompression(test.name)
		if err != nil || parsed != test.compression {
			t.Errorf("ParseCompression(%q) = %v, %v", test.name, parsed, err)
		}
	}

	if parsed, err := ParseCompression(""); err != nil || parsed != CompressionNone {
		t.Errorf("ParseCompression(\"\") = %v, %v, want none", parsed, err)
	}
	if _, err := ParseCompression("gzip"); err == nil {
		t.Error("ParseCompression(\"gzip\"): expected error")
	}
}
