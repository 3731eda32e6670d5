// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit writes and reads the append-only authorization audit
// log. Each decision becomes one JSON record stored in a length-framed
// entry:
//
//	[ tag: 1 byte ][ uncompressed length: uvarint ][ body length: uvarint ][ body ]
//
// The tag selects the body compression (none, lz4, zstd). Tags are
// per-frame: a writer configured for compression falls back to an
// uncompressed frame when a record does not shrink. Readers honor
// whatever tag each frame carries, so logs survive configuration
// changes mid-file.
package audit

import (
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/kiln-foundation/kiln/lib/did"
	"github.com/kiln-foundation/kiln/lib/streamid"
)

// Record is one authorization decision as it appears in the log. The
// decision fields hold the string forms so the log is self-describing
// without this module's enum values.
type Record struct {
	// Time is when the decision was made.
	Time time.Time `json:"time"`

	// Stream is the stream the commit targeted.
	Stream streamid.StreamID `json:"stream"`

	// Signer is the DID that signed the commit.
	Signer did.DID `json:"signer"`

	// Decision is "allow" or "deny". Empty when evaluation failed
	// before reaching a decision (see Error).
	Decision string `json:"decision,omitempty"`

	// Reason is the deny reason. Empty for allows.
	Reason string `json:"reason,omitempty"`

	// Checkpoint is the last pipeline stage completed.
	Checkpoint string `json:"checkpoint,omitempty"`

	// EffectiveIssuer is the DID the decision was attributed to. Zero
	// (serialized as "") when evaluation stopped before attribution.
	EffectiveIssuer did.DID `json:"effective_issuer"`

	// CapabilityID identifies the capability presented, when any.
	CapabilityID string `json:"capability_id,omitempty"`

	// MatchedScope is the resource scope that satisfied the check,
	// for delegated allows.
	MatchedScope string `json:"matched_scope,omitempty"`

	// Error records an evaluation that failed with an infrastructure
	// error instead of producing a decision.
	Error string `json:"error,omitempty"`
}

// Compression identifies the body compression of a log frame. The
// values are format constants; changing them breaks existing logs.
type Compression uint8

const (
	// CompressionNone stores the JSON record as-is.
	CompressionNone Compression = 0

	// CompressionLZ4 uses LZ4 block compression. Cheap enough to be
	// the default for a hot decision path.
	CompressionLZ4 Compression = 1

	// CompressionZstd uses zstd at the default level. Better ratio
	// for long-retention logs.
	CompressionZstd Compression = 2
)

// String returns the name used in configuration files.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a configuration name. The empty string
// selects CompressionNone.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown audit compression %q", name)
	}
}

// maxRecordSize bounds both the compressed and uncompressed size of a
// single record. Frames claiming more are treated as corruption.
const maxRecordSize = 1 << 20

// zstdEncoder and zstdDecoder are shared across the package. Both are
// safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("audit: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("audit: zstd decoder initialization failed: " + err.Error())
	}
}

// errIncompressible signals that compression would not shrink the
// record; the writer falls back to an uncompressed frame.
var errIncompressible = fmt.Errorf("record is incompressible")

func compress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil

	case CompressionLZ4:
		destination := make([]byte, lz4.CompressBlockBound(len(data)))
		written, err := lz4.CompressBlock(data, destination, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		// CompressBlock reports incompressible input as 0 bytes
		// written.
		if written == 0 || written >= len(data) {
			return nil, errIncompressible
		}
		return destination[:written], nil

	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) >= len(data) {
			return nil, errIncompressible
		}
		return compressed, nil

	default:
		return nil, fmt.Errorf("unsupported audit compression: %d", c)
	}
}

func decompress(body []byte, c Compression, uncompressedSize int) ([]byte, error) {
	switch c {
	case CompressionNone:
		if len(body) != uncompressedSize {
			return nil, fmt.Errorf("uncompressed frame: body is %d bytes, header says %d", len(body), uncompressedSize)
		}
		return body, nil

	case CompressionLZ4:
		destination := make([]byte, uncompressedSize)
		read, err := lz4.UncompressBlock(body, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != uncompressedSize {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, uncompressedSize)
		}
		return destination, nil

	case CompressionZstd:
		result, err := zstdDecoder.DecodeAll(body, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(result) != uncompressedSize {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), uncompressedSize)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("unsupported frame compression: %d", c)
	}
}
