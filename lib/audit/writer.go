// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// Writer appends framed records to an underlying stream. Safe for
// concurrent use; each record is written with a single Write call so
// frames from concurrent appenders do not interleave on O_APPEND
// files.
type Writer struct {
	mu          sync.Mutex
	out         io.Writer
	closer      io.Closer
	compression Compression
}

// NewWriter wraps an existing stream. The caller keeps ownership of
// out; Close only detaches.
func NewWriter(out io.Writer, compression Compression) (*Writer, error) {
	if compression > CompressionZstd {
		return nil, fmt.Errorf("unsupported audit compression: %d", compression)
	}
	return &Writer{out: out, compression: compression}, nil
}

// OpenFile opens (creating if needed) an audit log file in append
// mode. Close closes the file.
func OpenFile(path string, compression Compression) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	writer, err := NewWriter(file, compression)
	if err != nil {
		file.Close()
		return nil, err
	}
	writer.closer = file
	return writer, nil
}

// Append writes one record. A record that does not shrink under the
// configured compression is stored uncompressed; the frame tag records
// the choice.
func (w *Writer) Append(record Record) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding audit record: %w", err)
	}
	if len(encoded) > maxRecordSize {
		return fmt.Errorf("audit record is %d bytes, cap is %d", len(encoded), maxRecordSize)
	}

	tag := w.compression
	body, err := compress(encoded, tag)
	if errors.Is(err, errIncompressible) {
		tag, body = CompressionNone, encoded
	} else if err != nil {
		return err
	}

	frame := make([]byte, 0, 1+2*binary.MaxVarintLen64+len(body))
	frame = append(frame, byte(tag))
	frame = binary.AppendUvarint(frame, uint64(len(encoded)))
	frame = binary.AppendUvarint(frame, uint64(len(body)))
	frame = append(frame, body...)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.out == nil {
		return fmt.Errorf("audit writer is closed")
	}
	if _, err := w.out.Write(frame); err != nil {
		return fmt.Errorf("writing audit frame: %w", err)
	}
	return nil
}

// Close releases the writer. When the writer owns its file (OpenFile),
// the file is closed. Idempotent.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.out == nil {
		return nil
	}
	w.out = nil
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
