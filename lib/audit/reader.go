// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Reader decodes framed records in sequence.
type Reader struct {
	in *bufio.Reader
}

// NewReader wraps a log stream positioned at a frame boundary.
func NewReader(in io.Reader) *Reader {
	return &Reader{in: bufio.NewReader(in)}
}

// Next returns the next record. Returns io.EOF at a clean end of the
// log; a log truncated mid-frame reports io.ErrUnexpectedEOF.
func (r *Reader) Next() (Record, error) {
	tagByte, err := r.in.ReadByte()
	if err != nil {
		// EOF here is the clean end between frames.
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("reading frame tag: %w", err)
	}
	tag := Compression(tagByte)

	uncompressedSize, err := readSize(r.in)
	if err != nil {
		return Record{}, fmt.Errorf("reading uncompressed size: %w", err)
	}
	bodySize, err := readSize(r.in)
	if err != nil {
		return Record{}, fmt.Errorf("reading body size: %w", err)
	}

	body := make([]byte, bodySize)
	if _, err := io.ReadFull(r.in, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Record{}, fmt.Errorf("reading frame body: %w", err)
	}

	encoded, err := decompress(body, tag, uncompressedSize)
	if err != nil {
		return Record{}, err
	}

	var record Record
	if err := json.Unmarshal(encoded, &record); err != nil {
		return Record{}, fmt.Errorf("decoding audit record: %w", err)
	}
	return record, nil
}

// readSize reads a uvarint bounded by maxRecordSize. The bound keeps a
// corrupt header from forcing a giant allocation.
func readSize(in io.ByteReader) (int, error) {
	size, err := binary.ReadUvarint(in)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, err
	}
	if size > maxRecordSize {
		return 0, fmt.Errorf("frame claims %d bytes, cap is %d", size, maxRecordSize)
	}
	return int(size), nil
}
