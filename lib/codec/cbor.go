// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode = mustEncMode()
	decMode = mustDecMode()
)

// mustEncMode builds the package encoder: Core Deterministic Encoding
// (RFC 8949 §4.2), so a logical value has exactly one wire form.
// Stream IDs, commit IDs, and capability IDs are digests over these
// bytes; a second valid encoding of the same value would split its
// identity.
func mustEncMode() cbor.EncMode {
	options := cbor.CoreDetEncOptions()
	// DIDs, stream IDs, and capability IDs carry their value in
	// unexported fields and marshal through encoding.TextMarshaler.
	// Encode them as CBOR text strings; the struct-walking default
	// would emit them as empty maps.
	options.TextMarshaler = cbor.TextMarshalerTextString
	mode, err := options.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	return mode
}

// mustDecMode builds the package decoder. Decoding is permissive
// about unknown fields so old binaries can read envelopes from newer
// writers.
func mustDecMode() cbor.DecMode {
	mode, err := cbor.DecOptions{
		// Nothing kiln puts on the wire keys a map with a non-string,
		// so any-typed targets decode to map[string]any instead of
		// the CBOR default map[any]any, which encoding/json and most
		// Go code cannot digest. Struct targets are unaffected.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		// Inverse of the TextMarshaler setting: text strings decode
		// back through encoding.TextUnmarshaler.
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
	return mode
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Encoder, Decoder, and RawMessage alias their fxamacker/cbor
// counterparts so the rest of the tree imports only lib/codec.
// RawMessage holds an encoded item verbatim, which is how signed
// payloads pass through without re-encoding.
type (
	Encoder    = cbor.Encoder
	Decoder    = cbor.Decoder
	RawMessage = cbor.RawMessage
)

// NewEncoder returns a deterministic stream encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a stream decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return decMode.NewDecoder(r)
}

// Diagnose renders data in CBOR diagnostic notation (RFC 8949 §8).
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}

// DiagnoseFirst renders the first item of data in diagnostic notation
// and returns the remaining bytes. Signed envelopes are item
// sequences (payload, then proof), so this walks them one item at a
// time.
func DiagnoseFirst(data []byte) (string, []byte, error) {
	return cbor.DiagnoseFirst(data)
}
