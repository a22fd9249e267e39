// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding used for every serialized
// value in Turnstile: ledger object snapshots, append-only log
// records, and access token payloads.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same logical value always produces identical bytes. The ledger
// depends on this twice over: object snapshots are content-hashed for
// the log chain, and transaction staging deep-copies objects by
// round-tripping them through the codec.
package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding: sorted map keys, smallest integer encoding, no
// indefinite-length items.
var encMode cbor.EncMode

// decMode is the CBOR decoder configured to accept standard CBOR.
// Unknown fields are ignored for forward compatibility.
var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// ref.Address and ref.ObjectID implement encoding.TextMarshaler
	// over unexported fields. Without this setting they would encode
	// as empty CBOR maps and every identifier in the ledger would
	// silently serialize to nothing.
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Turnstile never uses non-string map keys. When decoding
		// into an any-typed target the decoder must pick a concrete
		// map type; map[string]any is what the rest of the code (and
		// encoding/json interop) expects.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		// Mirror of the TextMarshaler setting above so identifiers
		// round-trip through their UnmarshalText validation.
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// RawMessage is a raw encoded CBOR value. Use it to delay decoding or
// to embed pre-encoded CBOR. Type alias so consumers import only
// lib/codec, not fxamacker/cbor directly.
type RawMessage = cbor.RawMessage

// Encoder is a CBOR stream encoder. Type alias so consumers import
// only lib/codec.
type Encoder = cbor.Encoder

// Decoder is a CBOR stream decoder. Type alias so consumers import
// only lib/codec.
type Decoder = cbor.Decoder

// NewEncoder returns a CBOR encoder that writes to w using the
// deterministic encoding configuration.
func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a CBOR decoder that reads from r using the
// standard decoding configuration.
func NewDecoder(r io.Reader) *Decoder {
	return decMode.NewDecoder(r)
}
