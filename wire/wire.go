// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

// Package wire implements the message encoding used by netrun connections.
//
// A value is first encoded in an interchange [Format] (JSON by default), then
// compressed with the S2 block format. The compressed block records the length
// of its decompressed contents, so a decoder needs no out-of-band size. On the
// stream each encoded message is carried in a single length-prefixed frame
// (see [AppendFrame] and [ReadFrame]).
//
// All functions in this package are safe for concurrent use.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/s2"
)

// A Format converts values to and from an interchange encoding.
type Format interface {
	// Marshal encodes v in the interchange format.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes data into v, which must be a non-nil pointer.
	Unmarshal(data []byte, v any) error

	// String returns the name of the format.
	String() string
}

var (
	// JSON is the JSON interchange format. It is the default.
	JSON Format = jsonFormat{}

	// CBOR is the CBOR (RFC 8949) interchange format.
	CBOR Format = cborFormat{}
)

type jsonFormat struct{}

func (jsonFormat) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonFormat) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonFormat) String() string                     { return "json" }

type cborFormat struct{}

// cborDecoder decodes maps with no static type as map[string]any, matching the
// behaviour of JSON.
var cborDecoder = func() cbor.DecMode {
	dm, err := cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any(nil))}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

func (cborFormat) Marshal(v any) ([]byte, error)      { return cbor.Marshal(v) }
func (cborFormat) Unmarshal(data []byte, v any) error { return cborDecoder.Unmarshal(data, v) }
func (cborFormat) String() string                     { return "cbor" }

// FormatByName returns the format with the given name, which is matched
// without regard to case.
func FormatByName(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON, nil
	case "cbor":
		return CBOR, nil
	default:
		return nil, fmt.Errorf("unknown format %q", name)
	}
}

// DefaultMaxSize is the default limit on the decompressed size of a message.
const DefaultMaxSize = 8 << 20

// MaxSizeLimit is the largest size limit a Codec will apply. Larger values
// of MaxSize are reduced to this, so that every frame length fits in the
// frame header.
const MaxSizeLimit = 1 << 30

// A Codec encodes and decodes messages. A zero Codec is ready for use and
// uses the JSON format with the default size limit.
type Codec struct {
	// Format is the interchange format. If nil, JSON is used.
	Format Format

	// MaxSize bounds the decompressed size of a message accepted by Decode.
	// If MaxSize <= 0, DefaultMaxSize is used. Values above MaxSizeLimit are
	// reduced to MaxSizeLimit.
	MaxSize int
}

func (c Codec) format() Format {
	if c.Format == nil {
		return JSON
	}
	return c.Format
}

func (c Codec) maxSize() int {
	if c.MaxSize <= 0 {
		return DefaultMaxSize
	}
	return min(c.MaxSize, MaxSizeLimit)
}

// MaxFrameSize reports the largest frame payload that can carry a message
// accepted by c.
func (c Codec) MaxFrameSize() int { return s2.MaxEncodedLen(c.maxSize()) }

// Encode encodes v and compresses the result. If v cannot be represented in
// the interchange format, Encode reports an error of type *EncodeError.
func (c Codec) Encode(v any) ([]byte, error) {
	raw, err := c.format().Marshal(v)
	if err != nil {
		return nil, &EncodeError{Err: err}
	}
	return s2.Encode(nil, raw), nil
}

// Decode decompresses data and decodes the result into v. Any failure is
// reported as an error of type *DecodeError.
func (c Codec) Decode(data []byte, v any) error {
	n, err := s2.DecodedLen(data)
	if err != nil {
		return &DecodeError{Err: fmt.Errorf("decompress: %w", err)}
	} else if n > c.maxSize() {
		return &DecodeError{Err: fmt.Errorf("decompressed size %d exceeds limit %d", n, c.maxSize())}
	}
	raw, err := s2.Decode(nil, data)
	if err != nil {
		return &DecodeError{Err: fmt.Errorf("decompress: %w", err)}
	}
	if err := c.format().Unmarshal(raw, v); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

// Encode encodes v with the default codec.
func Encode(v any) ([]byte, error) { return Codec{}.Encode(v) }

// Decode decodes data into a value of type T with the default codec.
func Decode[T any](data []byte) (T, error) {
	var v T
	if err := (Codec{}).Decode(data, &v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// EncodeError reports a value that could not be serialized.
type EncodeError struct {
	Err error // the underlying interchange error
}

func (e *EncodeError) Error() string { return "failed to serialize: " + e.Err.Error() }

// Unwrap returns the underlying error of e.
func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError reports bytes that could not be decoded to the expected type.
// The message includes the underlying interchange error verbatim.
type DecodeError struct {
	Err error // the underlying decompression or interchange error
}

func (e *DecodeError) Error() string { return "failed to deserialize: " + e.Err.Error() }

// Unwrap returns the underlying error of e.
func (e *DecodeError) Unwrap() error { return e.Err }

// ErrFrameTooLarge is reported by ReadFrame for a frame whose declared length
// exceeds the caller's limit.
var ErrFrameTooLarge = errors.New("frame too large")
