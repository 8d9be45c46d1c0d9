// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package wire_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/creachadair/netrun/wire"
	"github.com/google/go-cmp/cmp"
)

type user struct {
	Age    int     `json:"age" cbor:"age"`
	Height float32 `json:"height" cbor:"height"`
	Name   string  `json:"name" cbor:"name"`
}

func TestRoundTrip(t *testing.T) {
	users := make([]user, 100)
	for i := range users {
		users[i] = user{Age: 55, Height: 1.9, Name: "Roma"}
	}

	for _, f := range []wire.Format{wire.JSON, wire.CBOR} {
		t.Run(f.String(), func(t *testing.T) {
			c := wire.Codec{Format: f}
			enc, err := c.Encode(users)
			if err != nil {
				t.Fatalf("Encode: unexpected error: %v", err)
			}
			raw, err := f.Marshal(users)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if len(enc) >= len(raw) {
				t.Errorf("Encoded size %d, want < %d (uncompressed)", len(enc), len(raw))
			}
			t.Logf("Encoded %d bytes as %d", len(raw), len(enc))

			var got []user
			if err := c.Decode(enc, &got); err != nil {
				t.Fatalf("Decode: unexpected error: %v", err)
			}
			if diff := cmp.Diff(users, got); diff != "" {
				t.Errorf("Round trip (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeGeneric(t *testing.T) {
	for _, v := range []float64{0, 0.0042, -17, 1e9} {
		enc, err := wire.Encode(v)
		if err != nil {
			t.Fatalf("Encode %v: %v", v, err)
		}
		got, err := wire.Decode[float64](enc)
		if err != nil {
			t.Fatalf("Decode %v: %v", v, err)
		}
		if got != v {
			t.Errorf("Decode: got %v, want %v", got, v)
		}
	}
}

func TestDecodeMismatch(t *testing.T) {
	enc, err := wire.Encode(1)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := wire.Decode[bool](enc)
	var derr *wire.DecodeError
	if !errors.As(err, &derr) {
		t.Fatalf("Decode: got (%v, %v), want *DecodeError", got, err)
	}
	var terr *json.UnmarshalTypeError
	if !errors.As(err, &terr) {
		t.Errorf("Decode: error %v does not wrap *json.UnmarshalTypeError", err)
	}
	if msg := err.Error(); !strings.HasPrefix(msg, "failed to deserialize: json: cannot unmarshal") {
		t.Errorf("Decode: got message %q", msg)
	}
}

func TestDecodeCorrupt(t *testing.T) {
	tests := [][]byte{
		nil,
		[]byte("not compressed at all"),
		{0xff, 0xff, 0xff, 0xff, 0x0f}, // declared length 4GiB
	}
	for _, in := range tests {
		var v any
		err := wire.Codec{}.Decode(in, &v)
		var derr *wire.DecodeError
		if !errors.As(err, &derr) {
			t.Errorf("Decode %q: got %v, want *DecodeError", in, err)
		}
	}
}

func TestDecodeLimit(t *testing.T) {
	c := wire.Codec{MaxSize: 16}
	enc, err := c.Encode(strings.Repeat("x", 64))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var s string
	if err := c.Decode(enc, &s); err == nil || !strings.Contains(err.Error(), "exceeds limit") {
		t.Errorf("Decode: got %v, want size limit error", err)
	}
}

func TestEncodeError(t *testing.T) {
	_, err := wire.Encode(make(chan int))
	var eerr *wire.EncodeError
	if !errors.As(err, &eerr) {
		t.Fatalf("Encode: got %v, want *EncodeError", err)
	}
	t.Logf("Error OK: %v", err)
}

func TestFormatByName(t *testing.T) {
	tests := []struct {
		name string
		want wire.Format
	}{
		{"", wire.JSON},
		{"json", wire.JSON},
		{"JSON", wire.JSON},
		{" cbor ", wire.CBOR},
	}
	for _, tc := range tests {
		got, err := wire.FormatByName(tc.name)
		if err != nil {
			t.Errorf("FormatByName(%q): unexpected error: %v", tc.name, err)
		} else if got != tc.want {
			t.Errorf("FormatByName(%q): got %v, want %v", tc.name, got, tc.want)
		}
	}
	if f, err := wire.FormatByName("yaml"); err == nil {
		t.Errorf("FormatByName(yaml): got %v, want error", f)
	}
}

func TestFrames(t *testing.T) {
	msgs := [][]byte{[]byte("alpha"), {}, []byte("a somewhat longer payload")}

	var buf []byte
	for _, m := range msgs {
		buf = wire.AppendFrame(buf, m)
	}
	r := bytes.NewReader(buf)
	for i, want := range msgs {
		got, err := wire.ReadFrame(r, 64)
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i+1, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("ReadFrame %d: got %q, want %q", i+1, got, want)
		}
	}
	if got, err := wire.ReadFrame(r, 64); err != io.EOF {
		t.Errorf("ReadFrame at end: got (%q, %v), want EOF", got, err)
	}

	t.Run("TooLarge", func(t *testing.T) {
		big := wire.AppendFrame(nil, make([]byte, 100))
		_, err := wire.ReadFrame(bytes.NewReader(big), 99)
		if !errors.Is(err, wire.ErrFrameTooLarge) {
			t.Errorf("ReadFrame: got %v, want %v", err, wire.ErrFrameTooLarge)
		}
	})
	t.Run("NegativeLimit", func(t *testing.T) {
		big := wire.AppendFrame(nil, []byte("x"))
		if _, err := wire.ReadFrame(bytes.NewReader(big), -1); !errors.Is(err, wire.ErrFrameTooLarge) {
			t.Errorf("ReadFrame: got %v, want %v", err, wire.ErrFrameTooLarge)
		}
		empty := wire.AppendFrame(nil, nil)
		if got, err := wire.ReadFrame(bytes.NewReader(empty), -1); err != nil || len(got) != 0 {
			t.Errorf("ReadFrame empty: got (%q, %v), want empty", got, err)
		}
	})
	t.Run("Truncated", func(t *testing.T) {
		short := wire.AppendFrame(nil, []byte("hello"))
		_, err := wire.ReadFrame(bytes.NewReader(short[:6]), 64)
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("ReadFrame: got %v, want %v", err, io.ErrUnexpectedEOF)
		}
	})
}

func TestMaxFrameSize(t *testing.T) {
	for _, size := range []int{-5, 0, 64, wire.DefaultMaxSize, wire.MaxSizeLimit, wire.MaxSizeLimit + 1, math.MaxInt} {
		c := wire.Codec{MaxSize: size}
		n := c.MaxFrameSize()
		if n <= 0 || uint64(n) > math.MaxUint32 {
			t.Errorf("MaxFrameSize(%d): got %d, want in (0, %d]", size, n, uint64(math.MaxUint32))
		}

		// Whatever the limit, an ordinary message makes it through.
		enc, err := c.Encode("hello")
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		data, err := wire.ReadFrame(bytes.NewReader(wire.AppendFrame(nil, enc)), n)
		if err != nil {
			t.Fatalf("ReadFrame(%d): %v", size, err)
		}
		var got string
		if err := c.Decode(data, &got); err != nil || got != "hello" {
			t.Errorf("Decode(%d): got (%q, %v), want hello", size, got, err)
		}
	}
}

func TestCBORGenericMap(t *testing.T) {
	c := wire.Codec{Format: wire.CBOR}
	enc, err := c.Encode(map[string]any{"name": "Roma", "tags": []string{"a", "b"}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var got any
	if err := c.Decode(enc, &got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := map[string]any{"name": "Roma", "tags": []any{"a", "b"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Decode (-want, +got):\n%s", diff)
	}
}
