// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// HeaderLen is the size in bytes of the frame header, a big-endian uint32
// giving the length of the payload that follows.
const HeaderLen = 4

// AppendFrame appends a frame carrying payload to dst and returns the updated
// slice. The result is meant to be written to the stream in a single call.
func AppendFrame(dst, payload []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...)
}

// ReadFrame reads a single frame from r and returns its payload. A frame with
// an empty payload returns an empty non-nil slice.
//
// If r is at end of input before the header, ReadFrame returns io.EOF. If the
// declared payload length exceeds max, ReadFrame reports ErrFrameTooLarge; in
// that case the stream is no longer aligned on a frame boundary. A negative
// max is treated as zero.
func ReadFrame(r io.Reader, max int) ([]byte, error) {
	if max < 0 {
		max = 0
	}
	var hdr [HeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, fmt.Errorf("short frame header: %w", err)
	}
	size := binary.BigEndian.Uint32(hdr[:])
	if uint64(size) > uint64(max) {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrFrameTooLarge, size, max)
	}
	buf := make([]byte, int(size))
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("short frame payload: %w", err)
	}
	return buf, nil
}
