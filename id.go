// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package netrun

import (
	"encoding/binary"
	"fmt"
	"hash/maphash"
	"reflect"
	"time"
)

// newInstanceID returns a short identifier for a client or server instance.
// It is meant for correlating log lines, and is not cryptographically random.
func newInstanceID() string {
	var h maphash.Hash
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(time.Now().UnixNano()))
	h.Write(buf[:])
	fmt.Fprintf(&h, "%p", new(byte))
	return fmt.Sprintf("%010x", h.Sum64()>>24)
}

// typeName returns the name of T as written in Go source.
func typeName[T any]() string { return reflect.TypeFor[T]().String() }
