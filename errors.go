// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package netrun

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/creachadair/netrun/wire"
)

var (
	// ErrClosed is reported by a connection whose stream has ended or that
	// has been closed.
	ErrClosed = errors.New("connection closed")

	// ErrServerClosed is reported by the Receive method of a server that has
	// been closed.
	ErrServerClosed = errors.New("server closed")
)

type (
	// EncodeError reports a value that could not be serialized.
	EncodeError = wire.EncodeError

	// DecodeError reports bytes that did not decode to the expected type.
	DecodeError = wire.DecodeError
)

// IOError reports a read or write failure on an established connection.
type IOError struct {
	Op  string // "read", "write", or "addr"
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("%s failed: %v", e.Op, e.Err) }

// Unwrap returns the underlying error of e.
func (e *IOError) Unwrap() error { return e.Err }

// BindError reports a listener that could not be created.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string { return fmt.Sprintf("bind %s: %v", e.Addr, e.Err) }

// Unwrap returns the underlying error of e.
func (e *BindError) Unwrap() error { return e.Err }

// DialError reports a client that could not connect. Its text is that of the
// underlying dial error, unchanged.
type DialError struct {
	Addr string
	Err  error
}

func (e *DialError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error of e.
func (e *DialError) Unwrap() error { return e.Err }

// isClosed reports whether err means the stream ended or the socket closed.
func isClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

// isBrokenPipe reports whether err indicates the remote peer is gone.
func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, net.ErrClosed)
}

// isTimeout reports whether err is a network timeout.
func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
