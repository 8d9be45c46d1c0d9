// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package netrun

import (
	"bufio"
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/creachadair/netrun/wire"
	"github.com/creachadair/taskgroup"
	"github.com/sirupsen/logrus"
)

// bufferSize is the size of the read buffer for each connection.
const bufferSize = 16 << 10

type result[T any] struct {
	value T
	err   error
}

// A Conn is a live connection to one remote peer, receiving messages of type
// In and sending messages of type Out.
//
// Each Conn runs a single read pump that reads frames from the stream,
// decodes them, and delivers the results one at a time to Receive. The pump
// does not read the next message until the previous one has been received.
// Sends are serialized by a lock, so that concurrent calls to Send never
// interleave on the wire.
//
// A Conn runs until it is closed. Call Close to release its resources.
type Conn[In, Out any] struct {
	conn  net.Conn
	codec wire.Codec
	log   logrus.FieldLogger

	out struct {
		// Must hold the lock to write to conn.
		sync.Mutex
	}

	recv   chan result[In] // closed when the pump exits
	done   chan struct{}   // closed when the pump exits
	gone   chan struct{}   // closed when the stream has ended
	gonce  sync.Once
	cancel context.CancelFunc
	tasks  *taskgroup.Group

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps c as a connection and starts its read pump. It does not
// block. The Conn takes ownership of c, which is closed when the Conn closes.
func NewConn[In, Out any](c net.Conn, opts *Options) *Conn[In, Out] {
	ctx, cancel := context.WithCancel(context.Background())
	cn := &Conn[In, Out]{
		conn:  c,
		codec: opts.codec(),
		log: opts.logger().WithFields(logrus.Fields{
			"local": c.LocalAddr().String(),
			"peer":  c.RemoteAddr().String(),
		}),
		recv:   make(chan result[In], 1),
		done:   make(chan struct{}),
		gone:   make(chan struct{}),
		cancel: cancel,
		tasks:  taskgroup.New(nil),
	}

	rootMetrics.pumpsActive.Add(1)
	cn.tasks.Go(func() error {
		defer rootMetrics.pumpsActive.Add(-1)
		defer close(cn.done)
		defer close(cn.recv)
		defer cn.markGone()
		cn.pump(ctx)
		return nil
	})
	return cn
}

// pump reads and decodes messages from the stream until ctx ends or the
// stream fails.
func (c *Conn[In, Out]) pump(ctx context.Context) {
	r := bufio.NewReaderSize(c.conn, bufferSize)
	maxFrame := c.codec.MaxFrameSize()
	for {
		data, err := wire.ReadFrame(r, maxFrame)
		if ctx.Err() != nil {
			return // closed locally
		}

		switch {
		case isClosed(err):
			c.log.Debug("connection closed by peer")
			c.markGone()
			c.deliver(ctx, result[In]{err: ErrClosed})
			return

		case err != nil:
			rootMetrics.readErr.Add(1)
			c.log.WithError(err).Error("failed to receive")

			// A timeout leaves the stream usable; anything else does not.
			terminal := !isTimeout(err)
			if terminal {
				c.markGone()
			}
			if !c.deliver(ctx, result[In]{err: &IOError{Op: "read", Err: err}}) || terminal {
				return
			}
			continue

		case len(data) == 0:
			continue // empty frame
		}

		var res result[In]
		if err := c.codec.Decode(data, &res.value); err != nil {
			rootMetrics.decodeErr.Add(1)
			c.log.WithError(err).Error("failed to decode message")
			res.err = err
		} else {
			rootMetrics.msgRecv.Add(1)
		}
		if !c.deliver(ctx, res) {
			return
		}
	}
}

// markGone records that the stream has ended, even if the pump is still
// waiting to deliver its final result.
func (c *Conn[In, Out]) markGone() { c.gonce.Do(func() { close(c.gone) }) }

// deliver blocks until res is handed to the delivery channel or ctx ends, and
// reports whether it was delivered.
func (c *Conn[In, Out]) deliver(ctx context.Context, res result[In]) bool {
	select {
	case c.recv <- res:
		return true
	case <-ctx.Done():
		return false
	}
}

// Send encodes v and writes it to the remote peer as a single message.  An
// encoding failure is reported as *EncodeError, a write failure as *IOError.
// It is safe to call Send concurrently from multiple goroutines.
func (c *Conn[In, Out]) Send(v Out) error {
	data, err := c.codec.Encode(v)
	if err != nil {
		return err
	}
	buf := wire.AppendFrame(make([]byte, 0, wire.HeaderLen+len(data)), data)

	c.out.Lock()
	defer c.out.Unlock()
	if _, err := c.conn.Write(buf); err != nil {
		return &IOError{Op: "write", Err: err}
	}
	rootMetrics.msgSent.Add(1)
	return nil
}

// Receive blocks until the next message from the remote peer is available or
// ctx ends.  If the message could not be read or decoded, Receive reports the
// error for that message (*IOError or *DecodeError). Once the stream has ended
// or c is closed, Receive reports ErrClosed. Messages not yet received when c
// is closed are discarded.
func (c *Conn[In, Out]) Receive(ctx context.Context) (In, error) {
	var zero In
	if c.closed.Load() {
		return zero, ErrClosed
	}
	select {
	case res, ok := <-c.recv:
		if !ok || c.closed.Load() {
			return zero, ErrClosed
		}
		return res.value, res.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// LocalAddr returns the local address of the connection.
func (c *Conn[In, Out]) LocalAddr() (net.Addr, error) {
	if c.closed.Load() {
		return nil, &IOError{Op: "addr", Err: net.ErrClosed}
	}
	return c.conn.LocalAddr(), nil
}

// PeerAddr returns the address of the remote peer.
func (c *Conn[In, Out]) PeerAddr() (net.Addr, error) {
	if c.closed.Load() {
		return nil, &IOError{Op: "addr", Err: net.ErrClosed}
	}
	return c.conn.RemoteAddr(), nil
}

// Done returns a channel that is closed when the read pump of c has exited,
// either because the stream ended or because c was closed.
func (c *Conn[In, Out]) Done() <-chan struct{} { return c.done }

// Close stops the read pump and closes the underlying connection. It blocks
// until the pump has exited. Close is safe to call more than once; only the
// first call has any effect.
func (c *Conn[In, Out]) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.cancel()
		c.closeErr = c.conn.Close()
		c.tasks.Wait()
		for range c.recv {
			// discard undelivered results
		}
	})
	return c.closeErr
}
