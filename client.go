// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package netrun

import (
	"context"
	"fmt"
	"net"
)

// A Client is a connection dialed to a server. It receives messages of type
// In and sends messages of type Out. All the methods of [Conn] are available
// on a Client.
type Client[In, Out any] struct {
	*Conn[In, Out]

	id   string
	addr string
}

// Dial connects to the server at addr, which has the form "host:port". The
// ctx governs only the dial; once connected the client runs until closed.
// A failure to connect is reported as *DialError.
func Dial[In, Out any](ctx context.Context, addr string, opts *Options) (*Client[In, Out], error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &DialError{Addr: addr, Err: err}
	}
	id := newInstanceID()
	copts := &Options{
		Codec:  opts.codec(),
		Logger: opts.logger().WithField("client", id),
	}
	return &Client[In, Out]{
		Conn: NewConn[In, Out](conn, copts),
		id:   id,
		addr: addr,
	}, nil
}

// ID returns the instance identifier of c.
func (c *Client[In, Out]) ID() string { return c.id }

// Addr returns the address c was dialed to.
func (c *Client[In, Out]) Addr() string { return c.addr }

// Call sends req to the server and waits for the next message received.  Call
// does not match responses to requests, so the caller must not have other
// sends or receives in flight on c concurrently.
func (c *Client[In, Out]) Call(ctx context.Context, req Out) (In, error) {
	if err := c.Send(req); err != nil {
		var zero In
		return zero, err
	}
	return c.Receive(ctx)
}

func (c *Client[In, Out]) String() string {
	return fmt.Sprintf("Client[%s, %s]{id: %s, address: %s}", typeName[In](), typeName[Out](), c.id, c.addr)
}
