// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

// Package netrun implements typed message exchange between a single server
// and its most recently connected client over TCP.
//
// Messages are Go values. Each is encoded in an interchange format (JSON by
// default), compressed, and carried in a single length-prefixed frame on the
// stream. See package [github.com/creachadair/netrun/wire] for details.
//
// # Connections
//
// The core type defined by this package is the [Conn]. A Conn wraps a stream
// connected to one remote peer, receiving values of type In and sending
// values of type Out. A Conn runs a single read pump that decodes incoming
// messages and delivers them in order, one at a time, to [Conn.Receive]:
//
//	v, err := conn.Receive(ctx)
//	if err != nil {
//	   log.Fatalf("Receive failed: %v", err)
//	}
//
// Any number of goroutines may call [Conn.Send] concurrently; each message is
// written to the stream as a unit. Call [Conn.Close] to stop the pump and
// close the stream.
//
// # Clients
//
// To connect to a server, use [Dial]. A [Client] has all the methods of a
// Conn. Note that the type parameters of a client are the reverse of those of
// its server:
//
//	cli, err := netrun.Dial[float64, int](ctx, "localhost:5000", nil)
//	if err != nil {
//	   log.Fatalf("Dial: %v", err)
//	}
//	defer cli.Close()
//
//	cli.Send(55)
//	v, err := cli.Receive(ctx) // v is a float64
//
// # Servers
//
// To accept connections, use [Listen]. A [Server] keeps at most one
// registered connection: a newly-connected client replaces the previous one.
// [Server.Receive] waits for a connection if necessary, and silently evicts a
// connection that fails. [Server.Send] discards the message if no client is
// connected:
//
//	srv, err := netrun.Listen[int, float64](5000, nil)
//	if err != nil {
//	   log.Fatalf("Listen: %v", err)
//	}
//	defer srv.Close()
//
//	n, err := srv.Receive(ctx)
//	...
//	srv.Send(0.0042)
//
// To answer each request with a response, implement a [Service] and pass it
// to [Server.Serve]:
//
//	srv.Serve(ctx, netrun.ServiceFunc[int, bool](func(_ context.Context, n int) (bool, error) {
//	   return n%2 == 0, nil
//	}))
//
// # Metrics
//
// Connections and servers maintain a collection of metrics while running.
// Use [Metrics] to obtain an [expvar.Map] containing them. Metrics are shared
// globally among all connections and servers.
//
// The metrics currently exported include:
//
//   - conns_accepted: counter of connections accepted by servers
//   - conns_replaced: counter of registered connections replaced by a newer one
//   - conns_evicted: counter of registered connections evicted after a failure
//   - conns_active: gauge of registered connections
//   - accept_errors: counter of failed accepts
//   - messages_sent: counter of messages sent
//   - messages_received: counter of messages received and decoded
//   - decode_failures: counter of messages that could not be decoded
//   - read_errors: counter of stream read failures
//   - send_no_peer: counter of server sends with no connected client
//   - pumps_active: gauge of running read pumps
//
// It is safe for the caller to modify the metrics map to add, update, and
// remove entries.
package netrun
