// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package netrun

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/creachadair/taskgroup"
	"github.com/sirupsen/logrus"
)

// Bounds on the delay between attempts after a failed accept.
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = 1 * time.Second
)

// A Server listens for TCP connections and exchanges messages with the most
// recently connected peer. It receives messages of type In and sends messages
// of type Out.
//
// A server keeps at most one registered connection. When a new peer connects,
// it replaces (and closes) the previous one. A connection that fails while
// receiving is evicted, and the server waits for the next peer.
type Server[In, Out any] struct {
	lst   net.Listener
	port  int
	id    string
	opts  *Options
	log   logrus.FieldLogger
	tasks *taskgroup.Group

	stop     context.CancelFunc
	done     chan struct{} // closed when the server is closed
	stopOnce sync.Once

	μ    sync.RWMutex
	conn *Conn[In, Out] // the registered connection, or nil
	wake chan struct{}  // closed and replaced when a connection is registered
}

// Listen binds a listener on all interfaces at the given port and starts
// accepting connections. If port == 0, a free port is chosen; use the Port
// method to find it. A failure to bind is reported as *BindError.
func Listen[In, Out any](port int, opts *Options) (*Server[In, Out], error) {
	addr := net.JoinHostPort("0.0.0.0", strconv.Itoa(port))
	lst, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &BindError{Addr: addr, Err: err}
	}
	id := newInstanceID()
	log := opts.logger().WithField("server", id)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server[In, Out]{
		lst:  lst,
		port: lst.Addr().(*net.TCPAddr).Port,
		id:   id,
		opts: &Options{Codec: opts.codec(), Logger: log},
		log:  log,
		tasks: taskgroup.New(func(err error) {
			log.WithError(err).Error("accept loop failed")
		}),
		stop: cancel,
		done: make(chan struct{}),
		wake: make(chan struct{}),
	}
	s.tasks.Go(func() error { return s.accept(ctx) })
	log.WithField("addr", lst.Addr().String()).Debug("listening")
	return s, nil
}

// accept runs the accept loop until ctx ends or the listener is closed.
func (s *Server[In, Out]) accept(ctx context.Context) error {
	var delay time.Duration
	for {
		conn, err := s.lst.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.log.Debug("stopped accepting connections")
				return nil
			}
			rootMetrics.acceptErr.Add(1)
			delay = min(max(2*delay, minAcceptDelay), maxAcceptDelay)
			s.log.WithError(err).Errorf("failed to accept connection; retrying in %v", delay)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}
		delay = 0
		rootMetrics.accepted.Add(1)
		s.register(NewConn[In, Out](conn, s.opts))
	}
}

// register makes c the current connection, closing any previous one, and
// wakes any receivers waiting for a connection.
func (s *Server[In, Out]) register(c *Conn[In, Out]) {
	s.μ.Lock()
	prev := s.conn
	s.conn = c
	close(s.wake)
	s.wake = make(chan struct{})
	s.μ.Unlock()

	log := s.log.WithField("peer", c.conn.RemoteAddr().String())
	if prev != nil {
		rootMetrics.replaced.Add(1)
		log.Info("new connection replaces the active one")
		prev.Close()
	} else {
		rootMetrics.active.Add(1)
		log.Info("new connection")
	}
}

// current returns the registered connection (or nil) and a channel that is
// closed when the next connection is registered.
func (s *Server[In, Out]) current() (*Conn[In, Out], <-chan struct{}) {
	s.μ.RLock()
	defer s.μ.RUnlock()
	return s.conn, s.wake
}

// evict closes c and removes it from the registry if it is still current.
// A connection registered after c is never removed.
func (s *Server[In, Out]) evict(c *Conn[In, Out], cause error) {
	s.μ.Lock()
	ok := s.conn == c
	if ok {
		s.conn = nil
	}
	s.μ.Unlock()

	if ok {
		rootMetrics.evicted.Add(1)
		rootMetrics.active.Add(-1)
		s.log.WithError(cause).WithField("peer", c.conn.RemoteAddr().String()).Info("evicting connection")
	}
	c.Close()
}

// Send sends v to the registered connection. If no peer is connected, Send
// logs a warning and discards v without error. If the write fails, the error
// is returned and the connection is left in place until the next Receive
// observes the failure.
func (s *Server[In, Out]) Send(v Out) error {
	c, _ := s.current()
	if c == nil {
		rootMetrics.sendNoPeer.Add(1)
		s.log.Warn("no active connection; message discarded")
		return nil
	}
	if err := c.Send(v); err != nil {
		if isBrokenPipe(err) {
			s.log.WithError(err).Warn("broken pipe: the peer is gone")
		} else {
			s.log.WithError(err).Error("failed to send")
		}
		return err
	}
	return nil
}

// Receive blocks until a message arrives from a connected peer, and returns
// it. If no peer is connected, Receive waits for one. Errors from the current
// connection are not reported to the caller: the failed connection is evicted
// and Receive waits for the next one.
//
// Receive reports ctx.Err() if ctx ends first, and ErrServerClosed once s has
// been closed.
func (s *Server[In, Out]) Receive(ctx context.Context) (In, error) {
	var zero In
	for {
		c, wake := s.current()
		if c == nil {
			select {
			case <-wake:
				continue
			case <-s.done:
				return zero, ErrServerClosed
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}

		v, err := c.Receive(ctx)
		if err == nil {
			return v, nil
		} else if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		s.evict(c, err)
	}
}

// Connections returns the peer addresses of the live connections of s. There
// is at most one.
func (s *Server[In, Out]) Connections() []net.Addr {
	c, _ := s.current()
	if c == nil {
		return nil
	}
	select {
	case <-c.gone:
		return nil // the stream has ended, eviction pending
	default:
	}
	addr, err := c.PeerAddr()
	if err != nil {
		return nil
	}
	return []net.Addr{addr}
}

// Serve receives requests, calls svc to compute responses, and sends them to
// the peer, until s is closed or ctx ends. An error or panic in svc is logged
// and the request is dropped.
//
// Serve returns nil when s is closed, or ctx.Err() when ctx ends.
func (s *Server[In, Out]) Serve(ctx context.Context, svc Service[In, Out]) error {
	for {
		req, err := s.Receive(ctx)
		if errors.Is(err, ErrServerClosed) {
			return nil
		} else if err != nil {
			return err
		}
		rsp, err := respond(ctx, svc, req)
		if err != nil {
			s.log.WithError(err).Error("service failed to respond")
			continue
		}
		s.Send(rsp) // failures are logged by Send
	}
}

// Close stops accepting connections, closes the registered connection, and
// wakes any blocked receivers. Close is safe to call more than once.
func (s *Server[In, Out]) Close() error {
	var err error
	s.stopOnce.Do(func() {
		s.stop()
		err = s.lst.Close()
		s.tasks.Wait()

		s.μ.Lock()
		c := s.conn
		s.conn = nil
		s.μ.Unlock()
		if c != nil {
			rootMetrics.active.Add(-1)
			c.Close()
		}
		close(s.done)
		s.log.Debug("server closed")
	})
	return err
}

// Addr returns the address of the listener.
func (s *Server[In, Out]) Addr() net.Addr { return s.lst.Addr() }

// Port returns the port the server is listening on.
func (s *Server[In, Out]) Port() int { return s.port }

// ID returns the instance identifier of s.
func (s *Server[In, Out]) ID() string { return s.id }

// Metrics returns the metrics map shared by all servers and connections.
func (s *Server[In, Out]) Metrics() *expvar.Map { return Metrics() }

func (s *Server[In, Out]) String() string {
	return fmt.Sprintf("Server[%s, %s]{port: %d}", typeName[In](), typeName[Out](), s.port)
}
