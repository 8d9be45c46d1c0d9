// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

// Package scan finds hosts that accept TCP connections on a given port.
package scan

import (
	"context"
	"net"
	"net/netip"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTimeout is the default time limit for a single port check.
	DefaultTimeout = 200 * time.Millisecond

	// DefaultConcurrency is the default number of port checks run concurrently.
	DefaultConcurrency = 64
)

// Options control a scan. A nil *Options is ready for use and provides
// default values.
type Options struct {
	// The time limit for connecting to a single host.
	// If zero, DefaultTimeout is used.
	Timeout time.Duration

	// The maximum number of port checks in flight at once.
	// If zero, DefaultConcurrency is used.
	Concurrency int

	// If non-nil, check results are logged here at debug level.
	Logger logrus.FieldLogger
}

func (o *Options) timeout() time.Duration {
	if o == nil || o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

func (o *Options) concurrency() int {
	if o == nil || o.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return o.Concurrency
}

func (o *Options) logger() logrus.FieldLogger {
	if o == nil || o.Logger == nil {
		return logrus.StandardLogger()
	}
	return o.Logger
}

// LocalNetwork returns the loopback address followed by the host addresses
// of the 192.168.0.0/24 network.
func LocalNetwork() []netip.Addr {
	out := []netip.Addr{netip.AddrFrom4([4]byte{127, 0, 0, 1})}
	for i := 1; i < 255; i++ {
		out = append(out, netip.AddrFrom4([4]byte{192, 168, 0, byte(i)}))
	}
	return out
}

// Port checks each of hosts for a listener on the given TCP port, and returns
// the hosts that accepted a connection, in the order they appear in hosts.
// A host that refuses the connection or does not answer within the check
// timeout is omitted. Port reports an error only if ctx ends before the scan
// is complete.
func Port(ctx context.Context, port int, hosts []netip.Addr, opts *Options) ([]netip.Addr, error) {
	open := make([]bool, len(hosts))
	log := opts.logger().WithField("port", port)
	timeout := opts.timeout()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency())
	for i, host := range hosts {
		g.Go(func() error {
			open[i] = checkPort(gctx, host, port, timeout)
			log.WithFields(logrus.Fields{"host": host.String(), "open": open[i]}).Debug("checked")
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []netip.Addr
	for i, ok := range open {
		if ok {
			out = append(out, hosts[i])
		}
	}
	return out, nil
}

// checkPort reports whether a TCP connection to host:port succeeds within the
// timeout.
func checkPort(ctx context.Context, host netip.Addr, port int, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host.String(), strconv.Itoa(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
