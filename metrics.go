// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package netrun

import "expvar"

// connMetrics record connection and server activity counters.
type connMetrics struct {
	accepted    expvar.Int // connections accepted by servers
	replaced    expvar.Int // registered connections displaced by a newer one
	evicted     expvar.Int // registered connections removed after a failure
	acceptErr   expvar.Int
	active      expvar.Int // gauge: registered connections
	msgSent     expvar.Int
	msgRecv     expvar.Int
	decodeErr   expvar.Int
	readErr     expvar.Int
	sendNoPeer  expvar.Int // server sends with no registered connection
	pumpsActive expvar.Int // gauge: running read pumps

	emap *expvar.Map
}

var rootMetrics = newConnMetrics()

func newConnMetrics() *connMetrics {
	m := &connMetrics{emap: new(expvar.Map)}
	m.emap.Set("conns_accepted", &m.accepted)
	m.emap.Set("conns_replaced", &m.replaced)
	m.emap.Set("conns_evicted", &m.evicted)
	m.emap.Set("accept_errors", &m.acceptErr)
	m.emap.Set("conns_active", &m.active)
	m.emap.Set("messages_sent", &m.msgSent)
	m.emap.Set("messages_received", &m.msgRecv)
	m.emap.Set("decode_failures", &m.decodeErr)
	m.emap.Set("read_errors", &m.readErr)
	m.emap.Set("send_no_peer", &m.sendNoPeer)
	m.emap.Set("pumps_active", &m.pumpsActive)
	return m
}

// Metrics returns the metrics map shared by all connections and servers.
// It is safe for the caller to add additional metrics to the map.
func Metrics() *expvar.Map { return rootMetrics.emap }
