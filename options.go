// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package netrun

import (
	"github.com/creachadair/netrun/wire"
	"github.com/sirupsen/logrus"
)

// Options control the behaviour of connections, clients, and servers.  A nil
// *Options is ready for use and provides default values.
type Options struct {
	// The codec used to encode and decode messages. The zero value uses JSON
	// with the default message size limit.
	Codec wire.Codec

	// If non-nil, events are logged here. By default, the logrus standard
	// logger is used.
	Logger logrus.FieldLogger
}

func (o *Options) codec() wire.Codec {
	if o == nil {
		return wire.Codec{}
	}
	return o.Codec
}

func (o *Options) logger() logrus.FieldLogger {
	if o == nil || o.Logger == nil {
		return logrus.StandardLogger()
	}
	return o.Logger
}
