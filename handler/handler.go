// Copyright (C) 2023 Michael J. Fromberger. All Rights Reserved.

// Package handler provides adapters to the netrun.Service type for functions
// with other signatures, and wrappers that add behaviour to a service.
package handler

import (
	"context"
	"time"

	"github.com/creachadair/netrun"
	"github.com/sirupsen/logrus"
)

// reqContextKey is a context key for the request value to a service.
type reqContextKey struct{}

// ContextRequest returns the original request passed to the service, and
// reports whether it was found. The context passed to a function adapted by
// this package will have this value.
func ContextRequest[In any](ctx context.Context) (In, bool) {
	v, ok := ctx.Value(reqContextKey{}).(In)
	return v, ok
}

// ParamResultError adapts a function f that accepts a request of type In and
// returns a result of type Out and an error, to a netrun.Service.
func ParamResultError[In, Out any](f func(context.Context, In) (Out, error)) netrun.Service[In, Out] {
	return netrun.ServiceFunc[In, Out](func(ctx context.Context, req In) (Out, error) {
		return f(context.WithValue(ctx, reqContextKey{}, req), req)
	})
}

// ParamResult adapts a function f that accepts a request of type In and
// returns a result of type Out without error, to a netrun.Service.
func ParamResult[In, Out any](f func(context.Context, In) Out) netrun.Service[In, Out] {
	return netrun.ServiceFunc[In, Out](func(ctx context.Context, req In) (Out, error) {
		return f(context.WithValue(ctx, reqContextKey{}, req), req), nil
	})
}

// Pure adapts a function f from In to Out that needs no context and cannot
// fail, to a netrun.Service.
func Pure[In, Out any](f func(In) Out) netrun.Service[In, Out] {
	return netrun.ServiceFunc[In, Out](func(_ context.Context, req In) (Out, error) {
		return f(req), nil
	})
}

// Timeout wraps svc so that the context for each request expires after d.
// The service must obey its context for the timeout to take effect.
func Timeout[In, Out any](svc netrun.Service[In, Out], d time.Duration) netrun.Service[In, Out] {
	return netrun.ServiceFunc[In, Out](func(ctx context.Context, req In) (Out, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return svc.Respond(ctx, req)
	})
}

// Logged wraps svc so that each request is logged to log at debug level, with
// its duration, and each failure is logged at warning level.
func Logged[In, Out any](svc netrun.Service[In, Out], log logrus.FieldLogger) netrun.Service[In, Out] {
	return netrun.ServiceFunc[In, Out](func(ctx context.Context, req In) (Out, error) {
		start := time.Now()
		rsp, err := svc.Respond(ctx, req)
		entry := log.WithField("elapsed", time.Since(start))
		if err != nil {
			entry.WithError(err).Warn("request failed")
		} else {
			entry.Debug("request complete")
		}
		return rsp, err
	})
}
