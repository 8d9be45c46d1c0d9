// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package netrun

import (
	"context"
	"fmt"
)

// A Service computes a response of type Out for each request of type In.
type Service[In, Out any] interface {
	Respond(ctx context.Context, req In) (Out, error)
}

// ServiceFunc adapts a function to a [Service].
type ServiceFunc[In, Out any] func(context.Context, In) (Out, error)

// Respond implements the [Service] interface.
func (f ServiceFunc[In, Out]) Respond(ctx context.Context, req In) (Out, error) { return f(ctx, req) }

// respond calls svc, converting a panic into an error.
func respond[In, Out any](ctx context.Context, svc Service[In, Out], req In) (_ Out, err error) {
	defer func() {
		if x := recover(); x != nil {
			err = fmt.Errorf("service panicked (recovered): %v", x)
		}
	}()
	return svc.Respond(ctx, req)
}
