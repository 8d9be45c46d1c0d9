// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

// Package retry implements bounded retries of operations with a per-attempt
// time limit.
//
// A [Policy] specifies how many attempts to make and how long each attempt
// may run. Use [Run] to execute an operation under a policy:
//
//	cli, err := retry.Run(ctx, retry.Times(5), func(ctx context.Context) (*netrun.Client[int, int], error) {
//	   return netrun.Dial[int, int](ctx, addr, nil)
//	})
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/creachadair/taskgroup"
	"github.com/sirupsen/logrus"
)

// ErrExceeded is reported by Run when every attempt timed out.
var ErrExceeded = errors.New("retry exceeded")

const (
	// DefaultTimes is the number of attempts made by the policy from New.
	DefaultTimes = 3

	// DefaultTimeout is the default time limit for a single attempt.
	DefaultTimeout = 500 * time.Millisecond
)

// A Policy describes how an operation is retried. A Policy is an immutable
// value; its methods return modified copies.
type Policy struct {
	times   int
	timeout time.Duration
	log     logrus.FieldLogger
}

// New returns a policy that makes DefaultTimes attempts.
func New() Policy { return Times(DefaultTimes) }

// Times returns a policy that makes at most n attempts of DefaultTimeout each.
// It panics if n < 1.
func Times(n int) Policy {
	if n < 1 {
		panic(fmt.Sprintf("retry: invalid attempt count %d", n))
	}
	return Policy{times: n, timeout: DefaultTimeout}
}

// Timeout returns a copy of p with the per-attempt time limit set to d.
// It panics if d <= 0.
func (p Policy) Timeout(d time.Duration) Policy {
	if d <= 0 {
		panic(fmt.Sprintf("retry: invalid timeout %v", d))
	}
	p.timeout = d
	return p
}

// Logger returns a copy of p that logs failed attempts to log.
// If log == nil, the logrus standard logger is used.
func (p Policy) Logger(log logrus.FieldLogger) Policy { p.log = log; return p }

// Attempts reports the maximum number of attempts made under p.
func (p Policy) Attempts() int { return p.times }

// AttemptTimeout reports the time limit for each attempt under p.
func (p Policy) AttemptTimeout() time.Duration { return p.timeout }

func (p Policy) logger() logrus.FieldLogger {
	if p.log == nil {
		return logrus.StandardLogger()
	}
	return p.log
}

// Run calls op repeatedly until it succeeds or the attempts allowed by p are
// used up. Each attempt receives a fresh context that ends when the
// per-attempt time limit expires.
//
// If op succeeds, Run returns its value immediately. If the last attempt
// fails with an error, Run returns that error as-is. If the last attempt runs
// out of time, Run reports ErrExceeded. An attempt that does not return when
// its context ends is abandoned. If ctx ends, Run returns ctx.Err().
func Run[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	if p.times < 1 {
		p = New().Logger(p.log) // zero Policy
	}
	log := p.logger()

	var zero T
	for i := 1; ; i++ {
		r, timedOut := attempt(ctx, p.timeout, op)
		alog := log.WithField("attempt", i)
		switch {
		case ctx.Err() != nil:
			return zero, ctx.Err()
		case timedOut:
			alog.Warnf("attempt timed out after %v", p.timeout)
			if i >= p.times {
				return zero, ErrExceeded
			}
		case r.err != nil:
			if i >= p.times {
				return zero, r.err
			}
			alog.WithError(r.err).Warn("attempt failed; retrying")
		default:
			return r.value, nil
		}
	}
}

type result[T any] struct {
	value T
	err   error
}

// attempt runs a single call of op with a time limit of d. It reports
// whether the attempt ran out of time.
func attempt[T any](ctx context.Context, d time.Duration, op func(context.Context) (T, error)) (result[T], bool) {
	actx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	ch := make(chan result[T], 1)
	taskgroup.Go(func() error {
		v, err := op(actx)
		ch <- result[T]{value: v, err: err}
		return nil
	})

	select {
	case r := <-ch:
		// An operation that observed its deadline and returned an error has
		// timed out, whatever error it reports.
		if r.err != nil && errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return result[T]{}, true
		}
		return r, false
	case <-actx.Done():
		return result[T]{}, ctx.Err() == nil
	}
}
