// Copyright (C) 2023 Michael J. Fromberger. All Rights Reserved.

package handler_test

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/creachadair/netrun"
	"github.com/creachadair/netrun/handler"
	"github.com/creachadair/taskgroup"
	"github.com/fortytw2/leaktest"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestAdapters(t *testing.T) {
	ctx := context.Background()

	check := func(t *testing.T, want, etext string, svc netrun.Service[string, string]) {
		t.Helper()
		got, err := svc.Respond(ctx, "input")
		if err != nil {
			if got := err.Error(); got != etext {
				t.Fatalf("Respond: got error %v, want %q", err, etext)
			}
		} else if etext != "" {
			t.Fatalf("Respond: got %q, want error %q", got, etext)
		} else if got != want {
			t.Errorf("Respond: got %q, want %q", got, want)
		}
	}
	checkReq := func(t *testing.T, ctx context.Context) {
		t.Helper()
		if req, ok := handler.ContextRequest[string](ctx); !ok || req != "input" {
			t.Errorf("ContextRequest: got (%q, %v), want (input, true)", req, ok)
		}
	}

	t.Run("PRE", func(t *testing.T) {
		check(t, "input-ok", "", handler.ParamResultError(
			func(ctx context.Context, s string) (string, error) {
				checkReq(t, ctx)
				return s + "-ok", nil
			},
		))
		check(t, "", "bad input", handler.ParamResultError(
			func(ctx context.Context, s string) (string, error) {
				checkReq(t, ctx)
				return "", errors.New("bad " + s)
			},
		))
	})
	t.Run("PR", func(t *testing.T) {
		check(t, "INPUT", "", handler.ParamResult(
			func(ctx context.Context, s string) string {
				checkReq(t, ctx)
				return strings.ToUpper(s)
			},
		))
	})
	t.Run("Pure", func(t *testing.T) {
		check(t, "tupni", "", handler.Pure(func(s string) string {
			r := []byte(s)
			for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
				r[i], r[j] = r[j], r[i]
			}
			return string(r)
		}))
	})
	t.Run("Timeout", func(t *testing.T) {
		check(t, "", "context deadline exceeded", handler.Timeout(handler.ParamResultError(
			func(ctx context.Context, s string) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			},
		), 10*time.Millisecond))
	})
}

func TestLogged(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	svc := handler.Logged(handler.ParamResultError(func(_ context.Context, n int) (int, error) {
		if n < 0 {
			return 0, errors.New("negative")
		}
		return n * n, nil
	}), log)

	ctx := context.Background()
	if got, err := svc.Respond(ctx, 7); err != nil || got != 49 {
		t.Errorf("Respond(7): got (%v, %v), want (49, nil)", got, err)
	}
	if _, err := svc.Respond(ctx, -1); err == nil {
		t.Error("Respond(-1): got nil error, want failure")
	}

	entries := hook.AllEntries()
	if len(entries) != 2 {
		t.Fatalf("Got %d log entries, want 2", len(entries))
	}
	if e := entries[0]; e.Level != logrus.DebugLevel {
		t.Errorf("Success entry: got level %v, want debug", e.Level)
	}
	if e := entries[1]; e.Level != logrus.WarnLevel || e.Data[logrus.ErrorKey] == nil {
		t.Errorf("Failure entry: got level %v, data %v", e.Level, e.Data)
	}
}

func TestServe(t *testing.T) {
	defer leaktest.Check(t)()

	srv, err := netrun.Listen[string, int](0, nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()
	serve := taskgroup.Go(func() error {
		return srv.Serve(context.Background(), handler.Pure(func(s string) int { return len(s) }))
	})

	cli, err := netrun.Dial[int, string](t.Context(), net.JoinHostPort("127.0.0.1", strconv.Itoa(srv.Port())), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer cli.Close()

	for _, s := range []string{"", "apple", "pear"} {
		got, err := cli.Call(t.Context(), s)
		if err != nil {
			t.Fatalf("Call %q: %v", s, err)
		}
		if got != len(s) {
			t.Errorf("Call %q: got %d, want %d", s, got, len(s))
		}
	}

	srv.Close()
	if err := serve.Wait(); err != nil {
		t.Errorf("Serve: %v", err)
	}
}
