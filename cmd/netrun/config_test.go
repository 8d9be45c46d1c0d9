package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/creachadair/netrun/wire"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "netrun.toml")
	if err := os.WriteFile(path, []byte(text), 0600); err != nil {
		t.Fatalf("Write config: %v", err)
	}
	return path
}

var cmpFormat = cmp.Comparer(func(a, b wire.Format) bool { return a == b })

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		got, err := loadConfig("")
		if err != nil {
			t.Fatalf("loadConfig: unexpected error: %v", err)
		}
		if diff := cmp.Diff(defaultConfig(), got, cmpFormat); diff != "" {
			t.Errorf("Config (-want, +got):\n%s", diff)
		}
		if got, want := got.dialAddr(), "127.0.0.1:55400"; got != want {
			t.Errorf("dialAddr: got %q, want %q", got, want)
		}
	})

	t.Run("Overlay", func(t *testing.T) {
		path := writeConfig(t, `
port = 6000
format = "cbor"
retry_times = 5
retry_timeout = "2s"
log_level = "debug"
`)
		got, err := loadConfig(path)
		if err != nil {
			t.Fatalf("loadConfig: unexpected error: %v", err)
		}
		want := defaultConfig()
		want.Port = 6000
		want.Format = wire.CBOR
		want.RetryTimes = 5
		want.RetryTimeout = 2 * time.Second
		want.LogLevel = "debug"
		if diff := cmp.Diff(want, got, cmpFormat); diff != "" {
			t.Errorf("Config (-want, +got):\n%s", diff)
		}
		if p := got.retryPolicy(); p.Attempts() != 5 || p.AttemptTimeout() != 2*time.Second {
			t.Errorf("retryPolicy: got %d attempts of %v", p.Attempts(), p.AttemptTimeout())
		}
	})

	t.Run("Errors", func(t *testing.T) {
		tests := []struct {
			text, want string
		}{
			{`format = "yaml"`, "unknown format"},
			{`retry_timeout = "soon"`, "parse retry_timeout"},
			{`retry_times = 0`, "invalid retry count"},
			{`port = 70000`, "invalid port"},
			{`log_level = "loud"`, "invalid log level"},
			{`colour = "blue"`, "unknown keys: colour"},
			{`port = `, "load config"},
		}
		for _, tc := range tests {
			_, err := loadConfig(writeConfig(t, tc.text))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("loadConfig(%q): got %v, want error containing %q", tc.text, err, tc.want)
			}
		}
	})

	t.Run("Missing", func(t *testing.T) {
		if _, err := loadConfig(filepath.Join(t.TempDir(), "nonesuch.toml")); err == nil {
			t.Error("loadConfig: got nil error for a missing file")
		}
	})
}

func TestOverlayFlags(t *testing.T) {
	cfg := defaultConfig()
	cfg.Address = "example.com:1234"
	if err := cfg.overlay(&globalFlags{Port: "7000", Format: "CBOR", MaxMessageSize: 1024}); err != nil {
		t.Fatalf("overlay: unexpected error: %v", err)
	}
	want := defaultConfig()
	want.Address = "example.com:1234"
	want.Port = 7000
	want.Format = wire.CBOR
	want.MaxMessageSize = 1024
	if diff := cmp.Diff(want, cfg, cmpFormat); diff != "" {
		t.Errorf("Config (-want, +got):\n%s", diff)
	}
	if got := cfg.dialAddr(); got != "example.com:1234" {
		t.Errorf("dialAddr: got %q, want example.com:1234", got)
	}

	if err := cfg.overlay(&globalFlags{Format: "xml"}); err == nil {
		t.Error("overlay: got nil error for an invalid format")
	}

	// An explicit zero port selects a free port; an unset flag keeps the
	// configured port.
	cfg = defaultConfig()
	if err := cfg.overlay(&globalFlags{}); err != nil || cfg.Port != defaultConfig().Port {
		t.Errorf("overlay unset port: got (%d, %v), want (%d, nil)", cfg.Port, err, defaultConfig().Port)
	}
	if err := cfg.overlay(&globalFlags{Port: "0"}); err != nil || cfg.Port != 0 {
		t.Errorf("overlay port 0: got (%d, %v), want (0, nil)", cfg.Port, err)
	}
	for _, bad := range []string{"http", "-1", "70000"} {
		if err := cfg.overlay(&globalFlags{Port: bad}); err == nil {
			t.Errorf("overlay port %q: got nil error, want failure", bad)
		}
	}
}

func TestUnframe(t *testing.T) {
	cfg = defaultConfig()
	codec := cfg.codec()

	var buf []byte
	for _, v := range []any{55, "hello", map[string]any{"ok": true}} {
		enc, err := codec.Encode(v)
		if err != nil {
			t.Fatalf("Encode %v: %v", v, err)
		}
		buf = wire.AppendFrame(buf, enc)
	}
	buf = wire.AppendFrame(buf, nil)

	var out bytes.Buffer
	if err := runUnframe(bytes.NewReader(buf), &out); err != nil {
		t.Fatalf("runUnframe: unexpected error: %v", err)
	}
	got := strings.Split(strings.TrimSpace(out.String()), "\n")
	want := []string{`55`, `"hello"`, `{"ok":true}`}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Output (-want, +got):\n%s", diff)
	}
}
