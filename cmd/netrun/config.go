package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/creachadair/netrun"
	"github.com/creachadair/netrun/internal/logging"
	"github.com/creachadair/netrun/retry"
	"github.com/creachadair/netrun/wire"
	"github.com/sirupsen/logrus"
)

const defaultPort = 55400

// config is the resolved configuration for a command.
type config struct {
	Address        string // dial address; empty means localhost at Port
	Port           int
	Format         wire.Format
	MaxMessageSize int
	RetryTimes     int
	RetryTimeout   time.Duration
	LogLevel       string
}

func defaultConfig() config {
	return config{
		Port:           defaultPort,
		Format:         wire.JSON,
		MaxMessageSize: wire.DefaultMaxSize,
		RetryTimes:     retry.DefaultTimes,
		RetryTimeout:   retry.DefaultTimeout,
	}
}

type fileConfig struct {
	Address        string `toml:"address"`
	Port           int    `toml:"port"`
	Format         string `toml:"format"`
	MaxMessageSize int    `toml:"max_message_size"`
	RetryTimes     int    `toml:"retry_times"`
	RetryTimeout   string `toml:"retry_timeout"`
	LogLevel       string `toml:"log_level"`
}

// loadConfig returns the default configuration, overlaid with the settings
// from the TOML file at path if path != "".
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config{}, fmt.Errorf("load config: %w", err)
	}
	if keys := meta.Undecoded(); len(keys) != 0 {
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = k.String()
		}
		return config{}, fmt.Errorf("load config: unknown keys: %s", strings.Join(names, ", "))
	}

	if meta.IsDefined("address") {
		cfg.Address = strings.TrimSpace(raw.Address)
	}
	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("format") {
		f, err := wire.FormatByName(raw.Format)
		if err != nil {
			return config{}, fmt.Errorf("parse format: %w", err)
		}
		cfg.Format = f
	}
	if meta.IsDefined("max_message_size") {
		cfg.MaxMessageSize = raw.MaxMessageSize
	}
	if meta.IsDefined("retry_times") {
		cfg.RetryTimes = raw.RetryTimes
	}
	if meta.IsDefined("retry_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.RetryTimeout))
		if err != nil {
			return config{}, fmt.Errorf("parse retry_timeout: %w", err)
		}
		cfg.RetryTimeout = d
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	return cfg, cfg.check()
}

// overlay updates c with the flag settings that differ from their zero
// values.
func (c *config) overlay(f *globalFlags) error {
	if f.Address != "" {
		c.Address = f.Address
	}
	if f.Port != "" {
		port, err := strconv.Atoi(f.Port)
		if err != nil {
			return fmt.Errorf("invalid port %q", f.Port)
		}
		c.Port = port
	}
	if f.Format != "" {
		fm, err := wire.FormatByName(f.Format)
		if err != nil {
			return err
		}
		c.Format = fm
	}
	if f.MaxMessageSize != 0 {
		c.MaxMessageSize = f.MaxMessageSize
	}
	if f.RetryTimes != 0 {
		c.RetryTimes = f.RetryTimes
	}
	if f.RetryTimeout != 0 {
		c.RetryTimeout = f.RetryTimeout
	}
	if f.LogLevel != "" {
		c.LogLevel = f.LogLevel
	}
	return c.check()
}

func (c config) check() error {
	switch {
	case c.Port < 0 || c.Port > 65535:
		return fmt.Errorf("invalid port %d", c.Port)
	case c.RetryTimes < 1:
		return fmt.Errorf("invalid retry count %d", c.RetryTimes)
	case c.RetryTimeout <= 0:
		return fmt.Errorf("invalid retry timeout %v", c.RetryTimeout)
	case c.MaxMessageSize < 0:
		return fmt.Errorf("invalid message size limit %d", c.MaxMessageSize)
	}
	if c.LogLevel != "" {
		if _, ok := logging.ParseLevel(c.LogLevel); !ok {
			return fmt.Errorf("invalid log level %q", c.LogLevel)
		}
	}
	return nil
}

// dialAddr returns the address for clients to dial.
func (c config) dialAddr() string {
	if c.Address != "" {
		return c.Address
	}
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(c.Port))
}

func (c config) codec() wire.Codec {
	return wire.Codec{Format: c.Format, MaxSize: c.MaxMessageSize}
}

func (c config) options() *netrun.Options {
	return &netrun.Options{Codec: c.codec(), Logger: logrus.StandardLogger()}
}

func (c config) retryPolicy() retry.Policy {
	return retry.Times(c.RetryTimes).Timeout(c.RetryTimeout).Logger(logrus.StandardLogger())
}
