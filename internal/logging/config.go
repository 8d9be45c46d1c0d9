// Package logging configures the process-wide logrus logger from a profile
// and environment overrides.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Environment variables that override the profile defaults.
const (
	EnvLogLevel  = "NETRUN_LOG_LEVEL"  // a level name, e.g. "debug" or "off"
	EnvLogFormat = "NETRUN_LOG_FORMAT" // "text" or "json"
)

// A Profile selects the default logger settings for a kind of process.
type Profile int

const (
	// ProfileRuntime logs at info level with timestamps, for the CLI.
	ProfileRuntime Profile = iota

	// ProfileTest logs at debug level without timestamps, for test binaries.
	ProfileTest
)

// Config is the resolved logger configuration.
type Config struct {
	Level     logrus.Level
	JSON      bool // emit JSON records instead of text
	Timestamp bool
	Output    io.Writer
}

var configureOnce sync.Once

// ConfigureRuntime configures the standard logger with ProfileRuntime.
func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

// ConfigureTests configures the standard logger with ProfileTest. Call it
// from TestMain.
func ConfigureTests() {
	Configure(ProfileTest)
}

// Configure applies the settings for profile to the logrus standard logger.
// Only the first call in the process has any effect.
func Configure(profile Profile) {
	configureOnce.Do(func() {
		cfg := defaultConfig(profile)
		applyEnvOverrides(&cfg)
		Apply(logrus.StandardLogger(), cfg)
	})
}

// Apply configures log with the settings from cfg.
func Apply(log *logrus.Logger, cfg Config) {
	log.SetLevel(cfg.Level)
	if cfg.Output != nil {
		log.SetOutput(cfg.Output)
	}
	if cfg.JSON {
		log.SetFormatter(&logrus.JSONFormatter{DisableTimestamp: !cfg.Timestamp})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			DisableTimestamp: !cfg.Timestamp,
			FullTimestamp:    cfg.Timestamp,
		})
	}
}

// SetLevel sets the level of the standard logger from its name, and reports
// whether the name was recognized. An unrecognized name leaves the level
// unchanged.
func SetLevel(raw string) bool {
	lvl, ok := ParseLevel(raw)
	if ok {
		logrus.SetLevel(lvl)
	}
	return ok
}

func defaultConfig(profile Profile) Config {
	switch profile {
	case ProfileTest:
		return Config{Level: logrus.DebugLevel, Output: os.Stderr}
	default:
		return Config{Level: logrus.InfoLevel, Timestamp: true, Output: os.Stderr}
	}
}

func applyEnvOverrides(cfg *Config) {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseFormat(os.Getenv(EnvLogFormat)); ok {
		cfg.JSON = v
	}
}

// ParseLevel parses the name of a log level. It reports false for an empty or
// unrecognized name.
func ParseLevel(raw string) (logrus.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return logrus.InfoLevel, false
	case "trace":
		return logrus.TraceLevel, true
	case "debug":
		return logrus.DebugLevel, true
	case "info":
		return logrus.InfoLevel, true
	case "warn", "warning":
		return logrus.WarnLevel, true
	case "error":
		return logrus.ErrorLevel, true
	case "fatal":
		return logrus.FatalLevel, true
	case "disabled", "off", "none":
		return logrus.PanicLevel, true
	default:
		return logrus.InfoLevel, false
	}
}

// parseFormat reports whether raw names the JSON format.
func parseFormat(raw string) (isJSON, ok bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "json":
		return true, true
	case "text":
		return false, true
	default:
		return false, false
	}
}
