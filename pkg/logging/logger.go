// Package logging configures the zerolog logger shared by telq components.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"

	// LevelDisabled turns logging off.
	LevelDisabled LogLevel = "disabled"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// Service, when set, is attached to every entry as "service".
	Service string
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// FromEnv builds a Config from LOG_LEVEL and LOG_PRETTY on top of the
// defaults.
func FromEnv(getenv func(string) string) Config {
	cfg := DefaultConfig()
	if level := getenv("LOG_LEVEL"); level != "" {
		cfg.Level = LogLevel(level)
	}
	switch strings.ToLower(getenv("LOG_PRETTY")) {
	case "1", "true", "yes":
		cfg.Pretty = true
	}
	return cfg
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()

	log.Logger = logger
	return logger
}

// ParseLevel converts a LogLevel to a zerolog.Level. Unknown values map
// to info.
func ParseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a logger for the given component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log levels used across telq:
//
// Debug: cache hit, miss and insert; registered operations; transport
// status of each request; plugin commands.
//
// Info: proxy startup and shutdown.
//
// Warn: exhausted retries; failed requests inside a batch.
//
// Error: proxy configuration and server failures.
//
// The request facade itself never logs above debug. Callers receive every
// failure as an error value.
//
// Common fields: component, operation, plugin, id (cache identity),
// url, status, error_class, attempt, backoff.
