// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel `mapstructure:"level"`

	// Format is "json" or "console".
	Format string `mapstructure:"format"`

	// TimeFormat overrides the timestamp layout (default RFC3339).
	TimeFormat string `mapstructure:"time_format"`

	// Caller adds the file:line of each log call.
	Caller bool `mapstructure:"caller"`

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer `mapstructure:"-"`
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Format: "json",
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "console") {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: zerolog.TimeFieldFormat}
	}

	builder := zerolog.New(output).With().Timestamp()
	if cfg.Caller {
		builder = builder.Caller()
	}
	logger := builder.Logger()

	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: bookkeeping
//   - Cache hits, misses and conditional requests
//   - Per-page pagination progress
//   - Rate limiter waits and non-retryable failures
//
// Info: normal operation
//   - Completed price fetches (days, pages, points, duration)
//   - Scheduled refresh results
//   - Server startup/shutdown
//
// Warn: degraded but recoverable
//   - Retry attempts
//   - Rejected next links and pagination ceilings
//   - Invalid days query parameters replaced by the default
//   - Cache errors (fallback to direct request)
//
// Error: requires attention
//   - Fetches that failed after retries
//   - Configuration errors
//
// Context Fields:
//   - component: emitting package
//   - limiter: rate limiter name
//   - cycle: request cycle ID
//   - days, pages, points: fetch shape
//   - status, error_class: upstream failure classification
