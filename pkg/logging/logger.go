// Package logging configures the process-wide zerolog logger of the catalog
// feed. Packages derive their own loggers from it with a component field
// (catalog-client, list-cache, listing, metrics); browsing-session scoped
// code adds the session id so cache activity of one shopper can be followed
// across list sessions.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultService is the service field attached to every log line.
const DefaultService = "catalog-feed"

// LogLevel is the minimum severity written, as read from LOG_LEVEL.
type LogLevel string

const (
	// LevelDebug includes per-page fetch, merge and cache hit/miss lines.
	LevelDebug LogLevel = "debug"

	// LevelInfo includes breaker recoveries and CLI lifecycle.
	LevelInfo LogLevel = "info"

	// LevelWarn includes stale discards and cache failures.
	LevelWarn LogLevel = "warn"

	// LevelError only reports failed fetches and an opening breaker.
	LevelError LogLevel = "error"
)

// Config selects level, format and destination of the global logger.
type Config struct {
	// Level filters lines below it; unknown values mean info
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console format, for a
	// terminal running the CLI
	Pretty bool

	// Output receives the lines; nil means stderr so stdout stays free for
	// CLI listing output
	Output io.Writer

	// Service names the process in every line (default: DefaultService).
	Service string
}

// DefaultConfig logs JSON at info level to stderr.
func DefaultConfig() Config {
	return Config{
		Level:   LevelInfo,
		Pretty:  false,
		Output:  os.Stderr,
		Service: DefaultService,
	}
}

// Setup installs the global logger every NewLogger call derives from and
// sets the global level. Call it once at startup, before sessions open.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	service := cfg.Service
	if service == "" {
		service = DefaultService
	}

	logger := zerolog.New(output).With().Timestamp().Str("service", service).Logger()
	log.Logger = logger

	return logger
}

// parseLevel maps a LOG_LEVEL value, case-insensitively, to zerolog.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
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

// NewLogger returns a logger tagged with the emitting component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// NewSessionLogger creates a component logger tagged with a browsing
// session id.
func NewSessionLogger(component, sessionID string) zerolog.Logger {
	return log.With().Str("component", component).Str("session_id", sessionID).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss, key, backend)
//   - Fetch flow (page requested, page merged, dropped in-flight fetches)
//   - Debounced input commits
//
// Info: Normal operation events
//   - Circuit breaker recovery
//   - CLI startup/shutdown, session cache cleared
//
// Warn: Warning conditions that don't prevent operation
//   - Stale responses discarded after a query change
//   - Cache read/write failures
//   - Catalog 4xx responses and malformed bodies
//
// Error: Error conditions requiring attention
//   - Failed page fetches (network, 5xx)
//   - Circuit breaker opened
//   - Configuration errors
//
// Context Fields:
//   - component: emitting package (catalog-client, list-cache, listing, ...)
//   - session_id: browsing session the cache is scoped to
//   - view: listing view (category, search, collection, feed)
//   - key: list cache key
//   - resource: catalog list resource template
//   - page: requested or merged page number
//   - status: HTTP status code
//   - error_class: client, server, transport, circuit_open, body
