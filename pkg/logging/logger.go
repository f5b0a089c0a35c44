// Package logging configures the zerolog logger shared by the Etrieve
// client, the session manager and the proxy.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Environment variables read by FromEnv.
const (
	EnvLevel  = "LOG_LEVEL"
	EnvPretty = "LOG_PRETTY"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level written. Unknown values mean info.
	Level string

	// Pretty switches from JSON lines to console output.
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns JSON logging at info level to stderr.
func DefaultConfig() Config {
	return Config{
		Level:  zerolog.InfoLevel.String(),
		Output: os.Stderr,
	}
}

// FromEnv overlays LOG_LEVEL and LOG_PRETTY onto DefaultConfig. getenv is
// usually os.Getenv.
func FromEnv(getenv func(string) string) Config {
	cfg := DefaultConfig()
	if level := getenv(EnvLevel); level != "" {
		cfg.Level = level
	}
	if pretty, err := strconv.ParseBool(getenv(EnvPretty)); err == nil {
		cfg.Pretty = pretty
	}
	return cfg
}

// Setup installs the global logger and level and returns the logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel maps a level name to a zerolog level. "warning" is accepted as
// an alias; anything unrecognised or disabled falls back to info.
func ParseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel || parsed == zerolog.Disabled {
		return zerolog.InfoLevel
	}
	return parsed
}

// NewLogger returns the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: request flow
//   - Outgoing API calls (method, url)
//   - Session reuse and token exchange start
//   - Pagination progress (offset, fetched)
//   - Content cache hits
//
// Info: normal lifecycle events
//   - Session established (expires_in)
//   - Pagination finished (documents, fetches)
//   - Proxy startup and shutdown
//
// Warn: degraded but recoverable
//   - Token exchange failures (reason, status)
//   - Calls not sent because no session is available
//   - 401 and other non-200 API responses
//   - Unparsable JSON bodies replaced by empty values
//   - Cache errors (content fetched directly)
//   - Pagination stopped at loop_max
//
// Error: failures needing attention
//   - Network errors on API calls
//   - Proxy configuration or listener errors
//
// Context fields:
//   - component: etrieve-client, session, documents, pagination, proxy
//   - url, path, method, status
//   - reason: session acquisition failure reason
//   - offset, limit, fetched: pagination state
//
// Credentials, bearer tokens and the Auth-Token header are never logged.
