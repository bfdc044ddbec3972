// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ServiceName is attached to every log line.
const ServiceName = "tiercache"

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
	// Level is the minimum level written
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console format
	Pretty bool

	// Output receives log lines; nil means os.Stderr
	Output io.Writer
}

// DefaultConfig returns JSON logging at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// ParseLevel maps a configuration string such as "debug" or " WARNING " to a
// LogLevel. Unknown values map to LevelInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// zerologLevel converts l, defaulting to info for unknown values.
func (l LogLevel) zerologLevel() zerolog.Level {
	switch ParseLevel(string(l)) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Setup installs the global zerolog logger used by NewLogger and returns it.
// Every line carries a timestamp and the service name.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(cfg.Level.zerologLevel())

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	}

	log.Logger = zerolog.New(out).With().
		Timestamp().
		Str("service", ServiceName).
		Logger()
	return log.Logger
}

// Nop returns a disabled logger for tests and library callers.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Per-request tier hits and misses (fingerprint)
//   - Promotions and evictions (size, current bytes)
//   - Retry backoff and warmup worker progress
//
// Info: Normal operation events
//   - Tier-1 loads and reloads
//   - Warmup start and completion
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Tier-1 load stopped at its byte budget
//   - Promotion skipped (too large, encode failure)
//   - Corrupt stored entry treated as a miss
//   - Retries exhausted
//
// Error: Error conditions requiring attention
//   - Synthesis failures returned to clients
//   - Redis unavailable at boot
//   - Configuration errors
//
// Context Fields:
//   - component: Emitting component (manager, loader, server)
//   - entity: Entity key of the request
//   - level: Requested detail level (basic, detailed)
//   - fingerprint: Cache fingerprint
//   - source: Where the artifact came from (tier1, tier3, synthesized)
//   - size_bytes: Encoded artifact size
//   - current_bytes / max_bytes: Tier byte accounting
//   - count / threshold: Popularity counter and promotion threshold
