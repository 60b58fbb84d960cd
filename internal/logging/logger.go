package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// redacted replaces the value of any attribute whose key names a secret
const redacted = "[redacted]"

// secretKeys are attribute keys whose values never reach the output
var secretKeys = map[string]bool{
	"token":            true,
	"access_token":     true,
	"client_assertion": true,
	"password":         true,
	"api_key":          true,
}

// LoggerConfig holds configuration for creating loggers
type LoggerConfig struct {
	Format  string     // "json" or "text"
	Level   slog.Level // Log level
	Output  io.Writer  // defaults to stdout
	Service string     // added to every record as "service" when set
}

// NewLogger creates the process logger. Timestamps are keyed "timestamp"
// and secret-bearing attributes are redacted.
func NewLogger(config LoggerConfig) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: config.Level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch {
			case len(groups) == 0 && a.Key == slog.TimeKey:
				a.Key = "timestamp"
			case secretKeys[strings.ToLower(a.Key)]:
				a.Value = slog.StringValue(redacted)
			}
			return a
		},
	}

	out := config.Output
	if out == nil {
		out = os.Stdout
	}

	var handler slog.Handler
	if config.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(handler)
	if config.Service != "" {
		logger = logger.With("service", config.Service)
	}
	return logger
}

// ParseLevel converts a log level name, in any case, to slog.Level.
// Unknown names fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
