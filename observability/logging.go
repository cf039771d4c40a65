// Package observability provides the structured logger and Prometheus
// metrics shared by the reasoning loop, report generation and the CLI.
package observability

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a level name (debug, info, warn, error) to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return level, nil
}

// NewLogger creates a configured application logger writing to stderr.
// Format is "text" or "json"; anything else falls back to text.
func NewLogger(level slog.Level, format string) *slog.Logger {
	return newLogger(os.Stderr, level, format)
}

func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Standardize 'error' key to 'err'
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NopLogger returns a no-op logger.
func NopLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// OrNop returns logger, or a no-op logger when it is nil.
func OrNop(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return NopLogger()
	}
	return logger
}
