// Package log configures the process-wide slog logger.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(logLevel string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Setup(logLevel string) {
	SetupWithFormat(logLevel, "text", os.Stderr)
}

// SetupWithFormat installs a text or json handler writing to w as the default logger.
func SetupWithFormat(logLevel string, format string, w io.Writer) {
	slog.SetDefault(slog.New(NewHandler(logLevel, format, w)))
}

// NewHandler returns the handler Setup installs.
//
//nolint:ireturn // slog.Handler is the interface slog.New expects
func NewHandler(logLevel string, format string, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(logLevel),
	}

	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}

	return slog.NewTextHandler(w, opts)
}

func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
