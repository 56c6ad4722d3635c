// Package slogx builds the process logger and threads it through contexts.
package slogx

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config describes the logger for one process.
type Config struct {
	Service string
	Version string
	Env     string // "dev" enables source locations
	Level   string // "debug", "info", "warn", "error"
	Format  string // "json" or "text"
}

// New builds the process logger and installs it as slog's default. Records go
// to stderr: stdout belongs to the command output (login URLs, session
// status), and the two must not interleave when piped.
func New(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     levelFrom(cfg.Level),
		AddSource: cfg.Env == "dev",
	}

	logger := slog.New(newHandler(os.Stderr, cfg.Format, opts)).With(
		"service", cfg.Service,
		"version", cfg.Version,
		"env", cfg.Env,
	)

	slog.SetDefault(logger)
	return logger
}

// newHandler picks the record format. Text is the default: the primary
// audience is a person running the CLI, not a collector.
func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// levelFrom maps a config string to a slog.Level, defaulting to info.
func levelFrom(s string) slog.Level {
	switch strings.ToLower(s) {
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
