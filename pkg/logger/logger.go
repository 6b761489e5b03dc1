// Package logger builds the process-wide slog.Logger.
// Production gets JSON output, development gets human-readable text.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options configures the logger.
type Options struct {
	// Environment is "production" or anything else (treated as development).
	Environment string

	// Debug lowers the level to Debug.
	Debug bool

	// Level overrides the level when set ("debug", "info", "warn", "error").
	Level string

	// Output defaults to os.Stdout.
	Output io.Writer

	// Service is attached to every record as "service".
	Service string
}

// New creates a logger from options and installs it as slog default.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	level := ParseLevel(opts.Level)
	if opts.Debug {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: opts.Debug,
	}

	var handler slog.Handler
	if strings.EqualFold(opts.Environment, "production") {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	l := slog.New(handler)
	if opts.Service != "" {
		l = l.With("service", opts.Service)
	}

	slog.SetDefault(l)
	return l
}

// ParseLevel parses a level name, falling back to Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
