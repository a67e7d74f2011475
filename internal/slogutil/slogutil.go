// Package slogutil builds the structured loggers used across tracemark.
package slogutil

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LevelSilent is above every standard level.
const LevelSilent = slog.Level(100)

// NewLogger creates a logger writing to w. format is "json" or "text";
// anything else falls back to text.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewFileLogger creates a logger that appends to the file at path.
func NewFileLogger(path string, level slog.Level, format string) (*slog.Logger, *os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return NewLogger(f, level, format), f, nil
}

// NewDiscardLogger creates a logger that discards all output.
func NewDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: LevelSilent}))
}

// LevelFromString converts a string to a slog.Level.
// Supports: debug, info, warn, error (case-insensitive).
// Returns slog.LevelInfo for unrecognized strings.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
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

// LevelFromVerbosity converts CLI verbosity flags to a slog.Level.
//   - quiet: suppress everything
//   - 0: warn
//   - 1: info
//   - 2 or more: debug
func LevelFromVerbosity(verbosity int, quiet bool) slog.Level {
	if quiet {
		return LevelSilent
	}
	switch verbosity {
	case 0:
		return slog.LevelWarn
	case 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
