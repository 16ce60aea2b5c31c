// Package util holds small shared helpers: logger construction and retry
// with backoff for network-bound callers.
package util

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds a JSON slog logger at the given level. Unknown level
// strings fall back to info.
func NewLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}

// DiscardLogger returns a logger that drops everything. Used in tests and as
// the fallback when callers pass a nil logger.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
