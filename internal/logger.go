package internal

import (
	"io"
	"log/slog"
	"strings"
)

// ParseLogLevel maps a LOG_LEVEL value to a slog level. Unknown values
// fall back to info.
func ParseLogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// NewLogger returns a text logger in development and a JSON logger
// everywhere else, so production output can be shipped as is.
func NewLogger(w io.Writer, env string, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLogLevel(level)}

	if env == "development" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts)).With("service", "relay", "env", env)
}
