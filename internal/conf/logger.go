package conf

import (
	"io"
	"log/slog"
)

// NewLogger returns a slog.Logger for the environment and level
// Production uses the JSON handler; otherwise text.
// Level may be: debug, info, warn, error (default: info).
func NewLogger(env, level string, w io.Writer) *slog.Logger {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	if env == "production" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// Logger builds the logger for this configuration
func (c *Config) Logger(w io.Writer) *slog.Logger {
	return NewLogger(c.Env, c.LogLevel, w)
}
