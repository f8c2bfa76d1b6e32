package config

import (
	"io"
	"log/slog"
)

// NewLogger builds the root logger from LogLevel and LogFormat. Unknown
// levels fall back to warn.
func (a *App) NewLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if a.LogLevel != "" {
		if err := level.UnmarshalText([]byte(a.LogLevel)); err != nil {
			level = slog.LevelWarn
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	if a.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
