package main

import (
	"io"
	"log/slog"

	"s3encrypt/internal/config"
)

// newLogger creates the process logger. Logs go to w (stderr) so that stdout
// carries only command output. The format is text for APP_ENV=local unless
// LOG_FORMAT says otherwise, JSON elsewhere.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}

	format := cfg.LogFormat
	if format == "" {
		format = "json"
		if cfg.IsLocal() {
			format = "text"
		}
	}
	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
