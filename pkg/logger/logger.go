// Package logger builds the process-wide slog.Logger from environment
// configuration. JSON output is the default for log aggregation; text is
// available for local development.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds logging settings, populated from the environment.
type Config struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`   // debug, info, warn, error
	Format string `env:"LOG_FORMAT" envDefault:"json"`  // json or text
	Source bool   `env:"LOG_SOURCE" envDefault:"false"` // attach source locations
}

// New returns a logger writing to stderr per the config.
func New(cfg Config) *slog.Logger {
	return NewWithOutput(cfg, os.Stderr)
}

// NewWithOutput returns a logger writing to w per the config.
func NewWithOutput(cfg Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.Source,
	}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
