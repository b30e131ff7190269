// Package logging builds the process logger from configuration.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sort"

	"tourneykit/config"

	charmlog "github.com/charmbracelet/log"
)

// New returns a logger writing to the configured output.
func New(cfg config.LoggingConfig) *slog.Logger {
	var w io.Writer = os.Stdout
	if cfg.Output == "stderr" {
		w = os.Stderr
	}
	return NewWithWriter(cfg, w)
}

// NewWithWriter returns a logger writing to w. Format "pretty" renders
// human-friendly colored lines; "text" and "json" use the slog handlers.
func NewWithWriter(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	level := ParseLevel(cfg.Level)

	var handler slog.Handler
	switch cfg.Format {
	case "pretty":
		handler = charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(level),
			ReportTimestamp: true,
		})
	case "text":
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	default:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}

	if len(cfg.Attributes) > 0 {
		handler = handler.WithAttrs(attributes(cfg.Attributes))
	}
	return slog.New(handler)
}

// ParseLevel converts a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func attributes(attrs map[string]string) []slog.Attr {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	result := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		result = append(result, slog.String(k, attrs[k]))
	}
	return result
}
