// Package logger provides the process-wide structured logger.
package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	once sync.Once
	log  *slog.Logger
)

// Config holds logger configuration.
type Config struct {
	Level  string `koanf:"level"`  // DEBUG, INFO, WARN, ERROR
	Format string `koanf:"format"` // json, text
}

// Init initializes the global logger. Subsequent calls are no-ops.
func Init(cfg Config) {
	once.Do(func() {
		var level slog.Level
		switch strings.ToUpper(cfg.Level) {
		case "DEBUG":
			level = slog.LevelDebug
		case "WARN":
			level = slog.LevelWarn
		case "ERROR":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		opts := &slog.HandlerOptions{Level: level}

		var handler slog.Handler
		if cfg.Format == "text" {
			handler = slog.NewTextHandler(os.Stderr, opts)
		} else {
			handler = slog.NewJSONHandler(os.Stderr, opts)
		}

		log = slog.New(handler)
		slog.SetDefault(log)
	})
}

// Get returns the global logger, initializing it with defaults if needed.
func Get() *slog.Logger {
	if log == nil {
		Init(Config{Level: "INFO", Format: "json"})
	}
	return log
}

// With returns a child logger tagged with the given component name.
func With(component string) *slog.Logger {
	return Get().With("component", component)
}
