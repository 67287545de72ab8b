// Package log configures the zerolog logger shared by every component.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config captures options for configuring the global logger.
type Config struct {
	Level   string    // optional log level ("debug", "info", etc.)
	Output  io.Writer // optional writer (defaults to stderr)
	Console bool      // human readable output for interactive use
}

var (
	mu   sync.RWMutex
	base = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// Configure replaces the base logger.
func Configure(cfg Config) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	} else if env := os.Getenv("LOG_LEVEL"); env != "" {
		if parsed, err := zerolog.ParseLevel(env); err == nil {
			level = parsed
		}
	}
	zerolog.TimeFieldFormat = time.RFC3339

	writer := cfg.Output
	if writer == nil {
		writer = os.Stderr
	}
	if cfg.Console {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: "15:04:05"}
	}

	mu.Lock()
	defer mu.Unlock()
	base = zerolog.New(writer).Level(level).With().
		Timestamp().
		Str("service", "kartoza-dualcam").
		Logger()
}

// Base returns the configured base logger instance.
func Base() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str(FieldComponent, component).Logger()
}

// Discard returns a logger that drops everything; used by tests.
func Discard() zerolog.Logger {
	return zerolog.New(io.Discard)
}
