// Package logger configures the process-wide zerolog logger and hands out
// component-scoped children.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options controls Init.
type Options struct {
	Level  string
	Pretty bool
	Out    io.Writer
}

var (
	mu   sync.RWMutex
	base = zerolog.Nop()
)

// Init builds the default logger. An empty level falls back to LOG_LEVEL
// and then to info.
func Init(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	l := zerolog.New(out).Level(ParseLevel(opts.Level)).With().Timestamp().Logger()

	mu.Lock()
	base = l
	mu.Unlock()
	return l
}

// ParseLevel resolves a level name, consulting LOG_LEVEL when empty.
func ParseLevel(level string) zerolog.Level {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level == "" {
		return zerolog.InfoLevel
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	return parsed
}

// Default returns the logger built by Init, or a no-op logger before Init.
func Default() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// ForSite creates a logger for one storefront.
func ForSite(name string) zerolog.Logger {
	return Default().With().Str("site", name).Logger()
}

// ForComponent creates a logger for a component.
func ForComponent(name string) zerolog.Logger {
	return Default().With().Str("component", name).Logger()
}
