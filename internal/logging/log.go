// Package logging is the structured logger shared by the driver, its
// backends and the CLI.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// Component identifies a subsystem for log filtering.
type Component string

// Driver component identifiers.
const (
	ComponentUART   Component = "uart"
	ComponentEngine Component = "engine"
	ComponentHAL    Component = "hal"
	ComponentCLI    Component = "cli"
)

// Format specifies the output format for logging.
type Format int

// Log format options.
const (
	FormatText Format = iota
	FormatJSON
)

var (
	logger *slog.Logger
	level  = new(slog.LevelVar)
	mu     sync.RWMutex
)

func init() {
	level.Set(slog.LevelWarn)
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// SetLevel sets the minimum level for all driver logging.
func SetLevel(l slog.Level) { level.Set(l) }

// Level returns the current minimum level.
func Level() slog.Level { return level.Level() }

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

// SetOutput points the package logger at w using the given format and the
// current level.
func SetOutput(w io.Writer, f Format) {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch f {
	case FormatJSON:
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	SetLogger(slog.New(h))
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func with(c Component, args []any) []any {
	return append([]any{"component", string(c)}, args...)
}

// Debug logs at debug level with the given component.
func Debug(c Component, msg string, args ...any) { current().Debug(msg, with(c, args)...) }

// Info logs at info level with the given component.
func Info(c Component, msg string, args ...any) { current().Info(msg, with(c, args)...) }

// Warn logs at warn level with the given component.
func Warn(c Component, msg string, args ...any) { current().Warn(msg, with(c, args)...) }

// Error logs at error level with the given component.
func Error(c Component, msg string, args ...any) { current().Error(msg, with(c, args)...) }
