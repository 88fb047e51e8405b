// Package logging provides per-component structured logger handles.
//
// original_source/core/include/nexusdb/utils/logger.h modeled logging as a
// process-wide singleton (Logger::get_instance()). spec.md §9 flags this
// explicitly and asks for "an explicit logger handle threaded into
// components at construction; keep a thin static facade if convenient for
// call sites." quiverdb follows that: every manager takes a *Logger at
// construction time instead of reaching for a global.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus.Entry scoped to one component ("bufferpool",
// "wal", "engine", ...) so every line it emits is self-identifying without
// each call site repeating the component name.
type Logger struct {
	entry *logrus.Entry
}

// Config controls the root logger every component-scoped Logger is derived
// from.
type Config struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "text" or "json"
	Output io.Writer
}

// New builds the root logrus.Logger for a process and returns a Logger
// scoped to component.
func New(cfg Config, component string) *Logger {
	base := logrus.New()

	if cfg.Output != nil {
		base.SetOutput(cfg.Output)
	} else {
		base.SetOutput(os.Stderr)
	}

	if cfg.Format == "json" {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	return &Logger{entry: base.WithField("component", component)}
}

// With returns a Logger scoped to a sub-component of the receiver, e.g.
// bufferLogger.With("table", "orders").
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

// Noop returns a Logger that discards everything — useful in tests that
// don't want manager construction to require a real sink.
func Noop() *Logger {
	return New(Config{Level: "error", Output: io.Discard}, "noop")
}
