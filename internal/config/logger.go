package config

import (
	"io"

	charmlog "github.com/charmbracelet/log"
)

// Logger provides structured logging for pipeline operations.
// Components accept a Logger so callers can plug in their own implementation.
type Logger interface {
	// Debug logs debug-level messages with optional key-value pairs.
	Debug(msg string, keysAndValues ...interface{})

	// Info logs info-level messages with optional key-value pairs.
	Info(msg string, keysAndValues ...interface{})

	// Warn logs warning-level messages with optional key-value pairs.
	Warn(msg string, keysAndValues ...interface{})

	// Error logs error-level messages with optional key-value pairs.
	Error(msg string, keysAndValues ...interface{})
}

// noopLogger is a Logger implementation that does nothing.
// This is the default logger used when none is provided.
type noopLogger struct{}

func (n *noopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (n *noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (n *noopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (n *noopLogger) Error(msg string, keysAndValues ...interface{}) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger {
	return &noopLogger{}
}

// OrNop returns l, or the no-op logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NopLogger()
	}
	return l
}

// charmLogger adapts a charmbracelet logger to the Logger interface.
type charmLogger struct {
	l *charmlog.Logger
}

// NewLogger creates a Logger writing to w at the given level
// ("debug", "info", "warn", "error"). Unknown levels fall back to info.
func NewLogger(w io.Writer, level string) Logger {
	lvl, err := charmlog.ParseLevel(level)
	if err != nil {
		lvl = charmlog.InfoLevel
	}

	return &charmLogger{
		l: charmlog.NewWithOptions(w, charmlog.Options{
			Level:  lvl,
			Prefix: "leizi-formula",
		}),
	}
}

func (c *charmLogger) Debug(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c *charmLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Info(msg, keysAndValues...)
}

func (c *charmLogger) Warn(msg string, keysAndValues ...interface{}) {
	c.l.Warn(msg, keysAndValues...)
}

func (c *charmLogger) Error(msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, keysAndValues...)
}
