// Package mlog defines the broker's logging interface, kept independent of
// any one backend so the core never imports zap directly.
package mlog

import "context"

// Logger is the common interface for log implementations used across the
// broker.
type Logger interface {
	Info(args ...any)
	Infof(format string, args ...any)

	Error(args ...any)
	Errorf(format string, args ...any)

	Warn(args ...any)
	Warnf(format string, args ...any)

	Debug(args ...any)
	Debugf(format string, args ...any)

	Fatal(args ...any)
	Fatalf(format string, args ...any)

	// WithFields returns a new logger carrying the given key/value pairs
	// as structured context; it leaves the receiver unchanged.
	WithFields(fields ...any) Logger

	Sync() error
}

type loggerContextKey string

const loggerKey loggerContextKey = "logger"

// ContextWithLogger returns a context carrying the given logger.
func ContextWithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the Logger stashed by ContextWithLogger, falling
// back to a no-op logger if none is present.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}

	return &NoneLogger{}
}

// NoneLogger discards everything. Used as a safe default when no logger
// has been wired into a context or test.
type NoneLogger struct{}

func (*NoneLogger) Info(args ...any)                  {}
func (*NoneLogger) Infof(format string, args ...any)  {}
func (*NoneLogger) Error(args ...any)                 {}
func (*NoneLogger) Errorf(format string, args ...any) {}
func (*NoneLogger) Warn(args ...any)                  {}
func (*NoneLogger) Warnf(format string, args ...any)  {}
func (*NoneLogger) Debug(args ...any)                 {}
func (*NoneLogger) Debugf(format string, args ...any) {}
func (*NoneLogger) Fatal(args ...any)                 {}
func (*NoneLogger) Fatalf(format string, args ...any) {}
func (l *NoneLogger) WithFields(fields ...any) Logger { return l }
func (*NoneLogger) Sync() error                       { return nil }
