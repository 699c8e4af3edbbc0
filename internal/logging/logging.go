// Package logging wraps go.uber.org/zap the way the teacher's
// internal/logging wraps a stdlib *log.Logger: a small named-component
// logger with a package-level default instance, but with zap's structured,
// leveled output instead of ad-hoc JSON marshaling.
package logging

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	base     *zap.Logger
	baseOnce sync.Once
)

// Base returns the process-wide root logger, built once from the
// environment (LOG_LEVEL, LOG_FORMAT=console|json).
func Base() *zap.Logger {
	baseOnce.Do(func() {
		level := zapcore.InfoLevel
		if raw := os.Getenv("LOG_LEVEL"); raw != "" {
			_ = level.UnmarshalText([]byte(raw))
		}
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		if os.Getenv("LOG_FORMAT") == "console" {
			cfg.Encoding = "console"
			cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		}
		l, err := cfg.Build()
		if err != nil {
			l = zap.NewNop()
		}
		base = l
	})
	return base
}

// Logger is a component-scoped logger. Components obtain one with For and
// attach request-scoped fields with With.
type Logger struct {
	z *zap.Logger
}

// For returns a Logger tagged with the given component name, e.g.
// logging.For("discovery"), logging.For("smartcrawler").
func For(component string) *Logger {
	return &Logger{z: Base().With(zap.String("component", component))}
}

// With returns a derived Logger with additional structured fields attached,
// e.g. l.With("job_id", jobID.String()).
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{z: l.z.Sugar().With(keysAndValues...).Desugar()}
}

func (l *Logger) Info(msg string, keysAndValues ...interface{})  { l.z.Sugar().Infow(msg, keysAndValues...) }
func (l *Logger) Warn(msg string, keysAndValues ...interface{})  { l.z.Sugar().Warnw(msg, keysAndValues...) }
func (l *Logger) Error(msg string, err error, keysAndValues ...interface{}) {
	l.z.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) { l.z.Sugar().Debugw(msg, keysAndValues...) }

// FromContext pulls a request-scoped logger out of ctx if one was attached
// by middleware, falling back to the "unscoped" component logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return For("unscoped")
}

type ctxKey struct{}

// WithContext attaches l to ctx for downstream retrieval via FromContext.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// Sync flushes any buffered log entries; call during graceful shutdown.
func Sync() {
	if base != nil {
		_ = base.Sync()
	}
}
