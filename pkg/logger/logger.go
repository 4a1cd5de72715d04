// Package logger builds the zap logger used across eduhub-dashboard and
// provides the domain field helpers and context propagation on top of it.
package logger

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format selects the log encoder.
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// Options configures the logger.
type Options struct {
	Level       string
	Format      Format
	Development bool
	// InitialFields are attached to every entry (service name, version).
	InitialFields map[string]any
}

// DefaultOptions returns sensible defaults for the logger.
func DefaultOptions() Options {
	return Options{
		Level:  "info",
		Format: FormatJSON,
	}
}

// New creates a zap logger from options. Unknown levels fall back to info.
func New(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(opts.Level))
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch opts.Format {
	case FormatConsole:
		cfg.Encoding = "console"
	case FormatJSON:
		cfg.Encoding = "json"
	}

	if len(opts.InitialFields) > 0 {
		cfg.InitialFields = opts.InitialFields
	}

	return cfg.Build()
}

// ParseLevel parses a string into a zap level.
func ParseLevel(s string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// Context key for logger.
type ctxKey struct{}

// WithContext returns a new context with the logger attached.
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the logger from context, or returns fallback.
// A nil fallback yields a no-op logger.
func FromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	if fallback == nil {
		return zap.NewNop()
	}
	return fallback
}

// RequestIDKey is a common field key for request tracing.
const RequestIDKey = "request_id"

// RequestID returns the request id field.
func RequestID(id string) zap.Field { return zap.String(RequestIDKey, id) }

// Domain logging helpers.
func StudentEmail(email string) zap.Field { return zap.String("student_email", email) }
func CourseID(id string) zap.Field        { return zap.String("course_id", id) }
func ModuleID(id string) zap.Field        { return zap.String("module_id", id) }
func Store(name string) zap.Field         { return zap.String("store", name) }
func Component(name string) zap.Field     { return zap.String("component", name) }
func Operation(name string) zap.Field     { return zap.String("operation", name) }
func Latency(d time.Duration) zap.Field   { return zap.Duration("latency", d) }
