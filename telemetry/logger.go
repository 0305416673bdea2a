package telemetry

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook adds trace and span IDs to every log entry
type OTELHook struct{}

func (h OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	e.Str("trace_id", span.SpanContext().TraceID().String())
	e.Str("span_id", span.SpanContext().SpanID().String())

	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// Logger wraps zerolog with OTEL integration
type Logger struct {
	zerolog.Logger
}

// NewLogger creates a new logger with OTEL hooks
func NewLogger(component string) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("component", component).
		Logger().
		Hook(OTELHook{})

	return &Logger{Logger: logger}
}

// WithContext returns a logger with context (for trace propagation)
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	logger := l.Logger.With().Ctx(ctx).Logger()
	return &logger
}

// LogRegionFailure logs an isolated per-region collection failure.
func (l *Logger) LogRegionFailure(ctx context.Context, service, region string, err error) {
	l.WithContext(ctx).Error().
		Err(err).
		Str("service", service).
		Str("region", region).
		Msg("region collection failed")
}

// LogAccountSkipped logs an account dropped from a collection cycle.
func (l *Logger) LogAccountSkipped(ctx context.Context, service, accountID string, err error) {
	l.WithContext(ctx).Warn().
		Err(err).
		Str("service", service).
		Str("account_id", accountID).
		Msg("account skipped")
}

// LogItemSkipped logs a single resource whose describe call failed.
func (l *Logger) LogItemSkipped(ctx context.Context, service, region, itemID string, err error) {
	l.WithContext(ctx).Warn().
		Err(err).
		Str("service", service).
		Str("region", region).
		Str("item", itemID).
		Msg("item describe failed, skipping")
}
