package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type runCtxKey struct{}
type requestCtxKey struct{}
type loggerCtxKey struct{}

// runInfo identifies the run a log line belongs to.
type runInfo struct {
	number int
	id     string
}

// ContextFields extracts correlation data from ctx.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 5)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if run, ok := ctx.Value(runCtxKey{}).(runInfo); ok {
		fields = append(fields, zap.Int("run.number", run.number))
		if run.id != "" {
			fields = append(fields, zap.String("run.id", run.id))
		}
	}

	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	return fields
}

// WithRun tags ctx with the run number and run id.
func WithRun(ctx context.Context, number int, id string) context.Context {
	return context.WithValue(ctx, runCtxKey{}, runInfo{number: number, id: id})
}

// RunFromContext returns the run number and id stored by WithRun.
func RunFromContext(ctx context.Context) (int, string, bool) {
	run, ok := ctx.Value(runCtxKey{}).(runInfo)
	return run.number, run.id, ok
}

// WithRequestID tags ctx with an inbound request id. Empty ids are ignored.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext returns the request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext returns the stored logger, or a nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
