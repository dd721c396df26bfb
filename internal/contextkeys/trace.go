package contextkeys

import (
	"context"

	"github.com/apesoftware1/Memorial-sub001/internal/core/port"
)

type traceIDKeyType struct{}

var traceIDKey = traceIDKeyType{}

// ContextWithTraceID puts the trace id into the context.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext returns the trace id, or "" when there is none.
func TraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// WithTraceID tags logger with the trace id of ctx, if any.
func WithTraceID(ctx context.Context, logger port.LoggerPort) port.LoggerPort {
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		return logger.WithFields(port.Fields{"trace_id": traceID})
	}
	return logger
}
