package infrastructure

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	// TraceIDContextKey carries the request or job trace id
	TraceIDContextKey contextKey = "trace_id"
	// RunIDContextKey carries the id of the forecast run a log line belongs to
	RunIDContextKey contextKey = "run_id"
)

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDContextKey, traceID)
}

// GetTraceID retrieves the trace ID from context
func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDContextKey)
}

// WithRunID tags the context with a forecast run id
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDContextKey, runID)
}

// GetRunID retrieves the run ID from context
func GetRunID(ctx context.Context) string {
	return stringValue(ctx, RunIDContextKey)
}

// JobContext derives the context a forecast run executes under. The caller's
// trace id is kept so API logs and job logs correlate; without one the run
// id doubles as the trace id.
func JobContext(parent context.Context, caller context.Context, runID string) context.Context {
	traceID := GetTraceID(caller)
	if traceID == "" {
		traceID = runID
	}
	return WithRunID(WithTraceID(parent, traceID), runID)
}

// NewRunID returns a fresh run identifier
func NewRunID() string {
	return uuid.NewString()
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
