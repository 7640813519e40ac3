package operations

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/infrastructure"
)

const (
	TracerName = "github.com/tanaka-takurou/serverless-forecast-page-go/operations"
)

// OperationTracer provides OpenTelemetry instrumentation for forecast jobs
type OperationTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.BusinessMetrics
}

// NewOperationTracer creates a tracer recording into metrics. A nil metrics
// value disables metric recording.
func NewOperationTracer(metrics *infrastructure.BusinessMetrics) *OperationTracer {
	return &OperationTracer{
		tracer:  otel.Tracer(TracerName),
		metrics: metrics,
	}
}

// TraceJob creates the span covering a job from submission to its terminal
// state
func (pt *OperationTracer) TraceJob(ctx context.Context, runID string, inputLength int) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "forecast.job",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("forecast.run_id", runID),
			attribute.Int("forecast.input_length", inputLength),
		),
	)
}

// TraceRequest creates a span for one submit, poll or fetch step
func (pt *OperationTracer) TraceRequest(ctx context.Context, step, jobID string) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "forecast."+step,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("forecast.step", step),
			attribute.String("forecast.job_id", jobID),
		),
	)
}

// RecordSubmission records an accepted or rejected submission
func (pt *OperationTracer) RecordSubmission(ctx context.Context, outcome string) {
	pt.metrics.RecordSubmission(ctx, outcome)
}

// RecordPoll records a poll outcome as metric and span event
func (pt *OperationTracer) RecordPoll(ctx context.Context, stage Stage, outcome string) {
	pt.metrics.RecordPoll(ctx, stage.String(), outcome)
	infrastructure.AddSpanEvent(ctx, "forecast.poll",
		attribute.String("stage", stage.String()),
		attribute.String("outcome", outcome),
	)
}

// RecordStageTransition records a stage advance
func (pt *OperationTracer) RecordStageTransition(ctx context.Context, to Stage) {
	pt.metrics.RecordStageTransition(ctx, to.String())
	infrastructure.AddSpanEvent(ctx, "forecast.stage_advanced", attribute.String("stage", to.String()))
}

// RecordJobCompletion closes the job span and records the job metrics
func (pt *OperationTracer) RecordJobCompletion(ctx context.Context, span trace.Span, duration time.Duration, appended int, opErr *OperationError) {
	errorType := ""
	if opErr != nil {
		errorType = string(opErr.Type)
	}
	pt.metrics.RecordJobFinished(ctx, duration, errorType, appended)

	if span == nil {
		return
	}
	span.SetAttributes(
		attribute.Float64("forecast.duration_seconds", duration.Seconds()),
		attribute.Int("forecast.appended", appended),
	)
	if opErr != nil {
		span.SetAttributes(attribute.String("forecast.error_type", errorType))
		span.SetStatus(codes.Error, opErr.Message)
	} else {
		span.SetStatus(codes.Ok, "job completed")
	}
	span.End()
}

// EndRequest closes a request span, recording err when set
func (pt *OperationTracer) EndRequest(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
