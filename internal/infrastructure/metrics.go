package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// BusinessMetrics holds all application-specific metrics
type BusinessMetrics struct {
	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	// Forecast job metrics
	JobSubmissions   metric.Int64Counter
	JobPolls         metric.Int64Counter
	StageTransitions metric.Int64Counter
	ActiveJobs       metric.Int64UpDownCounter
	JobDuration      metric.Float64Histogram
	JobErrors        metric.Int64Counter
	ResultSamples    metric.Int64Counter

	// Pipeline transport metrics
	PipelineRequestDuration metric.Float64Histogram
	PipelineRequestErrors   metric.Int64Counter
}

// CreateBusinessMetrics creates application-specific metrics
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	m := &BusinessMetrics{}
	var err error

	if m.HTTPRequestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests")); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.HTTPActiveRequests, err = meter.Int64UpDownCounter("http_active_requests",
		metric.WithDescription("Number of in-flight HTTP requests")); err != nil {
		return nil, err
	}

	if m.JobSubmissions, err = meter.Int64Counter("forecast_job_submissions_total",
		metric.WithDescription("Forecast job submissions by outcome")); err != nil {
		return nil, err
	}
	if m.JobPolls, err = meter.Int64Counter("forecast_job_polls_total",
		metric.WithDescription("Progress polls by stage and outcome")); err != nil {
		return nil, err
	}
	if m.StageTransitions, err = meter.Int64Counter("forecast_stage_transitions_total",
		metric.WithDescription("Stage advances by target stage")); err != nil {
		return nil, err
	}
	if m.ActiveJobs, err = meter.Int64UpDownCounter("forecast_active_jobs",
		metric.WithDescription("Jobs currently in flight")); err != nil {
		return nil, err
	}
	if m.JobDuration, err = meter.Float64Histogram("forecast_job_duration_seconds",
		metric.WithDescription("Time from submission to terminal state"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.JobErrors, err = meter.Int64Counter("forecast_job_errors_total",
		metric.WithDescription("Terminal job errors by type")); err != nil {
		return nil, err
	}
	if m.ResultSamples, err = meter.Int64Counter("forecast_result_samples_total",
		metric.WithDescription("Samples appended from job results")); err != nil {
		return nil, err
	}

	if m.PipelineRequestDuration, err = meter.Float64Histogram("pipeline_request_duration_seconds",
		metric.WithDescription("Remote pipeline request duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.PipelineRequestErrors, err = meter.Int64Counter("pipeline_request_errors_total",
		metric.WithDescription("Remote pipeline request failures by action")); err != nil {
		return nil, err
	}

	return m, nil
}

// NoopBusinessMetrics returns metrics backed by a no-op meter
func NoopBusinessMetrics() *BusinessMetrics {
	m, _ := CreateBusinessMetrics(noop.NewMeterProvider().Meter(MeterName))
	return m
}

// RecordSubmission records a submission attempt
func (m *BusinessMetrics) RecordSubmission(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.JobSubmissions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if outcome == "accepted" {
		m.ActiveJobs.Add(ctx, 1)
	}
}

// RecordPoll records the outcome of one progress poll
func (m *BusinessMetrics) RecordPoll(ctx context.Context, stage, outcome string) {
	if m == nil {
		return
	}
	m.JobPolls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("outcome", outcome),
	))
}

// RecordStageTransition records a stage advance
func (m *BusinessMetrics) RecordStageTransition(ctx context.Context, to string) {
	if m == nil {
		return
	}
	m.StageTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", to)))
}

// RecordJobFinished records a terminal transition of an accepted job.
// An empty errorType marks success.
func (m *BusinessMetrics) RecordJobFinished(ctx context.Context, duration time.Duration, errorType string, samples int) {
	if m == nil {
		return
	}
	status := "completed"
	if errorType != "" {
		status = "failed"
		m.JobErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("error_type", errorType)))
	}
	m.ActiveJobs.Add(ctx, -1)
	m.JobDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("status", status)))
	if samples > 0 {
		m.ResultSamples.Add(ctx, int64(samples))
	}
}

// RecordPipelineRequest records one remote pipeline call
func (m *BusinessMetrics) RecordPipelineRequest(ctx context.Context, action string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("action", action))
	m.PipelineRequestDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		m.PipelineRequestErrors.Add(ctx, 1, attrs)
	}
}

// RecordHTTPRequest records one served HTTP request
func (m *BusinessMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, duration.Seconds(), attrs)
}
