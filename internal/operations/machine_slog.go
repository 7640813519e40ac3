package operations

import (
	"context"
	"log/slog"
	"time"
)

// logSubmit logs an accepted submission
func (m *Machine) logSubmit(ctx context.Context, runID string, length int) {
	m.logger.InfoContext(ctx, "job_submitted",
		slog.String("run_id", runID),
		slog.String("action", m.cfg.StartAction),
		slog.Int("series_length", length))
}

// logJobStarted logs the job id returned by the pipeline
func (m *Machine) logJobStarted(ctx context.Context, runID, jobID string) {
	m.logger.InfoContext(ctx, "job_started",
		slog.String("run_id", runID),
		slog.String("job_id", jobID))
}

// logStageAdvanced logs an ACTIVE reply moving the job forward
func (m *Machine) logStageAdvanced(ctx context.Context, jobID string, from, to Stage) {
	m.logger.InfoContext(ctx, "stage_advanced",
		slog.String("job_id", jobID),
		slog.String("from", from.String()),
		slog.String("to", to.String()))
}

// logPollPending logs a reply that keeps the job in its stage
func (m *Machine) logPollPending(ctx context.Context, jobID string, stage Stage, reply string, next time.Duration) {
	m.logger.DebugContext(ctx, "poll_pending",
		slog.String("job_id", jobID),
		slog.String("stage", stage.String()),
		slog.String("reply", reply),
		slog.Duration("next_poll_in", next))
}

// logJobCompleted logs a successful fetch
func (m *Machine) logJobCompleted(ctx context.Context, runID, jobID string, appended int, duration time.Duration) {
	m.logger.InfoContext(ctx, "job_completed",
		slog.String("run_id", runID),
		slog.String("job_id", jobID),
		slog.Int("appended", appended),
		slog.Duration("duration", duration))
}

// logJobFailed logs a terminal job error
func (m *Machine) logJobFailed(ctx context.Context, runID, jobID string, opErr *OperationError) {
	level := slog.LevelError
	if opErr.Type == ErrorTypeCancellation || opErr.Type == ErrorTypeValidation {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		slog.String("run_id", runID),
		slog.String("job_id", jobID),
		slog.String("error_type", string(opErr.Type)),
		slog.String("stage", opErr.Stage),
		slog.String("warning", opErr.Message),
	}
	if opErr.Cause != nil {
		attrs = append(attrs, slog.String("error", opErr.Cause.Error()))
	}
	m.logger.LogAttrs(ctx, level, "job_failed", attrs...)
}
