package operations

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/dataset"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/infrastructure"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/pipeline"
	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts/domain"
)

// Option configures a Machine
type Option func(*Machine)

// WithScheduler replaces the wall-clock scheduler
func WithScheduler(s Scheduler) Option {
	return func(m *Machine) {
		if s != nil {
			m.scheduler = s
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithHistory sets the run history
func WithHistory(h *RunHistory) Option {
	return func(m *Machine) {
		if h != nil {
			m.history = h
		}
	}
}

// WithTracer sets the tracer and metrics recorder
func WithTracer(t *OperationTracer) Option {
	return func(m *Machine) {
		if t != nil {
			m.tracer = t
		}
	}
}

// WithListener registers a listener
func WithListener(l Listener) Option {
	return func(m *Machine) {
		if l != nil {
			m.listeners = append(m.listeners, l)
		}
	}
}

// Machine is the progress state machine for one in-flight job at a time
type Machine struct {
	cfg       *Config
	transport pipeline.Transport
	store     SeriesStore
	scheduler Scheduler
	history   *RunHistory
	tracer    *OperationTracer
	logger    *slog.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc

	// emitMu orders listener delivery; it is taken before mu is released
	emitMu    sync.Mutex
	listeners []Listener

	mu         sync.Mutex
	state      State
	stage      Stage
	runID      string
	jobID      string
	message    string
	warning    string
	errType    ErrorType
	gen        uint64
	closed     bool
	cancelTask func()
	jobCtx     context.Context
	jobCancel  context.CancelFunc
	jobSpan    trace.Span
	startedAt  time.Time
	updatedAt  time.Time
}

// NewMachine creates an idle machine
func NewMachine(transport pipeline.Transport, store SeriesStore, cfg *Config, opts ...Option) *Machine {
	if cfg == nil {
		cfg = NewConfig()
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())

	m := &Machine{
		cfg:        cfg,
		transport:  transport,
		store:      store,
		scheduler:  TimerScheduler{},
		history:    NewRunHistory(DefaultHistorySize),
		tracer:     NewOperationTracer(nil),
		logger:     infrastructure.GetLogger(),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		state:      StateIdle,
		updatedAt:  time.Now(),
	}

	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(slog.String("component", "forecast_machine"))

	return m
}

// AddListener registers a listener after construction
func (m *Machine) AddListener(l Listener) {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Config returns the job configuration
func (m *Machine) Config() Config {
	return *m.cfg
}

// Snapshot returns the current UI state
func (m *Machine) Snapshot() domain.StatusSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Runs returns the run history, newest first
func (m *Machine) Runs(limit int) []domain.RunRecord {
	return m.history.List(limit)
}

// Submit sends the current series to the pipeline and starts polling. It
// returns once the start action has been answered; polling continues in the
// background.
func (m *Machine) Submit(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.tracer.RecordSubmission(ctx, "rejected")
		return ErrMachineClosed
	}
	if m.state.Busy() {
		m.mu.Unlock()
		m.tracer.RecordSubmission(ctx, "rejected")
		return ErrJobInFlight
	}

	snap := m.store.Snapshot()
	if snap.Origin == domain.SeriesOriginManual {
		if err := dataset.CheckLength(snap.Series); err != nil {
			return m.rejectAndUnlock(ctx, NewValidationError(err))
		}
	}
	data, err := json.Marshal(snap.Series)
	if err != nil {
		return m.rejectAndUnlock(ctx, NewValidationError(err))
	}

	m.gen++
	gen := m.gen
	runID := infrastructure.NewRunID()

	jobCtx, jobCancel := context.WithCancel(infrastructure.JobContext(m.baseCtx, ctx, runID))
	jobCtx, jobSpan := m.tracer.TraceJob(jobCtx, runID, len(snap.Series))

	m.jobCtx, m.jobCancel, m.jobSpan = jobCtx, jobCancel, jobSpan
	m.runID = runID
	m.jobID = ""
	m.stage = StageImporting
	m.state = StateSubmitting
	m.message = ""
	m.warning = ""
	m.errType = ""
	m.startedAt = time.Now()

	_ = m.history.Create(domain.RunRecord{
		ID:          runID,
		Status:      domain.RunStatusRunning,
		Stage:       StageImporting.String(),
		InputLength: len(snap.Series),
		StartedAt:   m.startedAt,
	})
	m.tracer.RecordSubmission(jobCtx, "accepted")
	m.logSubmit(jobCtx, runID, len(snap.Series))
	m.emitAndUnlock(m.eventLocked(EventState, nil))

	reqCtx, span := m.tracer.TraceRequest(jobCtx, "submit", "")
	reqCtx, cancel := context.WithTimeout(reqCtx, m.cfg.RequestTimeout)
	stop := context.AfterFunc(ctx, cancel)
	resp, err := m.transport.Send(reqCtx, domain.PipelineRequest{
		Action: m.cfg.StartAction,
		Data:   string(data),
	})
	stop()
	cancel()
	m.tracer.EndRequest(span, err)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return NewCancellationError(StageImporting.String())
	}
	if err != nil {
		opErr := NewTransportError(StageImporting.String(), err)
		if ctx.Err() != nil {
			opErr = NewCancellationError(StageImporting.String())
			opErr.Cause = err
		}
		m.failAndUnlock(opErr)
		return opErr
	}

	m.jobID = resp.Message
	m.state = StatePolling
	m.message = StageImporting.Message()
	jobID := m.jobID
	_ = m.history.Update(runID, func(r *domain.RunRecord) { r.JobID = jobID })
	m.logJobStarted(jobCtx, runID, jobID)
	m.scheduleLocked(0, m.poll)
	m.emitAndUnlock(m.eventLocked(EventState, nil))

	return nil
}

// poll sends the check action of the current stage
func (m *Machine) poll(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StatePolling {
		m.mu.Unlock()
		return
	}
	stage, jobID, runID, jobCtx := m.stage, m.jobID, m.runID, m.jobCtx
	if jobID == "" {
		m.failAndUnlock(NewMissingJobError(stage))
		return
	}
	m.mu.Unlock()

	_ = m.history.Update(runID, func(r *domain.RunRecord) { r.Polls++ })

	ctx, span := m.tracer.TraceRequest(jobCtx, "poll", jobID)
	ctx, cancel := context.WithTimeout(ctx, m.cfg.RequestTimeout)
	resp, err := m.transport.Send(ctx, domain.PipelineRequest{Action: stage.Action(), ID: jobID})
	cancel()
	m.tracer.EndRequest(span, err)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}

	if err != nil {
		m.tracer.RecordPoll(jobCtx, stage, "error")
		m.failAndUnlock(NewTransportError(stage.String(), err))
		return
	}

	switch {
	case resp.Message == domain.MessageActive:
		next := stage.Next()
		m.tracer.RecordPoll(jobCtx, stage, "active")
		m.tracer.RecordStageTransition(jobCtx, next)
		m.logStageAdvanced(jobCtx, jobID, stage, next)

		m.stage = next
		_ = m.history.Update(runID, func(r *domain.RunRecord) { r.Stage = next.String() })
		if next == StageComplete {
			m.state = StateCompleting
			m.message = MessageFetchingResult
			m.scheduleLocked(0, m.fetch)
		} else {
			m.message = next.Message()
			m.scheduleLocked(0, m.poll)
		}
		m.emitAndUnlock(m.eventLocked(EventState, nil))

	case strings.HasSuffix(resp.Message, domain.MessageFailedSuffix):
		m.tracer.RecordPoll(jobCtx, stage, "failed")
		m.failAndUnlock(NewStageFailureError(stage))

	default:
		m.tracer.RecordPoll(jobCtx, stage, "pending")
		m.logPollPending(jobCtx, jobID, stage, resp.Message, m.cfg.PollInterval)
		m.scheduleLocked(m.cfg.PollInterval, m.poll)
		m.mu.Unlock()
	}
}

// fetch retrieves the result once the export stage is active
func (m *Machine) fetch(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateCompleting {
		m.mu.Unlock()
		return
	}
	jobID, jobCtx := m.jobID, m.jobCtx
	if jobID == "" {
		m.failAndUnlock(NewMissingJobError(StageComplete))
		return
	}
	m.mu.Unlock()

	ctx, span := m.tracer.TraceRequest(jobCtx, "fetch", jobID)
	ctx, cancel := context.WithTimeout(ctx, m.cfg.RequestTimeout)
	resp, err := m.transport.Send(ctx, domain.PipelineRequest{Action: domain.ActionGetResult, ID: jobID})
	cancel()
	m.tracer.EndRequest(span, err)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	if err != nil {
		m.failAndUnlock(NewTransportError(StageComplete.String(), err))
		return
	}

	result, err := ParseResult(resp.Message)
	if err != nil {
		m.failAndUnlock(NewResultParseError(err))
		return
	}

	m.store.Append(result)
	m.state = StateIdle
	m.message = MessageResultShown

	runID := m.runID
	duration := time.Since(m.startedAt)
	now := time.Now()
	_ = m.history.Update(runID, func(r *domain.RunRecord) {
		r.Status = domain.RunStatusCompleted
		r.Appended = len(result)
		r.CompletedAt = &now
	})
	m.tracer.RecordJobCompletion(jobCtx, m.jobSpan, duration, len(result), nil)
	m.logJobCompleted(jobCtx, runID, jobID, len(result), duration)
	m.endJobLocked()

	m.emitAndUnlock(m.eventLocked(EventResult, nil))
}

// ParseResult decodes a getresult message. Only a JSON array of numbers is
// accepted; an empty array is a valid, empty result.
func ParseResult(message string) ([]float64, error) {
	var result []float64
	if err := json.Unmarshal([]byte(message), &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, errors.New("result is not an array")
	}
	return result, nil
}

// Cancel stops the in-flight job. The machine ends in errored with a
// cancellation error and accepts a new submission.
func (m *Machine) Cancel() error {
	m.mu.Lock()
	if !m.state.Busy() {
		m.mu.Unlock()
		return ErrNoJobInFlight
	}
	m.failAndUnlock(NewCancellationError(m.stage.String()))
	return nil
}

// Close cancels any job and refuses further submissions
func (m *Machine) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.state.Busy() {
		m.failAndUnlock(NewCancellationError(m.stage.String()))
	} else {
		m.mu.Unlock()
	}
	m.baseCancel()
	return nil
}

// Replace swaps the series. It is refused while a job is in flight.
func (m *Machine) Replace(series []float64, origin domain.SeriesOrigin) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMachineClosed
	}
	if m.state.Busy() {
		m.mu.Unlock()
		return ErrJobInFlight
	}

	m.store.Replace(series, origin)
	if m.state == StateErrored {
		m.state = StateIdle
	}
	m.warning = ""
	m.errType = ""

	m.logger.Info("series_replaced",
		slog.Int("series_length", len(series)),
		slog.String("origin", string(origin)))
	m.emitAndUnlock(m.eventLocked(EventData, nil))
	return nil
}

// Warn records a refused data replacement in the snapshot. The series and
// the lifecycle state are left untouched.
func (m *Machine) Warn(err error) *OperationError {
	opErr := NewValidationError(err)

	m.mu.Lock()
	m.warning = opErr.Message
	m.errType = opErr.Type
	m.logger.Warn("series_rejected",
		slog.String("warning", opErr.Message),
		slog.String("error", err.Error()))
	m.emitAndUnlock(m.eventLocked(EventState, opErr))
	return opErr
}

// rejectAndUnlock refuses a submission before any job exists. Only the
// warning changes; the lifecycle state stays where it was.
func (m *Machine) rejectAndUnlock(ctx context.Context, opErr *OperationError) error {
	m.warning = opErr.Message
	m.errType = opErr.Type
	m.tracer.RecordSubmission(ctx, "rejected")
	m.logger.WarnContext(ctx, "submit_rejected",
		slog.String("error_type", string(opErr.Type)),
		slog.String("warning", opErr.Message))
	m.emitAndUnlock(m.eventLocked(EventState, opErr))
	return opErr
}

// failAndUnlock moves the current job to errored
func (m *Machine) failAndUnlock(opErr *OperationError) {
	runID, jobID, jobCtx := m.runID, m.jobID, m.jobCtx
	if jobCtx == nil {
		jobCtx = m.baseCtx
	}

	m.state = StateErrored
	m.warning = opErr.Message
	m.errType = opErr.Type

	status := domain.RunStatusFailed
	if opErr.Type == ErrorTypeCancellation {
		status = domain.RunStatusCancelled
	}
	now := time.Now()
	_ = m.history.Update(runID, func(r *domain.RunRecord) {
		r.Status = status
		r.Error = opErr.Message
		r.ErrorType = string(opErr.Type)
		r.CompletedAt = &now
	})

	m.tracer.RecordJobCompletion(jobCtx, m.jobSpan, time.Since(m.startedAt), 0, opErr)
	m.logJobFailed(jobCtx, runID, jobID, opErr)
	m.endJobLocked()

	m.emitAndUnlock(m.eventLocked(EventState, opErr))
}

// endJobLocked invalidates outstanding ticks and releases job resources
func (m *Machine) endJobLocked() {
	m.gen++
	if m.cancelTask != nil {
		m.cancelTask()
		m.cancelTask = nil
	}
	if m.jobCancel != nil {
		m.jobCancel()
		m.jobCancel = nil
	}
	m.jobCtx = nil
	m.jobSpan = nil
	m.jobID = ""
}

// scheduleLocked queues tick for the current generation
func (m *Machine) scheduleLocked(delay time.Duration, tick func(gen uint64)) {
	gen := m.gen
	m.cancelTask = m.scheduler.Schedule(delay, func() { tick(gen) })
}

func (m *Machine) eventLocked(kind EventKind, opErr *OperationError) Event {
	m.updatedAt = time.Now()
	return Event{Kind: kind, Snapshot: m.snapshotLocked(), Err: opErr}
}

func (m *Machine) snapshotLocked() domain.StatusSnapshot {
	data := m.store.Snapshot()

	snap := domain.StatusSnapshot{
		RunID:         m.runID,
		JobID:         m.jobID,
		State:         string(m.state),
		Busy:          m.state.Busy(),
		Message:       m.message,
		Warning:       m.warning,
		ErrorType:     string(m.errType),
		SeriesLength:  len(data.Series),
		AppendedRange: data.Appended,
		Origin:        data.Origin,
		UpdatedAt:     m.updatedAt,
	}
	if m.state != StateIdle && m.runID != "" {
		snap.Stage = m.stage.String()
	}
	return snap
}

// emitAndUnlock releases mu and delivers ev to every listener, in order
func (m *Machine) emitAndUnlock(ev Event) {
	m.emitMu.Lock()
	m.mu.Unlock()
	defer m.emitMu.Unlock()

	for _, l := range m.listeners {
		l.OnEvent(ev)
	}
}
