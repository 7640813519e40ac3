package testutil

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/dataset"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/operations"
)

// TestPollInterval is the re-poll delay used by fixtures
const TestPollInterval = 5 * time.Minute

// DiscardLogger returns a logger that drops everything
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// Series returns n samples of value v
func Series(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Fixture bundles a machine with fakes for every collaborator
type Fixture struct {
	Machine   *operations.Machine
	Transport *FakeTransport
	Scheduler *ManualScheduler
	Store     *dataset.Store
	Recorder  *EventRecorder
	History   *operations.RunHistory
}

// NewFixture creates a machine over a 40 sample manual series
func NewFixture(t *testing.T) *Fixture {
	t.Helper()

	f := &Fixture{
		Transport: NewFakeTransport(),
		Scheduler: NewManualScheduler(),
		Store:     dataset.NewStore(Series(40, 0.5)),
		Recorder:  &EventRecorder{},
		History:   operations.NewRunHistory(10),
	}

	cfg := operations.NewConfigBuilder().
		WithPollInterval(TestPollInterval).
		WithRequestTimeout(time.Second).
		Build()

	f.Machine = operations.NewMachine(f.Transport, f.Store, cfg,
		operations.WithScheduler(f.Scheduler),
		operations.WithLogger(DiscardLogger()),
		operations.WithHistory(f.History),
		operations.WithListener(f.Recorder),
	)
	t.Cleanup(func() { _ = f.Machine.Close() })

	return f
}
