package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/config"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/dataset"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/infrastructure"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/operations"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/operations/testutil"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/render"
	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts/domain"
)

type serviceFixture struct {
	*testutil.Fixture
	Service  *ForecastService
	Renderer *render.Renderer
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := testutil.NewFixture(t)
	r := render.NewRenderer(f.Store, 200, 120, testutil.DiscardLogger())
	f.Machine.AddListener(r)
	return &serviceFixture{
		Fixture:  f,
		Service:  NewForecastService(f.Machine, r, testutil.DiscardLogger()),
		Renderer: r,
	}
}

func numbers(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "0.25"
	}
	return strings.Join(parts, ",")
}

func TestChangeSampleSet(t *testing.T) {
	f := newServiceFixture(t)

	snap, err := f.Service.ChangeSampleSet(context.Background(), "cosine")
	require.NoError(t, err)
	assert.Equal(t, 100, snap.SeriesLength)
	assert.Equal(t, 0, snap.AppendedRange)
	assert.Equal(t, domain.SeriesOriginManual, snap.Origin)

	want, _ := dataset.SampleSet(dataset.KindCosine)
	assert.Equal(t, want, f.Store.Snapshot().Series)
	assert.Equal(t, want, f.Service.Chart().Values, "renderer redraws on data events")
}

func TestChangeRejectsInvalidData(t *testing.T) {
	tests := []struct {
		name    string
		change  func(s *ForecastService) (domain.StatusSnapshot, error)
		warning string
	}{
		{
			name:    "unknown sample",
			change:  func(s *ForecastService) (domain.StatusSnapshot, error) { return s.ChangeSampleSet(context.Background(), "tan") },
			warning: "Unknown sample data.",
		},
		{
			name:    "parse error",
			change:  func(s *ForecastService) (domain.StatusSnapshot, error) { return s.ChangeFromText(context.Background(), "1,,2") },
			warning: "Parse Error.",
		},
		{
			name:    "too short",
			change:  func(s *ForecastService) (domain.StatusSnapshot, error) { return s.ChangeFromText(context.Background(), numbers(29)) },
			warning: "Data Size Error. Please fix Data size 30 or more.",
		},
		{
			name: "file too long",
			change: func(s *ForecastService) (domain.StatusSnapshot, error) {
				return s.ChangeFromFile(context.Background(), strings.NewReader(numbers(101)))
			},
			warning: "Data Size Error. Please fix Data size 100 or less.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t)
			before := f.Store.Snapshot()

			snap, err := tt.change(f.Service)
			require.Error(t, err)
			assert.Equal(t, operations.ErrorTypeValidation, operations.GetErrorType(err))
			assert.Equal(t, tt.warning, snap.Warning)
			assert.Equal(t, before.Series, f.Store.Snapshot().Series, "series is not mutated")
			assert.Equal(t, before.Revision, f.Store.Snapshot().Revision)
		})
	}
}

func TestChangeClearsWarning(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.Service.ChangeFromText(context.Background(), "x")
	require.Error(t, err)

	snap, err := f.Service.ChangeFromFile(context.Background(), strings.NewReader(numbers(30)))
	require.NoError(t, err)
	assert.Empty(t, snap.Warning)
	assert.Equal(t, 30, snap.SeriesLength)
}

func TestChangeWhileBusy(t *testing.T) {
	f := newServiceFixture(t)
	f.Transport.OnMessage(domain.ActionStart, "job-1")

	_, err := f.Service.Submit(context.Background())
	require.NoError(t, err)

	_, err = f.Service.ChangeSampleSet(context.Background(), "sine")
	assert.ErrorIs(t, err, operations.ErrJobInFlight)
	assert.Equal(t, 40, f.Store.Len())

	snap, err := f.Service.Cancel(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.Busy)

	_, err = f.Service.Cancel(context.Background())
	assert.ErrorIs(t, err, operations.ErrNoJobInFlight)
}

func TestSubmitToResult(t *testing.T) {
	f := newServiceFixture(t)
	f.Transport.Happy(domain.ActionStart, "job-1", "[0.75, 0.8]")

	snap, err := f.Service.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "job-1", snap.JobID)

	f.Scheduler.RunAll(10)

	assert.Equal(t, operations.MessageResultShown, f.Service.State().Message)
	chart := f.Service.Chart()
	require.Len(t, chart.PointColors, 42)
	assert.Equal(t, render.ColorHighlight, chart.PointColors[41])
	assert.Equal(t, render.ColorBase, chart.PointColors[39])

	runs := f.Service.Runs(0)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunStatusCompleted, runs[0].Status)

	img, err := f.Service.ChartPNG(context.Background())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, []byte("\x89PNG")))

	var buf bytes.Buffer
	require.NoError(t, f.Service.WriteXLSX(context.Background(), &buf))
	wb, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows(render.SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 43)
	assert.Equal(t, []string{"41", "0.8", render.KindForecast}, rows[42])
}

func TestSubscribe(t *testing.T) {
	f := newServiceFixture(t)
	rec := &testutil.EventRecorder{}
	f.Service.Subscribe(rec)

	_, err := f.Service.ChangeSampleSet(context.Background(), "linear")
	require.NoError(t, err)

	ev, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, operations.EventData, ev.Kind)
}

func TestChartPNGTooFewPoints(t *testing.T) {
	f := testutil.NewFixture(t)
	store := dataset.NewStore([]float64{1})
	r := render.NewRenderer(store, 200, 120, nil)
	s := NewForecastService(f.Machine, r, nil)

	_, err := s.ChartPNG(context.Background())
	assert.True(t, errors.Is(err, ErrNoChartData))
}

func TestWriteXLSXCancelled(t *testing.T) {
	f := newServiceFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, f.Service.WriteXLSX(ctx, &bytes.Buffer{}), context.Canceled)
}

func TestServiceFallsBackToProcessLogger(t *testing.T) {
	prev := slog.Default()
	require.NoError(t, infrastructure.CloseLogFile())
	t.Cleanup(func() {
		infrastructure.CloseLogFile()
		slog.SetDefault(prev)
	})

	logFile := filepath.Join(t.TempDir(), "service.log")
	_, err := infrastructure.InitializeLogger(config.LoggingConfig{
		Level:    "info",
		Output:   "file",
		FilePath: logFile,
	})
	require.NoError(t, err)

	f := testutil.NewFixture(t)
	f.Transport.Happy(domain.ActionStart, "job-1", "[1]")
	svc := NewForecastService(f.Machine, nil, nil)

	_, err = svc.Submit(context.Background())
	require.NoError(t, err)
	_, err = svc.Cancel(infrastructure.WithTraceID(context.Background(), "req-42"))
	require.NoError(t, err)
	require.NoError(t, infrastructure.CloseLogFile())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"job_cancel_requested"`)
	assert.Contains(t, string(data), `"trace_id":"req-42"`)
	assert.Contains(t, string(data), `"component":"forecast_service"`)
}
