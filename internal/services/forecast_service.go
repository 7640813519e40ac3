package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/dataset"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/infrastructure"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/operations"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/render"
	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts/domain"
)

// Data sources reported in logs
const (
	SourceSample = "sample"
	SourceText   = "text"
	SourceFile   = "file"
)

// ForecastService drives the state machine on behalf of the page
type ForecastService struct {
	machine  *operations.Machine
	renderer *render.Renderer
	logger   *slog.Logger
}

// NewForecastService creates a forecast service
func NewForecastService(machine *operations.Machine, renderer *render.Renderer, logger *slog.Logger) *ForecastService {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &ForecastService{
		machine:  machine,
		renderer: renderer,
		logger:   logger.With(slog.String("component", "forecast_service")),
	}
}

// Submit starts a forecast job for the current series
func (s *ForecastService) Submit(ctx context.Context) (domain.StatusSnapshot, error) {
	if err := s.machine.Submit(ctx); err != nil {
		return s.machine.Snapshot(), err
	}
	return s.machine.Snapshot(), nil
}

// Cancel abandons the job in flight
func (s *ForecastService) Cancel(ctx context.Context) (domain.StatusSnapshot, error) {
	if err := s.machine.Cancel(); err != nil {
		return s.machine.Snapshot(), err
	}
	s.logger.InfoContext(ctx, "job_cancel_requested")
	return s.machine.Snapshot(), nil
}

// State returns the current status snapshot
func (s *ForecastService) State() domain.StatusSnapshot {
	return s.machine.Snapshot()
}

// Runs returns the newest runs first
func (s *ForecastService) Runs(limit int) []domain.RunRecord {
	return s.machine.Runs(limit)
}

// Subscribe registers l for machine events
func (s *ForecastService) Subscribe(l operations.Listener) {
	s.machine.AddListener(l)
}

// ChangeSampleSet replaces the series with a built-in sample set
func (s *ForecastService) ChangeSampleSet(ctx context.Context, kind string) (domain.StatusSnapshot, error) {
	series, err := sampleSeries(kind)
	return s.replace(ctx, SourceSample, series, err)
}

// ChangeFromText replaces the series with comma separated numbers
func (s *ForecastService) ChangeFromText(ctx context.Context, text string) (domain.StatusSnapshot, error) {
	series, err := dataset.ParseText(text)
	return s.replace(ctx, SourceText, series, err)
}

// ChangeFromFile replaces the series with the numbers read from r
func (s *ForecastService) ChangeFromFile(ctx context.Context, r io.Reader) (domain.StatusSnapshot, error) {
	series, err := dataset.ReadFile(ctx, r)
	return s.replace(ctx, SourceFile, series, err)
}

// replace installs series, or records parseErr as the page warning. The
// series is left untouched on any failure.
func (s *ForecastService) replace(ctx context.Context, source string, series []float64, parseErr error) (domain.StatusSnapshot, error) {
	if parseErr != nil {
		opErr := s.machine.Warn(parseErr)
		logDataRejected(ctx, source, parseErr, slog.String("warning", opErr.Message))
		return s.machine.Snapshot(), opErr
	}

	if err := s.machine.Replace(series, domain.SeriesOriginManual); err != nil {
		logDataRejected(ctx, source, err)
		return s.machine.Snapshot(), err
	}

	logDataReplaced(ctx, source, len(series))
	return s.machine.Snapshot(), nil
}

func sampleSeries(name string) ([]float64, error) {
	kind, err := dataset.ParseKind(name)
	if err != nil {
		return nil, err
	}
	return dataset.SampleSet(kind)
}

// Chart returns the current chart specification
func (s *ForecastService) Chart() domain.ChartSpec {
	return s.renderer.Current()
}

// ChartPNG renders the current chart as a PNG image
func (s *ForecastService) ChartPNG(ctx context.Context) ([]byte, error) {
	img, err := s.renderer.PNG(ctx)
	if errors.Is(err, render.ErrTooFewPoints) {
		return nil, fmt.Errorf("%w: %v", ErrNoChartData, err)
	}
	return img, err
}

// WriteXLSX exports the current chart data as a workbook
func (s *ForecastService) WriteXLSX(ctx context.Context, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	series, appended := s.renderer.Data()
	return render.WriteXLSX(w, series, appended)
}
