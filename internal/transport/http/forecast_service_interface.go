package http

import (
	"context"
	"io"

	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts/domain"
)

// ForecastServiceInterface is the controller surface the handlers drive
type ForecastServiceInterface interface {
	Submit(ctx context.Context) (domain.StatusSnapshot, error)
	Cancel(ctx context.Context) (domain.StatusSnapshot, error)
	State() domain.StatusSnapshot
	Runs(limit int) []domain.RunRecord

	ChangeSampleSet(ctx context.Context, kind string) (domain.StatusSnapshot, error)
	ChangeFromText(ctx context.Context, text string) (domain.StatusSnapshot, error)
	ChangeFromFile(ctx context.Context, r io.Reader) (domain.StatusSnapshot, error)

	Chart() domain.ChartSpec
	ChartPNG(ctx context.Context) ([]byte, error)
	WriteXLSX(ctx context.Context, w io.Writer) error
}
