package render

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts/domain"
)

// ErrTooFewPoints is returned when a chart has fewer than two points to draw
var ErrTooFewPoints = errors.New("chart needs at least two points")

var (
	dotBase      = drawing.Color{R: 255, G: 0, B: 0, A: 255}
	dotHighlight = drawing.Color{R: 0, G: 0, B: 255, A: 255}
	lineBorder   = drawing.Color{R: 210, G: 210, B: 210, A: 255}
)

// RenderPNG draws spec as a line chart with one colored dot per point
func RenderPNG(spec domain.ChartSpec, width, height int) ([]byte, error) {
	if len(spec.Values) < 2 {
		return nil, ErrTooFewPoints
	}

	xs := make([]float64, len(spec.Labels))
	for i, l := range spec.Labels {
		xs[i] = float64(l)
	}

	colors := spec.PointColors
	series := chart.ContinuousSeries{
		Name:    "series",
		XValues: xs,
		YValues: spec.Values,
		Style: chart.Style{
			StrokeWidth: 1,
			StrokeColor: lineBorder,
			DotWidth:    3,
			DotColorProvider: func(_, _ chart.Range, index int, _, _ float64) drawing.Color {
				if index < len(colors) && colors[index] == ColorHighlight {
					return dotHighlight
				}
				return dotBase
			},
		},
	}

	ch := chart.Chart{
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 14, Left: 16, Right: 12, Bottom: 14}},
		XAxis:      chart.XAxis{Name: "index"},
		YAxis:      chart.YAxis{Range: yRange(spec)},
		Series:     []chart.Series{series},
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}

// yRange widens the axis hint so every value is visible, including values
// below the suggested minimum
func yRange(spec domain.ChartSpec) *chart.ContinuousRange {
	lo := math.Min(spec.YAxis.SuggestedMin, minValue(spec.Values))
	hi := math.Max(spec.YAxis.SuggestedMax, maxValue(spec.Values))
	step := spec.YAxis.StepSize
	if step <= 0 {
		step = StepSize
	}
	if hi-lo < step {
		hi = lo + step
	}
	return &chart.ContinuousRange{Min: lo, Max: hi}
}
