package render

import (
	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts/domain"
)

// Chart colors used by the page
const (
	ColorBase      = "rgba(255,0,0,1)"
	ColorHighlight = "rgba(0,0,255,1)"
	ColorBorder    = "rgba(210,210,210,1)"
	// StepSize is the y-axis tick step hint
	StepSize = 0.1
)

// Build derives the chart for series, highlighting the last appended points.
// appended is clamped to [0, len(series)].
func Build(series []float64, appended int) domain.ChartSpec {
	n := len(series)
	appended = clamp(appended, n)

	spec := domain.ChartSpec{
		Labels:      make([]int, n),
		Values:      make([]float64, n),
		PointColors: make([]string, n),
		BorderColor: ColorBorder,
		YAxis: domain.AxisHint{
			SuggestedMin: 0,
			SuggestedMax: maxValue(series),
			StepSize:     StepSize,
		},
	}

	copy(spec.Values, series)
	for i := range series {
		spec.Labels[i] = i
		if i >= n-appended {
			spec.PointColors[i] = ColorHighlight
		} else {
			spec.PointColors[i] = ColorBase
		}
	}

	return spec
}

func clamp(appended, n int) int {
	if appended < 0 {
		return 0
	}
	if appended > n {
		return n
	}
	return appended
}

func maxValue(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	m := series[0]
	for _, v := range series[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minValue(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	m := series[0]
	for _, v := range series[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
