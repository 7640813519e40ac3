package render

import (
	"bytes"
	"context"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/dataset"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/operations"
	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts/domain"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name      string
		series    []float64
		appended  int
		highlight int
		max       float64
	}{
		{"no appended", []float64{0.1, 0.5, 0.3}, 0, 0, 0.5},
		{"two appended", []float64{0.1, 0.5, 0.3, 0.9}, 2, 2, 0.9},
		{"negative clamps to zero", []float64{1, 2}, -3, 0, 2},
		{"too many clamps to length", []float64{1, 2}, 5, 2, 2},
		{"empty", nil, 1, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := Build(tt.series, tt.appended)

			require.Len(t, spec.Labels, len(tt.series))
			require.Len(t, spec.PointColors, len(tt.series))
			for i := range tt.series {
				assert.Equal(t, i, spec.Labels[i])
				assert.Equal(t, tt.series[i], spec.Values[i])
			}

			highlighted := 0
			for i, c := range spec.PointColors {
				if c == ColorHighlight {
					highlighted++
					assert.GreaterOrEqual(t, i, len(tt.series)-tt.highlight, "only trailing points are highlighted")
				} else {
					assert.Equal(t, ColorBase, c)
				}
			}
			assert.Equal(t, tt.highlight, highlighted)

			assert.Equal(t, ColorBorder, spec.BorderColor)
			assert.Equal(t, domain.AxisHint{SuggestedMin: 0, SuggestedMax: tt.max, StepSize: 0.1}, spec.YAxis)
		})
	}
}

func TestBuildDoesNotAliasInput(t *testing.T) {
	series := []float64{1, 2, 3}
	spec := Build(series, 0)
	series[0] = 100
	assert.Equal(t, 1.0, spec.Values[0])
}

func TestRenderPNG(t *testing.T) {
	spec := Build([]float64{-0.5, 0.2, 0.4, 0.8, 1.0}, 2)

	img, err := RenderPNG(spec, 320, 200)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Equal(t, 320, decoded.Bounds().Dx())
	assert.Equal(t, 200, decoded.Bounds().Dy())

	_, err = RenderPNG(Build([]float64{1}, 0), 320, 200)
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

func TestYRange(t *testing.T) {
	r := yRange(Build([]float64{-0.5, 0.8}, 0))
	assert.Equal(t, -0.5, r.Min)
	assert.Equal(t, 0.8, r.Max)

	flat := yRange(Build([]float64{0, 0, 0}, 0))
	assert.Equal(t, 0.0, flat.Min)
	assert.Equal(t, StepSize, flat.Max)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, []float64{0.5, 1.5, 2.5}, 1))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"index", "value", "kind"},
		{"0", "0.5", KindInput},
		{"1", "1.5", KindInput},
		{"2", "2.5", KindForecast},
	}, rows)
}

func TestRendererRedrawsOnEvents(t *testing.T) {
	store := dataset.NewStore([]float64{0.1, 0.2, 0.3})
	r := NewRenderer(store, 0, 0, nil)

	assert.Equal(t, []float64{0.1, 0.2, 0.3}, r.Current().Values)

	store.Append([]float64{0.4, 0.5})

	r.OnEvent(operations.Event{Kind: operations.EventState})
	assert.Len(t, r.Current().Values, 3, "state events do not redraw")

	r.OnEvent(operations.Event{Kind: operations.EventResult})
	spec := r.Current()
	assert.Len(t, spec.Values, 5)
	assert.Equal(t, []string{ColorBase, ColorBase, ColorBase, ColorHighlight, ColorHighlight}, spec.PointColors)
	assert.Equal(t, store.Snapshot().Revision, spec.Revision)

	series, appended := r.Data()
	assert.Len(t, series, 5)
	assert.Equal(t, 2, appended)

	store.Replace([]float64{1, 2}, domain.SeriesOriginManual)
	r.OnEvent(operations.Event{Kind: operations.EventData})
	assert.Equal(t, []string{ColorBase, ColorBase}, r.Current().PointColors)
}

func TestRendererPNGCache(t *testing.T) {
	store := dataset.NewStore([]float64{0.1, 0.2, 0.3, 0.4})
	r := NewRenderer(store, 200, 120, nil)

	var wg sync.WaitGroup
	images := make([][]byte, 4)
	for i := range images {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			img, err := r.PNG(context.Background())
			assert.NoError(t, err)
			images[i] = img
		}(i)
	}
	wg.Wait()

	for _, img := range images {
		assert.NotEmpty(t, img)
	}

	first, err := r.PNG(context.Background())
	require.NoError(t, err)

	store.Append([]float64{0.5})
	r.Redraw(store.Snapshot())
	second, err := r.PNG(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestRendererPNGCancelled(t *testing.T) {
	r := NewRenderer(dataset.NewStore([]float64{1, 2, 3}), 200, 120, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// a render that already finished may win the race with ctx
	_, err := r.PNG(ctx)
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
