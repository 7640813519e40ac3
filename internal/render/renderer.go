package render

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/dataset"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/infrastructure"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/operations"
	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts/domain"
)

// Default PNG size
const (
	DefaultWidth  = 1024
	DefaultHeight = 480
)

// Source is the dataset the renderer reads when signalled
type Source interface {
	Snapshot() dataset.Snapshot
}

// Renderer holds the current chart. It is redrawn on machine result and data
// events; the PNG is produced lazily and cached until the next redraw.
type Renderer struct {
	source Source
	width  int
	height int
	logger *slog.Logger

	mu       sync.RWMutex
	spec     domain.ChartSpec
	appended int
	series   []float64
	redraws  int64
	png      []byte

	group singleflight.Group
}

// NewRenderer creates a renderer and draws the current contents of source
func NewRenderer(source Source, width, height int, logger *slog.Logger) *Renderer {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	r := &Renderer{
		source: source,
		width:  width,
		height: height,
		logger: logger.With(slog.String("component", "renderer")),
	}
	r.Redraw(source.Snapshot())
	return r
}

// OnEvent implements operations.Listener
func (r *Renderer) OnEvent(ev operations.Event) {
	switch ev.Kind {
	case operations.EventResult, operations.EventData:
		r.Redraw(r.source.Snapshot())
	}
}

// Redraw discards the previous chart and builds a new one from snap
func (r *Renderer) Redraw(snap dataset.Snapshot) {
	spec := Build(snap.Series, snap.Appended)
	spec.Revision = snap.Revision

	r.mu.Lock()
	r.spec = spec
	r.series = snap.Series
	r.appended = clamp(snap.Appended, len(snap.Series))
	r.redraws++
	r.png = nil
	r.mu.Unlock()

	r.logger.Debug("chart_redrawn",
		slog.Int("points", len(spec.Values)),
		slog.Int("appended", r.appended),
		slog.Int64("revision", spec.Revision))
}

// Current implements operations.ChartSource
func (r *Renderer) Current() domain.ChartSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.spec
}

// Data returns the series and highlighted count behind the current chart
func (r *Renderer) Data() ([]float64, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.series, r.appended
}

// PNG returns the current chart as a PNG image. Concurrent callers share one
// render.
func (r *Renderer) PNG(ctx context.Context) ([]byte, error) {
	r.mu.RLock()
	if r.png != nil {
		img := r.png
		r.mu.RUnlock()
		return img, nil
	}
	spec := r.spec
	redraw := r.redraws
	r.mu.RUnlock()

	ch := r.group.DoChan(strconv.FormatInt(redraw, 10), func() (interface{}, error) {
		start := time.Now()
		img, err := RenderPNG(spec, r.width, r.height)
		if err != nil {
			return nil, err
		}
		r.logger.Debug("chart_rendered",
			slog.Int("bytes", len(img)),
			slog.Duration("duration", time.Since(start)))
		return img, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		img := res.Val.([]byte)

		r.mu.Lock()
		if r.redraws == redraw {
			r.png = img
		}
		r.mu.Unlock()
		return img, nil
	}
}
