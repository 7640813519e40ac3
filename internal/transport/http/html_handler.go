package http

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/dataset"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/infrastructure"
	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts/domain"
)

//go:embed templates/status.html
var templateFS embed.FS

var statusTemplate = template.Must(template.ParseFS(templateFS, "templates/status.html"))

// statusPageRuns is how many runs the page lists
const statusPageRuns = 10

// StatusPage is the data the status template renders
type StatusPage struct {
	Title  string
	State  domain.StatusSnapshot
	Chart  domain.ChartSpec
	Runs   []domain.RunRecord
	Kinds  []dataset.Kind
	Width  int
	Height int
}

// StatusPageHandler renders the server-side status page with the chart image
type StatusPageHandler struct {
	service ForecastServiceInterface
	width   int
	height  int
	logger  *slog.Logger
}

// NewStatusPageHandler creates the page handler. width and height size the chart image.
func NewStatusPageHandler(service ForecastServiceInterface, width, height int, logger *slog.Logger) *StatusPageHandler {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &StatusPageHandler{
		service: service,
		width:   width,
		height:  height,
		logger:  logger.With(slog.String("handler", "status_page")),
	}
}

// ServeHTTP handles GET /
func (h *StatusPageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	page := StatusPage{
		Title:  "Forecast",
		State:  h.service.State(),
		Chart:  h.service.Chart(),
		Runs:   h.service.Runs(statusPageRuns),
		Kinds:  dataset.Kinds(),
		Width:  h.width,
		Height: h.height,
	}

	var buf bytes.Buffer
	if err := statusTemplate.Execute(&buf, page); err != nil {
		h.logger.ErrorContext(r.Context(), "status_page_render_failed", slog.String("error", err.Error()))
		http.Error(w, "Error rendering page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}
