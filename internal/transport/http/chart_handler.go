package http

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/render"

	apierrors "github.com/tanaka-takurou/serverless-forecast-page-go/internal/errors"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/infrastructure"
)

// Content types of the chart downloads
const (
	ContentTypePNG  = "image/png"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ChartHandler serves the current chart as a spec, an image and a workbook
type ChartHandler struct {
	service      ForecastServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewChartHandler creates a new chart handler
func NewChartHandler(service ForecastServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ChartHandler {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}
	return &ChartHandler{
		service:      service,
		logger:       logger.With(slog.String("handler", "chart")),
		errorHandler: errorHandler,
	}
}

// GetSpec handles GET /api/chart
func (h *ChartHandler) GetSpec(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Chart())
}

// GetPNG handles GET /api/chart.png
func (h *ChartHandler) GetPNG(w http.ResponseWriter, r *http.Request) {
	png, err := h.service.ChartPNG(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", ContentTypePNG)
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.logger.WarnContext(r.Context(), "chart_write_failed", slog.String("error", err.Error()))
	}
}

// GetXLSX handles GET /api/chart.xlsx. The workbook is built in memory so a
// failure can still be answered with a problem document.
func (h *ChartHandler) GetXLSX(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.service.WriteXLSX(r.Context(), &buf); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", ContentTypeXLSX)
	w.Header().Set("Content-Disposition", `attachment; filename="forecast.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "xlsx_write_failed", slog.String("error", err.Error()))
	}
}
