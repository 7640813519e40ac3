package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apierrors "github.com/tanaka-takurou/serverless-forecast-page-go/internal/errors"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/infrastructure"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/middleware"
)

// Run history paging bounds
const (
	DefaultRunsLimit = 20
	MaxRunsLimit     = 100
)

// ForecastHandler serves job control: state, submit, cancel and run history
type ForecastHandler struct {
	service      ForecastServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	params       *middleware.QueryParamValidator
	tracer       trace.Tracer
}

// NewForecastHandler creates a new forecast handler
func NewForecastHandler(service ForecastServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ForecastHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}
	return &ForecastHandler{
		service:      service,
		logger:       logger.With(slog.String("handler", "forecast")),
		errorHandler: errorHandler,
		params:       middleware.NewQueryParamValidator(logger, errorHandler),
		tracer:       otel.Tracer("forecast-handler"),
	}
}

// Routes returns a chi router for /api/forecast
func (h *ForecastHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/state", h.GetState)
	r.Post("/submit", h.Submit)
	r.Post("/cancel", h.Cancel)
	r.Get("/runs", h.ListRuns)

	return r
}

// GetState handles GET /api/forecast/state
func (h *ForecastHandler) GetState(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.State())
}

// Submit handles POST /api/forecast/submit. An accepted job answers 202
// with the snapshot taken right after submission.
func (h *ForecastHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "forecast_handler.submit",
		trace.WithAttributes(attribute.String("request_id", middleware.GetRequestID(r.Context()))))
	defer span.End()

	snap, err := h.service.Submit(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit rejected")
		h.errorHandler.HandleError(w, r, err)
		return
	}

	span.SetAttributes(
		attribute.String("run.id", snap.RunID),
		attribute.Int("series.length", snap.SeriesLength),
	)
	h.logger.InfoContext(ctx, "submit_accepted",
		slog.String("run_id", snap.RunID),
		slog.Int("series_length", snap.SeriesLength))

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, snap)
}

// Cancel handles POST /api/forecast/cancel
func (h *ForecastHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Cancel(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, snap)
}

// RunsResponse lists recent runs, newest first
type RunsResponse struct {
	Runs  interface{} `json:"runs"`
	Count int         `json:"count"`
}

// ListRuns handles GET /api/forecast/runs?limit=N
func (h *ForecastHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.params.ValidateInt(w, r, "limit", 1, MaxRunsLimit, DefaultRunsLimit)
	if !ok {
		return
	}
	runs := h.service.Runs(limit)
	render.JSON(w, r, RunsResponse{Runs: runs, Count: len(runs)})
}
