package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apierrors "github.com/tanaka-takurou/serverless-forecast-page-go/internal/errors"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/infrastructure"
)

// ClientLogHandler records errors reported by the status page script
type ClientLogHandler struct {
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewClientLogHandler creates a new client log handler
func NewClientLogHandler(logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ClientLogHandler {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}
	return &ClientLogHandler{
		logger:       logger.With(slog.String("handler", "client_log")),
		errorHandler: errorHandler,
	}
}

// LogRequest is one client log entry
type LogRequest struct {
	Level   string                 `json:"level" validate:"omitempty,oneof=debug info warn error"`
	Message string                 `json:"message" validate:"required,max=2000"`
	Source  string                 `json:"source,omitempty" validate:"max=200"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// Bind implements render.Binder
func (l *LogRequest) Bind(r *http.Request) error {
	return validate.Struct(l)
}

// Handle handles POST /api/logs
func (h *ClientLogHandler) Handle(w http.ResponseWriter, r *http.Request) {
	req := &LogRequest{}
	if err := render.Bind(r, req); err != nil {
		h.errorHandler.HandleError(w, r, bindError(err))
		return
	}

	var level slog.Level
	switch req.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	attrs := []slog.Attr{
		slog.String("client_source", req.Source),
		slog.String("client_message", req.Message),
	}
	if req.Data != nil {
		attrs = append(attrs, slog.Any("data", req.Data))
	}
	h.logger.LogAttrs(r.Context(), level, "client_log", attrs...)

	w.WriteHeader(http.StatusNoContent)
}
