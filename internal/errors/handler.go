package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/dataset"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/infrastructure"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/operations"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/pipeline"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/services"
)

// Common error types following RFC 7807
const (
	TypeValidation      = "/errors/validation"
	TypeNotFound        = "/errors/not-found"
	TypeMethod          = "/errors/method-not-allowed"
	TypeRateLimit       = "/errors/rate-limit"
	TypeInternal        = "/errors/internal"
	TypeServiceDown     = "/errors/service-unavailable"
	TypeTimeout         = "/errors/timeout"
	TypeConflict        = "/errors/conflict"
	TypePayloadTooLarge = "/errors/payload-too-large"
)

// Domain-specific error types
const (
	TypeDataRejected     = "/errors/data/rejected"
	TypeNoChartData      = "/errors/data/insufficient"
	TypeJobInFlight      = "/errors/job/in-flight"
	TypeNoJob            = "/errors/job/none"
	TypeJobCancelled     = "/errors/job/cancelled"
	TypePipelineFailed   = "/errors/pipeline/failed"
	TypePipelineDown     = "/errors/pipeline/unreachable"
	TypeControllerClosed = "/errors/job/controller-closed"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", reqID)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
		if h.includeStack {
			problem.WithExtension("stack", getStackTrace())
		}
	}
	h.logger.LogAttrs(r.Context(), level, "request_failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path))

	render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	path := r.URL.Path

	var opErr *operations.OperationError
	if errors.As(err, &opErr) {
		return operationProblem(opErr, path)
	}

	var dataErr *dataset.ValidationError
	if errors.As(err, &dataErr) {
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeDataRejected,
			"Data Rejected", dataErr.Message(), path).
			WithExtension("reason", string(dataErr.Reason))
	}

	var pipeErr *pipeline.Error
	if errors.As(err, &pipeErr) {
		return NewProblemDetails(http.StatusBadGateway, TypePipelineDown,
			"Pipeline Unavailable", pipeErr.Message, path).
			WithExtension("action", pipeErr.Action).
			WithExtension("retryable", pipeErr.Temporary())
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return NewProblemDetails(http.StatusRequestEntityTooLarge, TypePayloadTooLarge,
			"Payload Too Large",
			fmt.Sprintf("The request body exceeds %d bytes", tooLarge.Limit), path)
	}

	switch {
	case errors.Is(err, services.ErrNoChartData):
		return NewProblemDetails(http.StatusConflict, TypeNoChartData,
			"Not Enough Data", "The series needs at least two points to draw", path)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return NewProblemDetails(http.StatusGatewayTimeout, TypeTimeout,
			"Request Timeout", "The request took too long to process and was cancelled", path)
	}

	return NewProblemDetails(http.StatusInternalServerError, TypeInternal,
		"Internal Server Error", "An unexpected error occurred while processing your request", path)
}

// operationProblem maps job errors. Message carries the text the page shows.
func operationProblem(opErr *operations.OperationError, path string) *ProblemDetails {
	var p *ProblemDetails
	switch opErr.Type {
	case operations.ErrorTypeValidation:
		p = NewProblemDetails(http.StatusUnprocessableEntity, TypeDataRejected, "Data Rejected", opErr.Message, path)
	case operations.ErrorTypeInvalidState:
		switch {
		case errors.Is(opErr, operations.ErrJobInFlight):
			p = NewProblemDetails(http.StatusConflict, TypeJobInFlight, "Job In Progress", opErr.Message, path)
		case errors.Is(opErr, operations.ErrNoJobInFlight):
			p = NewProblemDetails(http.StatusConflict, TypeNoJob, "No Job In Progress", opErr.Message, path)
		default:
			p = NewProblemDetails(http.StatusServiceUnavailable, TypeControllerClosed, "Service Unavailable", opErr.Message, path)
		}
	case operations.ErrorTypeCancellation:
		p = NewProblemDetails(http.StatusConflict, TypeJobCancelled, "Job Cancelled", opErr.Message, path)
	case operations.ErrorTypeTransport:
		p = NewProblemDetails(http.StatusBadGateway, TypePipelineDown, "Pipeline Unavailable", opErr.Message, path)
		var pipeErr *pipeline.Error
		p.WithExtension("retryable", !errors.As(opErr, &pipeErr) || pipeErr.Temporary())
	default:
		p = NewProblemDetails(http.StatusBadGateway, TypePipelineFailed, "Pipeline Failed", opErr.Message, path)
	}

	p.WithExtension("error_type", string(opErr.Type))
	if opErr.Stage != "" {
		p.WithExtension("stage", opErr.Stage)
	}
	return p
}

// apiErrorToProblem converts APIError to ProblemDetails
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case "VALIDATION_FAILED", "INVALID_REQUEST":
		problemType = TypeValidation
	case "NOT_FOUND":
		problemType = TypeNotFound
	case "CONFLICT":
		problemType = TypeConflict
	case "RATE_LIMIT_EXCEEDED":
		problemType = TypeRateLimit
	case "SERVICE_UNAVAILABLE":
		problemType = TypeServiceDown
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}

	return problem
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic_recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, problem)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeMethod,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, problem)
}

// getStackTrace returns the current stack trace
func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
