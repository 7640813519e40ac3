package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/infrastructure"
	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts/domain"
)

const (
	TracerName = "github.com/tanaka-takurou/serverless-forecast-page-go/pipeline"

	// maxResponseBytes bounds how much of a response body is read
	maxResponseBytes = 4 << 20
)

// Transport sends one request to the pipeline and returns its reply
type Transport interface {
	Send(ctx context.Context, req domain.PipelineRequest) (*domain.PipelineResponse, error)
}

// Options configures an HTTPTransport
type Options struct {
	Endpoint string
	Timeout  time.Duration
	// RequestsPerSecond throttles calls when > 0
	RequestsPerSecond float64
	Burst             int
	Client            *http.Client
	Logger            *slog.Logger
	Metrics           *infrastructure.BusinessMetrics
}

// HTTPTransport is the JSON-over-HTTP Transport
type HTTPTransport struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	validate *validator.Validate
	logger   *slog.Logger
	metrics  *infrastructure.BusinessMetrics
	tracer   trace.Tracer
}

// NewHTTPTransport creates a transport for the given endpoint
func NewHTTPTransport(opts Options) (*HTTPTransport, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("pipeline endpoint is required")
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	t := &HTTPTransport{
		endpoint: opts.Endpoint,
		client:   client,
		validate: validator.New(),
		logger:   logger.With(slog.String("component", "pipeline_transport")),
		metrics:  opts.Metrics,
		tracer:   otel.Tracer(TracerName),
	}

	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return t, nil
}

// Endpoint returns the configured pipeline URL
func (t *HTTPTransport) Endpoint() string {
	return t.endpoint
}

// Send POSTs req to the endpoint. Any failure is returned as *Error.
func (t *HTTPTransport) Send(ctx context.Context, req domain.PipelineRequest) (*domain.PipelineResponse, error) {
	ctx, span := t.tracer.Start(ctx, "pipeline."+req.Action,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("pipeline.action", req.Action),
			attribute.String("pipeline.job_id", req.ID),
		),
	)
	defer span.End()

	start := time.Now()
	resp, err := t.send(ctx, req)
	duration := time.Since(start)

	t.metrics.RecordPipelineRequest(ctx, req.Action, duration, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.logger.WarnContext(ctx, "pipeline_request_failed",
			slog.String("action", req.Action),
			slog.String("job_id", req.ID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, err
	}

	t.logger.DebugContext(ctx, "pipeline_request_completed",
		slog.String("action", req.Action),
		slog.String("job_id", req.ID),
		slog.Duration("duration", duration))

	return resp, nil
}

func (t *HTTPTransport) send(ctx context.Context, req domain.PipelineRequest) (*domain.PipelineResponse, error) {
	if err := t.validate.Struct(req); err != nil {
		return nil, &Error{Action: req.Action, Message: GenericMessage, Cause: err}
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, &Error{Action: req.Action, Message: GenericMessage, Cause: err}
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Action: req.Action, Message: GenericMessage, Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Action: req.Action, Message: GenericMessage, Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Action: req.Action, Message: GenericMessage, Cause: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{
			Action:     req.Action,
			StatusCode: httpResp.StatusCode,
			Message:    genericMessage(httpResp.StatusCode),
			Cause:      err,
		}
	}

	var decoded domain.PipelineResponse
	decodeErr := json.Unmarshal(data, &decoded)

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		msg := genericMessage(httpResp.StatusCode)
		if decodeErr == nil && decoded.Message != "" {
			msg = decoded.Message
		}
		return nil, &Error{Action: req.Action, StatusCode: httpResp.StatusCode, Message: msg}
	}

	if decodeErr != nil {
		return nil, &Error{
			Action:     req.Action,
			StatusCode: httpResp.StatusCode,
			Message:    genericMessage(0),
			Cause:      fmt.Errorf("decode response: %w", decodeErr),
		}
	}

	return &decoded, nil
}
