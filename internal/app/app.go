package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/config"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/dataset"
	apierrors "github.com/tanaka-takurou/serverless-forecast-page-go/internal/errors"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/infrastructure"
	customMiddleware "github.com/tanaka-takurou/serverless-forecast-page-go/internal/middleware"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/operations"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/pipeline"
	chartrender "github.com/tanaka-takurou/serverless-forecast-page-go/internal/render"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/services"
	handlers "github.com/tanaka-takurou/serverless-forecast-page-go/internal/transport/http"
	ws "github.com/tanaka-takurou/serverless-forecast-page-go/internal/websocket"
	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts"
)

// apiTimeout bounds every /api request
const apiTimeout = 60 * time.Second

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	Services      *ServiceContainer

	transport  pipeline.Transport
	scheduler  operations.Scheduler
	otelConfig *infrastructure.OTelConfig
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Store       *dataset.Store
	Machine     *operations.Machine
	Renderer    *chartrender.Renderer
	Broadcaster *operations.StatusBroadcaster
	WebSocket   *ws.Hub
	Forecast    *services.ForecastService
	Health      *services.HealthService
}

// Option customizes an Application before its services are built
type Option func(*Application)

// WithTransport replaces the HTTP pipeline transport
func WithTransport(t pipeline.Transport) Option {
	return func(a *Application) { a.transport = t }
}

// WithScheduler replaces the wall-clock poll scheduler
func WithScheduler(s operations.Scheduler) Option {
	return func(a *Application) { a.scheduler = s }
}

// WithOTelConfig overrides the OpenTelemetry configuration
func WithOTelConfig(cfg *infrastructure.OTelConfig) Option {
	return func(a *Application) { a.otelConfig = cfg }
}

// NewApplication loads configuration and logging from the environment and
// builds the application
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger)
}

// New builds the application from an explicit configuration
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	a := &Application{
		Config: cfg,
		Logger: logger,
	}
	for _, opt := range opts {
		opt(a)
	}

	logger.Info("application_starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.String("pipeline_endpoint", cfg.Pipeline.Endpoint))

	otelConfig := infrastructure.DefaultOTelConfig()
	if a.otelConfig != nil {
		copied := *a.otelConfig
		otelConfig = &copied
	}
	a.otelConfig = otelConfig
	if a.otelConfig.PipelineEndpoint == "" {
		a.otelConfig.PipelineEndpoint = cfg.Pipeline.Endpoint
	}

	providers, err := infrastructure.InitializeOTel(a.otelConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	a.OTelProviders = providers

	a.Metrics, err = infrastructure.CreateBusinessMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	if err := a.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a.setupRouter()
	a.createServer()

	return a, nil
}

// initializeServices wires the controller. Listener order matters: the
// renderer redraws before the broadcaster reads the chart.
func (a *Application) initializeServices() error {
	cfg := a.Config

	if a.transport == nil {
		transport, err := pipeline.NewHTTPTransport(pipeline.Options{
			Endpoint:          cfg.Pipeline.Endpoint,
			Timeout:           cfg.Pipeline.RequestTimeout,
			RequestsPerSecond: cfg.Pipeline.RequestsPerSecond,
			Burst:             cfg.Pipeline.Burst,
			Logger:            a.Logger,
			Metrics:           a.Metrics,
		})
		if err != nil {
			return fmt.Errorf("pipeline transport: %w", err)
		}
		a.transport = transport
	}
	if a.scheduler == nil {
		a.scheduler = operations.TimerScheduler{}
	}

	store := dataset.NewStore(dataset.DefaultSeries())

	jobConfig := operations.NewConfigBuilder().
		WithStartAction(cfg.Pipeline.StartAction).
		WithPollInterval(cfg.Pipeline.PollInterval).
		WithRequestTimeout(cfg.Pipeline.RequestTimeout).
		Build()

	machine := operations.NewMachine(a.transport, store, jobConfig,
		operations.WithScheduler(a.scheduler),
		operations.WithLogger(a.Logger),
		operations.WithHistory(operations.NewRunHistory(cfg.Pipeline.HistorySize)),
		operations.WithTracer(operations.NewOperationTracer(a.Metrics)),
	)

	renderer := chartrender.NewRenderer(store, cfg.Chart.Width, cfg.Chart.Height, a.Logger)

	wsMetrics, err := ws.NewOTelMetrics()
	if err != nil {
		a.Logger.Warn("websocket_metrics_unavailable", slog.String("error", err.Error()))
	}
	hub := ws.NewHub(ws.Options{
		PingPeriod: cfg.WebSocket.PingPeriod,
		PongWait:   cfg.WebSocket.PongWait,
	}, a.Logger, wsMetrics)

	broadcaster := operations.NewStatusBroadcaster(hub, renderer, a.Logger)

	machine.AddListener(renderer)
	machine.AddListener(broadcaster)

	forecast := services.NewForecastService(machine, renderer, a.Logger)
	health := services.NewHealthService(cfg.Pipeline.Endpoint, forecast, hub, a.Logger)

	a.Services = &ServiceContainer{
		Store:       store,
		Machine:     machine,
		Renderer:    renderer,
		Broadcaster: broadcaster,
		WebSocket:   hub,
		Forecast:    forecast,
		Health:      health,
	}

	return nil
}

// setupRouter builds the chi router.
// Order: RequestID → RealIP → OTel → Logger → Recoverer → headers → CORS → rate limit.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	errorHandler := apierrors.NewErrorHandler(a.Logger, a.isDevelopmentMode())

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	// The WebSocket upgrade must see an unwrapped ResponseWriter
	wsHandler := ws.NewHandler(a.Services.WebSocket,
		a.Config.WebSocket.ReadBufferSize, a.Config.WebSocket.WriteBufferSize,
		a.Config.Security.AllowedOrigins, a.Logger)
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).Handle("/ws", wsHandler)

	r.Handle("/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP))

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics, a.Logger).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(apierrors.RecoveryMiddleware(errorHandler))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
			AllowedOrigins: a.Config.Security.AllowedOrigins,
			ExposedHeaders: []string{customMiddleware.RequestIDHeader, "Content-Disposition"},
			Logger:         a.Logger,
		}))
		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r, errorHandler)

		r.Get("/", handlers.NewStatusPageHandler(a.Services.Forecast,
			a.Config.Chart.Width, a.Config.Chart.Height, a.Logger).ServeHTTP)
	})

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router, errorHandler *apierrors.ErrorHandler) {
	forecast := a.Services.Forecast

	healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
	forecastHandler := handlers.NewForecastHandler(forecast, a.Logger, errorHandler)
	dataHandler := handlers.NewDataHandler(forecast, a.Config.Server.MaxUploadBytes, a.Logger, errorHandler)
	chartHandler := handlers.NewChartHandler(forecast, a.Logger, errorHandler)
	clientLogHandler := handlers.NewClientLogHandler(a.Logger, errorHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(apiTimeout, a.Logger))

		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/version", healthHandler.Version)

		r.Mount("/forecast", forecastHandler.Routes())
		r.Mount("/data", dataHandler.Routes())

		r.Get("/chart", chartHandler.GetSpec)
		r.Get("/chart.png", chartHandler.GetPNG)
		r.Get("/chart.xlsx", chartHandler.GetXLSX)

		r.With(
			customMiddleware.BodyLimit(64<<10),
			customMiddleware.ContentTypeValidator("application/json"),
		).Post("/logs", clientLogHandler.Handle)
	})
}

// isDevelopmentMode adds stack traces to 5xx problems
func (a *Application) isDevelopmentMode() bool {
	return os.Getenv("ENVIRONMENT") == "development" || a.Config.Logging.Level == "debug"
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the background services. The HTTP server is started by Serve.
func (a *Application) Start(ctx context.Context) {
	a.Services.WebSocket.Start()
	a.Logger.InfoContext(ctx, "application_started",
		slog.String("name", config.AppName),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))
}

// Serve accepts connections on l until the server is shut down
func (a *Application) Serve(l net.Listener) error {
	if err := a.Server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the application. The in-flight job is abandoned.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "application_stopping")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}

	if err := a.Services.Machine.Close(); err != nil && !errors.Is(err, operations.ErrMachineClosed) {
		errs = append(errs, fmt.Errorf("machine close: %w", err))
	}
	a.Services.Broadcaster.Stop()
	a.Services.WebSocket.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "otel_shutdown_failed", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "application_stopped")
	return errors.Join(errs...)
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts down
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.Server.Addr, err)
	}

	a.Start(ctx)
	a.Logger.InfoContext(ctx, "server_listening", slog.String("address", listener.Addr().String()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Serve(listener)
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.Stop(context.Background())
	})

	return g.Wait()
}
