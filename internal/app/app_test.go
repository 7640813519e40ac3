package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/config"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/infrastructure"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/operations/testutil"
	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Pipeline.Endpoint = "http://pipeline.test/forecast"
	cfg.Security.RateLimit.Enabled = false
	return cfg
}

func testOTel() *infrastructure.OTelConfig {
	otelCfg := infrastructure.DefaultOTelConfig()
	otelCfg.TraceExporter = "none"
	return otelCfg
}

type testApp struct {
	*Application
	transport *testutil.FakeTransport
	scheduler *testutil.ManualScheduler
}

func newTestApp(t *testing.T, cfg *config.Config) *testApp {
	t.Helper()

	transport := testutil.NewFakeTransport()
	scheduler := testutil.NewManualScheduler()

	a, err := New(cfg, quietLogger(),
		WithTransport(transport),
		WithScheduler(scheduler),
		WithOTelConfig(testOTel()),
	)
	require.NoError(t, err)
	a.Start(context.Background())
	t.Cleanup(func() { _ = a.Stop(context.Background()) })

	return &testApp{Application: a, transport: transport, scheduler: scheduler}
}

func (ta *testApp) do(method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ta.Router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestNewRequiresConfig(t *testing.T) {
	a, err := New(nil, quietLogger())
	assert.Error(t, err)
	assert.Nil(t, a)
}

func TestNewRequiresPipelineEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.Endpoint = ""

	_, err := New(cfg, quietLogger(), WithOTelConfig(testOTel()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline endpoint is required")
}

func TestServicesAreWired(t *testing.T) {
	ta := newTestApp(t, testConfig())

	require.NotNil(t, ta.Services)
	assert.NotNil(t, ta.Services.Store)
	assert.NotNil(t, ta.Services.Machine)
	assert.NotNil(t, ta.Services.Renderer)
	assert.NotNil(t, ta.Services.Broadcaster)
	assert.NotNil(t, ta.Services.WebSocket)
	assert.NotNil(t, ta.Services.Forecast)
	assert.NotNil(t, ta.Services.Health)
	assert.NotNil(t, ta.Metrics)
	assert.Equal(t, ":0", ta.Server.Addr)
	assert.Equal(t, ta.Config.Server.MaxHeaderBytes, ta.Server.MaxHeaderBytes)
}

func TestRoutes(t *testing.T) {
	ta := newTestApp(t, testConfig())

	tests := []struct {
		name        string
		method      string
		path        string
		wantStatus  int
		contentType string
	}{
		{name: "health", method: http.MethodGet, path: "/api/health", wantStatus: http.StatusOK, contentType: "application/json"},
		{name: "liveness", method: http.MethodGet, path: "/api/health/live", wantStatus: http.StatusOK},
		{name: "readiness", method: http.MethodGet, path: "/api/health/ready", wantStatus: http.StatusOK},
		{name: "version", method: http.MethodGet, path: "/api/version", wantStatus: http.StatusOK},
		{name: "state", method: http.MethodGet, path: "/api/forecast/state", wantStatus: http.StatusOK, contentType: "application/json"},
		{name: "runs", method: http.MethodGet, path: "/api/forecast/runs", wantStatus: http.StatusOK},
		{name: "chart spec", method: http.MethodGet, path: "/api/chart", wantStatus: http.StatusOK},
		{name: "chart png", method: http.MethodGet, path: "/api/chart.png", wantStatus: http.StatusOK, contentType: "image/png"},
		{name: "chart xlsx", method: http.MethodGet, path: "/api/chart.xlsx", wantStatus: http.StatusOK},
		{name: "status page", method: http.MethodGet, path: "/", wantStatus: http.StatusOK, contentType: "text/html"},
		{name: "metrics", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK},
		{name: "unknown route", method: http.MethodGet, path: "/api/nope", wantStatus: http.StatusNotFound, contentType: "application/json"},
		{name: "wrong method", method: http.MethodDelete, path: "/api/forecast/state", wantStatus: http.StatusMethodNotAllowed},
		{name: "bad runs limit", method: http.MethodGet, path: "/api/forecast/runs?limit=0", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ta.do(tt.method, tt.path, "")

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.contentType != "" {
				assert.Contains(t, rec.Header().Get("Content-Type"), tt.contentType)
			}
		})
	}
}

func TestRequestIDAndSecurityHeaders(t *testing.T) {
	ta := newTestApp(t, testConfig())

	rec := ta.do(http.MethodGet, "/api/forecast/state", "")

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestSubmitRunsJobToCompletion(t *testing.T) {
	ta := newTestApp(t, testConfig())
	ta.transport.Happy(domain.ActionStart, "job-7", "[1.5, 2.5, 3.5]")

	before := decode(t, ta.do(http.MethodGet, "/api/forecast/state", ""))
	length := int(before["series_length"].(float64))

	rec := ta.do(http.MethodPost, "/api/forecast/submit", "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	accepted := decode(t, rec)
	assert.Equal(t, true, accepted["busy"])
	assert.Equal(t, "job-7", accepted["job_id"])

	// a second submit while polling is refused
	rec = ta.do(http.MethodPost, "/api/forecast/submit", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	ta.scheduler.RunAll(10)

	state := decode(t, ta.do(http.MethodGet, "/api/forecast/state", ""))
	assert.Equal(t, "idle", state["state"])
	assert.Equal(t, false, state["busy"])
	assert.Equal(t, float64(length+3), state["series_length"])
	assert.Equal(t, float64(3), state["appended_range"])
	assert.Equal(t, string(domain.SeriesOriginDerived), state["origin"])

	runs := decode(t, ta.do(http.MethodGet, "/api/forecast/runs", ""))
	assert.Equal(t, float64(1), runs["count"])
}

func TestCancelDuringPolling(t *testing.T) {
	ta := newTestApp(t, testConfig())
	ta.transport.Happy(domain.ActionStart, "job-8", "[1]")

	require.Equal(t, http.StatusAccepted, ta.do(http.MethodPost, "/api/forecast/submit", "").Code)

	rec := ta.do(http.MethodPost, "/api/forecast/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	state := decode(t, ta.do(http.MethodGet, "/api/forecast/state", ""))
	assert.Equal(t, false, state["busy"])
}

func TestDataEndpointsReplaceSeries(t *testing.T) {
	ta := newTestApp(t, testConfig())

	rec := ta.do(http.MethodPost, "/api/data/sample", `{"kind":"linear"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ta.do(http.MethodPost, "/api/data/text", `{"text":"1,2"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Data Size Error. Please fix Data size 30 or more.", decode(t, rec)["detail"])

	// a nested list is not a series of numbers
	rec = ta.do(http.MethodPost, "/api/data/text", `{"text":"[1,2]"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Parse Error.", decode(t, rec)["detail"])

	state := decode(t, ta.do(http.MethodGet, "/api/forecast/state", ""))
	assert.EqualValues(t, 100, state["series_length"])
}

func TestClientLogEndpoint(t *testing.T) {
	ta := newTestApp(t, testConfig())

	rec := ta.do(http.MethodPost, "/api/logs", `{"level":"error","message":"chart failed"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ta.do(http.MethodPost, "/api/logs", `{"level":"error"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimitEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RateLimit.Enabled = true
	cfg.Security.RateLimit.RPS = 0.001
	cfg.Security.RateLimit.Burst = 1
	ta := newTestApp(t, cfg)

	assert.Equal(t, http.StatusOK, ta.do(http.MethodGet, "/api/forecast/state", "").Code)

	rec := ta.do(http.MethodGet, "/api/forecast/state", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestSubmitOverHTTPTransport(t *testing.T) {
	var (
		mu      sync.Mutex
		actions []string
	)
	pipelineSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req domain.PipelineRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		actions = append(actions, req.Action)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(domain.PipelineResponse{Message: "job-http"})
	}))
	defer pipelineSrv.Close()

	cfg := testConfig()
	cfg.Pipeline.Endpoint = pipelineSrv.URL
	cfg.Pipeline.RequestsPerSecond = 0

	scheduler := testutil.NewManualScheduler()
	a, err := New(cfg, quietLogger(), WithScheduler(scheduler), WithOTelConfig(testOTel()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Stop(context.Background()) })

	req := httptest.NewRequest(http.MethodPost, "/api/forecast/submit", nil)
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "job-http", decode(t, rec)["job_id"])

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{domain.ActionStart}, actions)
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	a, err := New(testConfig(), quietLogger(),
		WithTransport(testutil.NewFakeTransport()),
		WithScheduler(testutil.NewManualScheduler()),
		WithOTelConfig(testOTel()),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
