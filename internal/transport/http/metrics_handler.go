package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler serves the Prometheus exposition on /metrics
type MetricsHandler struct {
	handler http.Handler
}

// NewMetricsHandler wraps the exporter handler. A nil handler falls back to
// the default Prometheus registry.
func NewMetricsHandler(exporter http.Handler) *MetricsHandler {
	if exporter == nil {
		exporter = promhttp.Handler()
	}
	return &MetricsHandler{handler: exporter}
}

// ServeHTTP handles GET /metrics
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}
