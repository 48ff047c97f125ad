package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler exposes Prometheus collectors.
type MetricsHandler struct {
	handler http.Handler
}

// NewMetricsHandler serves the collectors registered with gatherer. Pass
// prometheus.DefaultGatherer to expose the promauto metrics.
func NewMetricsHandler(gatherer prometheus.Gatherer) *MetricsHandler {
	return &MetricsHandler{
		handler: promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	}
}

// RegisterRoutes registers GET /metrics on the given mux.
func (h *MetricsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /metrics", h.handler)
}
