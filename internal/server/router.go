package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/faultline-systems/faultline/internal/handlers"
	"github.com/faultline-systems/faultline/internal/middleware"
)

// NewRouter constructs a ServeMux with ingest API routes registered.
func NewRouter(h *handlers.EnvelopeHandler) http.Handler {
	mux := http.NewServeMux()

	// SDK-facing envelope endpoint
	mux.HandleFunc("POST /api/{tenant}/envelope/{$}", h.HandleEnvelope)

	// Health endpoints
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
