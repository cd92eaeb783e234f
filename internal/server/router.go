// Package server provides HTTP server setup for the soc-lite API.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/victortong-git/soc-lite-aws-sub002/internal/handlers"
)

// NewRouter constructs a ServeMux with soc-lite API routes registered.
func NewRouter(h *handlers.Handler) http.Handler {
	mux := http.NewServeMux()

	// Health and metrics endpoints
	mux.HandleFunc("/healthz", h.HealthCheck)
	mux.Handle("/metrics", promhttp.Handler())

	// Event routes
	mux.HandleFunc("/api/v1/events", h.EventsHandler)
	mux.HandleFunc("/api/v1/events/", h.EventHandler)

	// Task routes
	mux.HandleFunc("/api/v1/tasks", h.TasksHandler)
	mux.HandleFunc("/api/v1/tasks/", h.TaskRouteHandler)

	// Job routes
	mux.HandleFunc("/api/v1/jobs", h.JobsHandler)
	mux.HandleFunc("/api/v1/jobs/", h.JobRouteHandler)

	// Escalation and blocklist routes
	mux.HandleFunc("/api/v1/escalations", h.EscalationsHandler)
	mux.HandleFunc("/api/v1/escalations/", h.EscalationRouteHandler)
	mux.HandleFunc("/api/v1/blocklist", h.BlocklistHandler)

	return mux
}
