// Meshboard - Mesh Network Operations Console
// Copyright 2026 Meshboard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meshlabs/meshboard

package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meshlabs/meshboard/internal/config"
	"github.com/meshlabs/meshboard/internal/middleware"
)

// NewRouter assembles the chi router: global middleware, the versioned
// read-only API, and the unversioned operational endpoints.
func NewRouter(cfg *config.ServerConfig, h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.RateLimitReqs, cfg.RateLimitWindow))
		r.Use(middleware.PrometheusMetrics)

		r.Get("/users", h.Users)
		r.Get("/users/{id}/trail", h.UserTrail)
		r.Get("/zones", h.Zones)
		r.Get("/alerts", h.Alerts)
		r.Get("/messages", h.Messages)
		r.Get("/statistics", h.Statistics)
		r.Get("/status", h.Status)
	})

	// Mounted outside the instrumented group: the hub upgrade needs the
	// raw ResponseWriter for hijacking, and /metrics must not count itself.
	r.Get("/ws", h.WebSocket)
	r.Get("/healthz", h.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
