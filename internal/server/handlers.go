// Meshboard - Mesh Network Operations Console
// Copyright 2026 Meshboard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meshlabs/meshboard

// Package server exposes the reconciled state read-only over HTTP: JSON
// views for the console, the browser hub upgrade, health and metrics.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/meshlabs/meshboard/internal/logging"
	"github.com/meshlabs/meshboard/internal/realtime"
	"github.com/meshlabs/meshboard/internal/state"
	"github.com/meshlabs/meshboard/internal/websocket"
)

// SessionStatus is the slice of the realtime session the status endpoint
// reports on.
type SessionStatus interface {
	State() realtime.SessionState
	IsConnected() bool
	Attempt() int
}

// Handlers serves the read-only views. All state access goes through
// store snapshots; handlers never mutate.
type Handlers struct {
	users    *state.UserStore
	zones    *state.ZoneStore
	alerts   *state.AlertFeed
	messages *state.MessageFeed
	stats    *state.StatsStore
	router   *realtime.Router
	session  SessionStatus
	hub      *websocket.Hub
}

// NewHandlers wires the handler set over the stores and realtime core.
func NewHandlers(
	users *state.UserStore,
	zones *state.ZoneStore,
	alerts *state.AlertFeed,
	messages *state.MessageFeed,
	stats *state.StatsStore,
	router *realtime.Router,
	session SessionStatus,
	hub *websocket.Hub,
) *Handlers {
	return &Handlers{
		users:    users,
		zones:    zones,
		alerts:   alerts,
		messages: messages,
		stats:    stats,
		router:   router,
		session:  session,
		hub:      hub,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Users returns all tracked users, ordered by id.
func (h *Handlers) Users(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.users.Users())
}

// UserTrail returns one user's position history, oldest point first.
func (h *Handlers) UserTrail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.users.User(id); !ok {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": id,
		"points":  h.users.Trail(id),
	})
}

// Zones returns all zones, ordered by id.
func (h *Handlers) Zones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.zones.Zones())
}

// Alerts returns the alert feed, newest first, with running counters.
func (h *Handlers) Alerts(w http.ResponseWriter, r *http.Request) {
	total, unacknowledged := h.alerts.Counters()
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts":         h.alerts.Alerts(),
		"total":          total,
		"unacknowledged": unacknowledged,
	})
}

// Messages returns the message feed, newest first, with the running total.
func (h *Handlers) Messages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": h.messages.Messages(),
		"total":    h.messages.Total(),
	})
}

// Statistics returns the reconciled statistic and analytic blocks.
func (h *Handlers) Statistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"statistics": h.stats.Statistics(),
		"analytics":  h.stats.Analytics(),
	})
}

// Status reports the push-channel session and collection counts.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"session_state": string(h.session.State()),
		"connected":     h.session.IsConnected(),
		"attempt":       h.session.Attempt(),
		"arrival_seq":   h.router.ArrivalSeq(),
		"users":         h.users.Count(),
		"zones":         h.zones.Count(),
		"hub_clients":   h.hub.ClientCount(),
	})
}

// Healthz is the liveness probe.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// WebSocket upgrades the request into a browser hub client.
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWS(h.hub, w, r)
}
