// Meshboard - Mesh Network Operations Console
// Copyright 2026 Meshboard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meshlabs/meshboard

// Package metrics declares the Prometheus collectors for Meshboard.
//
// Collectors are registered on the default registry via promauto and
// exported at /metrics by the HTTP server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Push-channel session metrics

	SessionConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_session_connected",
			Help: "1 while the push-channel session is open, 0 otherwise",
		},
	)

	SessionState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "realtime_session_state",
			Help: "Current session state (1 for the active state, 0 for the rest)",
		},
		[]string{"state"},
	)

	ReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_reconnect_attempts_total",
			Help: "Total number of scheduled reconnect attempts",
		},
	)

	ReconnectExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_reconnect_exhausted_total",
			Help: "Times the reconnect budget was exhausted and the session failed",
		},
	)

	DroppedSends = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_dropped_sends_total",
			Help: "Outbound messages dropped because the session was not open",
		},
	)

	// Frame and dispatch metrics

	FramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_frames_received_total",
			Help: "Inbound push frames by decoded event kind",
		},
		[]string{"kind"},
	)

	FrameDecodeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_frame_decode_errors_total",
			Help: "Inbound frames discarded because they failed to decode",
		},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "realtime_dispatch_duration_seconds",
			Help:    "Synchronous dispatch time per event kind across all subscribers",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"kind"},
	)

	SubscriberPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_subscriber_panics_total",
			Help: "Recovered panics in event subscribers by kind",
		},
		[]string{"kind"},
	)

	// Reconciled state metrics

	TrackedUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "state_tracked_users",
			Help: "Users currently tracked in the live collection",
		},
	)

	TrackedZones = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "state_tracked_zones",
			Help: "Zones currently held in the zone collection",
		},
	)

	FeedEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "state_feed_evictions_total",
			Help: "Items evicted from bounded feeds by feed name",
		},
		[]string{"feed"},
	)

	// REST seeding metrics

	SeedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshapi_requests_total",
			Help: "REST requests to the mesh backend by endpoint and result",
		},
		[]string{"endpoint", "result"},
	)

	SeedDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meshapi_request_duration_seconds",
			Help:    "REST request duration by endpoint",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state: 0=closed, 1=open, 2=half-open",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// HTTP surface metrics

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	HubClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_connected_clients",
			Help: "Browser clients connected to the fan-out hub",
		},
	)

	HubDroppedBroadcasts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_dropped_broadcasts_total",
			Help: "Broadcasts dropped because the hub channel was full",
		},
	)
)

// sessionStates mirrors the realtime.SessionState string values. Keeping
// the list here avoids an import cycle with the realtime package.
var sessionStates = []string{"idle", "connecting", "open", "reconnect_waiting", "failed"}

// SetSessionState flags the active session state and clears the rest.
func SetSessionState(state string) {
	for _, s := range sessionStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		SessionState.WithLabelValues(s).Set(v)
	}
}

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(active bool) {
	if active {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
