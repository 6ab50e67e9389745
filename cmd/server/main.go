// Meshboard - Mesh Network Operations Console
// Copyright 2026 Meshboard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meshlabs/meshboard

// Package main is the entry point for the Meshboard server.
//
// Meshboard is the server-side core of an administrative console for a
// mesh-network automation platform. It holds one persistent WebSocket
// session to the mesh backend, reconciles push events into bounded
// in-memory collections seeded from the backend's REST API, and exposes
// the reconciled state read-only over HTTP plus a browser-facing
// WebSocket hub.
//
// Startup order:
//
//  1. Configuration (koanf: defaults, config.yaml, MESHBOARD_ env)
//  2. Logging (zerolog)
//  3. Realtime core: registry, router, reconcilers, hub bridge
//  4. REST seeding through the circuit-breaker client
//  5. Supervision tree (suture): session, hub, HTTP server
//
// The server shuts down gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/meshlabs/meshboard/internal/config"
	"github.com/meshlabs/meshboard/internal/logging"
	"github.com/meshlabs/meshboard/internal/meshapi"
	"github.com/meshlabs/meshboard/internal/realtime"
	"github.com/meshlabs/meshboard/internal/server"
	"github.com/meshlabs/meshboard/internal/state"
	"github.com/meshlabs/meshboard/internal/supervisor"
	ws "github.com/meshlabs/meshboard/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("backend_url", cfg.Backend.URL).
		Str("push_path", cfg.Realtime.Path).
		Int("port", cfg.Server.Port).
		Msg("starting meshboard")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Realtime core. Reconcilers attach to the registry before the hub
	// bridge so the stores always reflect an event by the time the browser
	// hears about it.
	registry := realtime.NewRegistry()
	router := realtime.NewRouter(registry)

	users := state.NewUserStore(cfg.Realtime.TrailLength)
	zones := state.NewZoneStore()
	alerts := state.NewAlertFeed(cfg.Realtime.FeedCapacity)
	messages := state.NewMessageFeed(cfg.Realtime.FeedCapacity)
	stats := state.NewStatsStore()

	users.Attach(registry)
	zones.Attach(registry)
	alerts.Attach(registry)
	messages.Attach(registry)
	stats.Attach(registry)
	defer func() {
		users.Close()
		zones.Close()
		alerts.Close()
		messages.Close()
		stats.Close()
	}()

	hub := ws.NewHub()
	bridge := ws.NewBridge(hub)
	bridge.Attach(registry)
	defer bridge.Close()

	// REST seeding through the circuit breaker. A failed initial seed is
	// not fatal: push events reconcile from an empty baseline and the next
	// reconnect reseeds.
	apiClient := meshapi.NewCircuitBreakerClient(meshapi.NewClient(&cfg.Backend))
	if err := apiClient.Ping(ctx); err != nil {
		logging.Warn().Err(err).Msg("mesh backend not reachable yet, continuing")
	}

	seeder := state.NewSeeder(apiClient, users, zones, alerts, messages, stats, cfg.Realtime.FeedCapacity)
	if err := seeder.Seed(ctx); err != nil {
		logging.Warn().Err(err).Msg("initial seeding incomplete")
	}

	pushURL, err := realtime.BuildPushURL(cfg.Backend.URL, cfg.Realtime.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid backend url")
	}

	// Reseed on every reconnect after the first open: events during the
	// outage are gone, the REST baseline brings the stores current.
	var firstOpen atomic.Bool
	firstOpen.Store(true)
	session := realtime.NewSession(realtime.SessionConfig{
		URL:              pushURL,
		Token:            cfg.Backend.Token,
		UserID:           cfg.Backend.UserID,
		MaxAttempts:      cfg.Realtime.MaxAttempts,
		RetryDelay:       cfg.Realtime.RetryDelay,
		HandshakeTimeout: cfg.Realtime.HandshakeTimeout,
		OnConnectionChange: func(connected bool) {
			bridge.ConnectionChanged(connected)
			if connected && !firstOpen.CompareAndSwap(true, false) {
				go func() {
					seedCtx, cancel := context.WithTimeout(ctx, cfg.Backend.Timeout+30*time.Second)
					defer cancel()
					if err := seeder.Seed(seedCtx); err != nil {
						logging.Warn().Err(err).Msg("reseed after reconnect incomplete")
					}
				}()
			}
		},
	}, router)

	handlers := server.NewHandlers(users, zones, alerts, messages, stats, router, session, hub)
	httpServer := server.New(&cfg.Server, server.NewRouter(&cfg.Server, handlers))

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddRealtimeService(session)
	tree.AddRealtimeService(hub)
	tree.AddAPIService(httpServer)

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor tree exited")
	}

	logging.Info().Msg("meshboard stopped")
}
