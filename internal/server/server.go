// Meshboard - Mesh Network Operations Console
// Copyright 2026 Meshboard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meshlabs/meshboard

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/meshlabs/meshboard/internal/config"
	"github.com/meshlabs/meshboard/internal/logging"
)

// shutdownGrace bounds how long in-flight requests may finish after the
// context is canceled.
const shutdownGrace = 10 * time.Second

// Server runs the HTTP surface as a supervised service.
type Server struct {
	addr string
	srv  *http.Server
}

// New creates the HTTP server over the assembled router.
func New(cfg *config.ServerConfig, handler http.Handler) *Server {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: handler,
			// WriteTimeout is deliberately unset: /ws connections are
			// long-lived. Slow-client protection lives in the hub.
			ReadHeaderTimeout: cfg.Timeout,
			IdleTimeout:       2 * cfg.Timeout,
		},
	}
}

// Serve listens until ctx is canceled, then shuts down gracefully. It
// implements suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		logging.Info().Str("addr", s.addr).Msg("http server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("http server shutdown incomplete")
	}
	logging.Info().Str("addr", s.addr).Msg("http server stopped")
	return ctx.Err()
}

// String names the server in supervisor logs.
func (s *Server) String() string { return "http-server" }
