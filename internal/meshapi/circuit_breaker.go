// Meshboard - Mesh Network Operations Console
// Copyright 2026 Meshboard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meshlabs/meshboard

package meshapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/meshlabs/meshboard/internal/logging"
	"github.com/meshlabs/meshboard/internal/metrics"
	"github.com/meshlabs/meshboard/internal/models"
)

// CircuitBreakerClient wraps an API implementation with a circuit breaker
// so a down or degraded backend cannot stall seeding indefinitely.
//
// The breaker uses real time for its interval and timeout windows; tests
// exercise the wrapped client directly or drive the breaker with enough
// failures to trip it.
type CircuitBreakerClient struct {
	api  API
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// NewCircuitBreakerClient wraps api with a breaker that opens after a 60%
// failure rate over at least 10 requests, allows 3 probes in half-open,
// and waits 2 minutes before probing an open circuit.
func NewCircuitBreakerClient(api API) *CircuitBreakerClient {
	cbName := "mesh-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).Msg("opening mesh-api circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &CircuitBreakerClient{api: api, cb: cb, name: cbName}
}

// execute runs one API call through the breaker.
func (cbc *CircuitBreakerClient) execute(fn func() (any, error)) (any, error) {
	result, err := cbc.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logging.Warn().Err(err).Str("breaker", cbc.name).Msg("request rejected by circuit breaker")
		}
		return nil, err
	}
	return result, nil
}

// castResult type-asserts a breaker result back to its concrete type.
func castResult[T any](result any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// stateToFloat maps breaker states onto the gauge values documented on
// metrics.CircuitBreakerState.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Ping verifies backend connectivity with circuit breaker protection.
func (cbc *CircuitBreakerClient) Ping(ctx context.Context) error {
	_, err := cbc.execute(func() (any, error) {
		return nil, cbc.api.Ping(ctx)
	})
	return err
}

// ListUsers retrieves the user roster with circuit breaker protection.
func (cbc *CircuitBreakerClient) ListUsers(ctx context.Context) ([]models.User, error) {
	return castResult[[]models.User](cbc.execute(func() (any, error) {
		return cbc.api.ListUsers(ctx)
	}))
}

// ListZones retrieves all zones with circuit breaker protection.
func (cbc *CircuitBreakerClient) ListZones(ctx context.Context) ([]models.Zone, error) {
	return castResult[[]models.Zone](cbc.execute(func() (any, error) {
		return cbc.api.ListZones(ctx)
	}))
}

// ListAlerts retrieves recent alerts with circuit breaker protection.
func (cbc *CircuitBreakerClient) ListAlerts(ctx context.Context, limit int) ([]models.Alert, error) {
	return castResult[[]models.Alert](cbc.execute(func() (any, error) {
		return cbc.api.ListAlerts(ctx, limit)
	}))
}

// ListMessages retrieves recent messages with circuit breaker protection.
func (cbc *CircuitBreakerClient) ListMessages(ctx context.Context, limit int) ([]models.Message, error) {
	return castResult[[]models.Message](cbc.execute(func() (any, error) {
		return cbc.api.ListMessages(ctx, limit)
	}))
}

// GetStatistics retrieves statistic blocks with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetStatistics(ctx context.Context) (map[string]json.RawMessage, error) {
	return castResult[map[string]json.RawMessage](cbc.execute(func() (any, error) {
		return cbc.api.GetStatistics(ctx)
	}))
}
