// Meshboard - Mesh Network Operations Console
// Copyright 2026 Meshboard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meshlabs/meshboard

package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/meshlabs/meshboard/internal/logging"
	"github.com/meshlabs/meshboard/internal/meshapi"
)

// Seeder loads the REST baseline into the reconciled stores. It runs once
// at startup and again on manual recovery after the session failed its
// reconnect budget.
//
// Seeding is best effort per endpoint: a failed endpoint is logged and
// skipped so the remaining stores still get their baseline; push events
// keep reconciling either way.
type Seeder struct {
	api       meshapi.API
	users     *UserStore
	zones     *ZoneStore
	alerts    *AlertFeed
	messages  *MessageFeed
	stats     *StatsStore
	feedLimit int
}

// NewSeeder wires a seeder over the given API client and stores.
func NewSeeder(api meshapi.API, users *UserStore, zones *ZoneStore, alerts *AlertFeed, messages *MessageFeed, stats *StatsStore, feedLimit int) *Seeder {
	return &Seeder{
		api:       api,
		users:     users,
		zones:     zones,
		alerts:    alerts,
		messages:  messages,
		stats:     stats,
		feedLimit: feedLimit,
	}
}

// Seed fetches all baselines and loads the stores. Returns the joined
// errors of the endpoints that failed; a non-nil error still means the
// successful endpoints were seeded.
func (s *Seeder) Seed(ctx context.Context) error {
	var errs []error

	if users, err := s.api.ListUsers(ctx); err != nil {
		logging.Warn().Err(err).Msg("seeding users failed")
		errs = append(errs, fmt.Errorf("seed users: %w", err))
	} else {
		s.users.Seed(users)
		logging.Info().Int("count", len(users)).Msg("seeded users")
	}

	if zones, err := s.api.ListZones(ctx); err != nil {
		logging.Warn().Err(err).Msg("seeding zones failed")
		errs = append(errs, fmt.Errorf("seed zones: %w", err))
	} else {
		s.zones.Seed(zones)
		logging.Info().Int("count", len(zones)).Msg("seeded zones")
	}

	if alerts, err := s.api.ListAlerts(ctx, s.feedLimit); err != nil {
		logging.Warn().Err(err).Msg("seeding alerts failed")
		errs = append(errs, fmt.Errorf("seed alerts: %w", err))
	} else {
		s.alerts.Seed(alerts)
		logging.Info().Int("count", len(alerts)).Msg("seeded alerts")
	}

	if messages, err := s.api.ListMessages(ctx, s.feedLimit); err != nil {
		logging.Warn().Err(err).Msg("seeding messages failed")
		errs = append(errs, fmt.Errorf("seed messages: %w", err))
	} else {
		s.messages.Seed(messages)
		logging.Info().Int("count", len(messages)).Msg("seeded messages")
	}

	if stats, err := s.api.GetStatistics(ctx); err != nil {
		logging.Warn().Err(err).Msg("seeding statistics failed")
		errs = append(errs, fmt.Errorf("seed statistics: %w", err))
	} else {
		s.stats.Seed(stats)
		logging.Info().Int("blocks", len(stats)).Msg("seeded statistics")
	}

	return errors.Join(errs...)
}
