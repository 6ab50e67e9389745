// Meshboard - Mesh Network Operations Console
// Copyright 2026 Meshboard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meshlabs/meshboard

package state

import (
	"sync"

	"github.com/goccy/go-json"

	"github.com/meshlabs/meshboard/internal/realtime"
)

// StatsStore reconciles aggregate statistics and analytics blocks.
//
// The backend emits complete sub-objects per metric family (the whole
// alert_stats block, never field-level deltas), so the merge is shallow:
// every top-level key in an incoming payload replaces the prior value for
// that key wholesale, keys absent from the payload stay untouched. A deep
// merge would let stale nested fields from a differently-shaped earlier
// payload linger.
type StatsStore struct {
	mu        sync.RWMutex
	stats     map[string]json.RawMessage
	analytics map[string]json.RawMessage

	unsubs []func()
}

// NewStatsStore creates an empty stats store.
func NewStatsStore() *StatsStore {
	return &StatsStore{
		stats:     make(map[string]json.RawMessage),
		analytics: make(map[string]json.RawMessage),
	}
}

// Attach subscribes the store to statistics_update and analytics_update.
func (s *StatsStore) Attach(reg *realtime.Registry) {
	s.unsubs = append(s.unsubs,
		reg.Subscribe(realtime.KindStatisticsUpdate, s.applyStatistics),
		reg.Subscribe(realtime.KindAnalyticsUpdate, s.applyAnalytics),
	)
}

// Close releases the registry subscriptions.
func (s *StatsStore) Close() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
}

// Seed loads the REST statistics baseline.
func (s *StatsStore) Seed(blocks map[string]json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = make(map[string]json.RawMessage, len(blocks))
	for k, v := range blocks {
		s.stats[k] = v
	}
}

func (s *StatsStore) applyStatistics(env realtime.Envelope) {
	payload, ok := env.Payload.(realtime.StatsPayload)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range payload {
		s.stats[k] = v
	}
}

func (s *StatsStore) applyAnalytics(env realtime.Envelope) {
	payload, ok := env.Payload.(realtime.StatsPayload)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range payload {
		s.analytics[k] = v
	}
}

// Statistics returns a snapshot of the statistics blocks.
func (s *StatsStore) Statistics() map[string]json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyBlocks(s.stats)
}

// Analytics returns a snapshot of the analytics blocks.
func (s *StatsStore) Analytics() map[string]json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyBlocks(s.analytics)
}

func copyBlocks(in map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
