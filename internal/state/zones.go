// Meshboard - Mesh Network Operations Console
// Copyright 2026 Meshboard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meshlabs/meshboard

package state

import (
	"sort"
	"sync"

	"github.com/meshlabs/meshboard/internal/logging"
	"github.com/meshlabs/meshboard/internal/metrics"
	"github.com/meshlabs/meshboard/internal/models"
	"github.com/meshlabs/meshboard/internal/realtime"
)

// ZoneStore reconciles the zone collection from zone_update events: create
// inserts, update replaces the zone wholesale, delete removes it.
//
// An update for an id not currently present is a no-op. In particular a
// zone deleted by an earlier event is never resurrected by a late update;
// deletes win. Only an explicit create brings an id back.
type ZoneStore struct {
	mu    sync.RWMutex
	zones map[string]models.Zone

	unsub func()
}

// NewZoneStore creates an empty zone store.
func NewZoneStore() *ZoneStore {
	return &ZoneStore{zones: make(map[string]models.Zone)}
}

// Attach subscribes the store to zone_update events.
func (s *ZoneStore) Attach(reg *realtime.Registry) {
	s.unsub = reg.Subscribe(realtime.KindZoneUpdate, s.apply)
}

// Close releases the registry subscription.
func (s *ZoneStore) Close() {
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
}

// Seed replaces the collection with the REST baseline.
func (s *ZoneStore) Seed(zones []models.Zone) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones = make(map[string]models.Zone, len(zones))
	for _, z := range zones {
		s.zones[z.ID] = z
	}
	metrics.TrackedZones.Set(float64(len(s.zones)))
}

func (s *ZoneStore) apply(env realtime.Envelope) {
	zu, ok := env.Payload.(*realtime.ZoneUpdate)
	if !ok {
		return
	}
	id := zu.TargetZoneID()
	if id == "" {
		logging.Warn().Str("action", string(zu.Action)).Msg("zone_update without zone id, ignoring")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch zu.Action {
	case realtime.ZoneActionCreate:
		if zu.Zone == nil {
			logging.Warn().Str("zone_id", id).Msg("zone_update create without zone body, ignoring")
			return
		}
		s.zones[id] = *zu.Zone

	case realtime.ZoneActionUpdate:
		if zu.Zone == nil {
			logging.Warn().Str("zone_id", id).Msg("zone_update update without zone body, ignoring")
			return
		}
		if _, exists := s.zones[id]; !exists {
			logging.Debug().Str("zone_id", id).Msg("zone_update for absent zone, ignoring")
			return
		}
		s.zones[id] = *zu.Zone

	case realtime.ZoneActionDelete:
		delete(s.zones, id)

	default:
		logging.Warn().Str("action", string(zu.Action)).Str("zone_id", id).Msg("zone_update with unrecognized action, ignoring")
		return
	}

	metrics.TrackedZones.Set(float64(len(s.zones)))
}

// Zones returns a snapshot ordered by id.
func (s *ZoneStore) Zones() []models.Zone {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Zone, 0, len(s.zones))
	for _, z := range s.zones {
		out = append(out, z)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Zone returns one zone by id.
func (s *ZoneStore) Zone(id string) (models.Zone, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	z, ok := s.zones[id]
	return z, ok
}

// Count returns the number of zones held.
func (s *ZoneStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.zones)
}
