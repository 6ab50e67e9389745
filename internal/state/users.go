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

// UserStore reconciles the live user collection and per-user movement
// trails. It subscribes to location_update (position patch + trail point)
// and zone_change (current-zone association patch); both kinds mutate the
// user entity, which this store owns exclusively.
//
// A location_update for a user id the store has never seen synthesizes a
// minimal placeholder entity rather than dropping the point: the REST
// seed may still be in flight, and discarding early samples would
// permanently lose trail data. The later seed upserts full fields over
// the placeholder without touching the trail.
type UserStore struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	trails   map[string]*Trail
	trailLen int

	unsubs []func()
}

// NewUserStore creates a store whose trails keep trailLen points.
func NewUserStore(trailLen int) *UserStore {
	return &UserStore{
		users:    make(map[string]*models.User),
		trails:   make(map[string]*Trail),
		trailLen: trailLen,
	}
}

// Attach subscribes the store to the kinds it reconciles. Call Close to
// release the subscriptions when the store is torn down.
func (s *UserStore) Attach(reg *realtime.Registry) {
	s.unsubs = append(s.unsubs,
		reg.Subscribe(realtime.KindLocationUpdate, s.applyLocation),
		reg.Subscribe(realtime.KindZoneChange, s.applyZoneChange),
	)
}

// Close releases the store's registry subscriptions. Safe to call more
// than once.
func (s *UserStore) Close() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
}

// Seed upserts the REST baseline: full field replacement per user, trails
// preserved. Users the backend no longer lists are kept; they disappear
// only through staleness in the presentation layer, the push channel has
// no user-delete event.
func (s *UserStore) Seed(users []models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range users {
		u := users[i]
		s.users[u.ID] = &u
	}
	metrics.TrackedUsers.Set(float64(len(s.users)))
}

func (s *UserStore) applyLocation(env realtime.Envelope) {
	loc, ok := env.Payload.(*realtime.LocationUpdate)
	if !ok {
		return
	}
	if loc.UserID == "" {
		logging.Warn().Msg("location_update without user_id, ignoring")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, exists := s.users[loc.UserID]
	if !exists {
		u = &models.User{ID: loc.UserID, Online: true}
		s.users[loc.UserID] = u
		metrics.TrackedUsers.Set(float64(len(s.users)))
		logging.Debug().Str("user_id", loc.UserID).Msg("synthesized placeholder user from location_update")
	}

	u.Latitude = loc.Latitude
	u.Longitude = loc.Longitude
	u.Altitude = loc.Altitude
	u.Moving = loc.Moving
	u.LastSeen = loc.Timestamp

	trail, ok := s.trails[loc.UserID]
	if !ok {
		trail = NewTrail(s.trailLen)
		s.trails[loc.UserID] = trail
	}
	trail.Append(models.TrailPoint{
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Timestamp: loc.Timestamp,
	})
}

func (s *UserStore) applyZoneChange(env realtime.Envelope) {
	zc, ok := env.Payload.(*realtime.ZoneChange)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, exists := s.users[zc.UserID]
	if !exists {
		// Zone association without position data is not worth a
		// placeholder; the next location_update or seed will create the
		// entity.
		logging.Debug().Str("user_id", zc.UserID).Msg("zone_change for unknown user, ignoring")
		return
	}
	u.ZoneID = zc.NewZoneID
	u.ZoneName = zc.NewZoneName
}

// Users returns a snapshot of all tracked users, ordered by id.
func (s *UserStore) Users() []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// User returns one user by id.
func (s *UserStore) User(id string) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, false
	}
	return *u, true
}

// Trail returns the snapshot of one user's trail, oldest point first.
func (s *UserStore) Trail(id string) []models.TrailPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trail, ok := s.trails[id]
	if !ok {
		return nil
	}
	return trail.Points()
}

// Count returns the number of tracked users.
func (s *UserStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
