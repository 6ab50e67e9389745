// Meshboard - Mesh Network Operations Console
// Copyright 2026 Meshboard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meshlabs/meshboard

package realtime

import (
	"sync"

	"github.com/meshlabs/meshboard/internal/logging"
	"github.com/meshlabs/meshboard/internal/metrics"
)

// Handler consumes one envelope. Handlers run synchronously on the
// session's event loop; they must not block.
type Handler func(Envelope)

type subscription struct {
	id uint64
	fn Handler
}

// Registry is the keyed multi-subscriber table between the message router
// and the reconcilers. Subscribers for a kind are invoked in registration
// order; a panicking subscriber does not prevent delivery to the rest.
type Registry struct {
	mu     sync.Mutex
	subs   map[Kind][]subscription
	nextID uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[Kind][]subscription)}
}

// Subscribe appends fn to the ordered subscriber list for kind and returns
// the deregistration capability. Invoking it removes exactly the entry it
// was returned for; a second invocation is a no-op.
func (r *Registry) Subscribe(kind Kind, fn Handler) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.subs[kind] = append(r.subs[kind], subscription{id: id, fn: fn})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		list := r.subs[kind]
		for i := range list {
			if list[i].id == id {
				r.subs[kind] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Dispatch invokes every subscriber currently registered for env.Kind, in
// registration order. Zero subscribers is valid and does nothing.
func (r *Registry) Dispatch(env Envelope) {
	r.mu.Lock()
	list := make([]subscription, len(r.subs[env.Kind]))
	copy(list, r.subs[env.Kind])
	r.mu.Unlock()

	for i := range list {
		r.invoke(list[i].fn, env)
	}
}

// invoke isolates subscriber failures: a panic is recovered and logged so
// later subscribers for the same kind still run.
func (r *Registry) invoke(fn Handler, env Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.SubscriberPanics.WithLabelValues(string(env.Kind)).Inc()
			logging.Error().
				Str("kind", string(env.Kind)).
				Uint64("arrival_seq", env.ArrivalSeq).
				Interface("panic", rec).
				Msg("event subscriber panicked")
		}
	}()
	fn(env)
}

// SubscriberCount reports the current number of subscribers for a kind.
func (r *Registry) SubscriberCount(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[kind])
}
