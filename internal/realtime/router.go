// Meshboard - Mesh Network Operations Console
// Copyright 2026 Meshboard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meshlabs/meshboard

package realtime

import (
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/meshlabs/meshboard/internal/logging"
	"github.com/meshlabs/meshboard/internal/metrics"
)

// Router turns raw push frames into typed envelopes and dispatches them to
// the registry. One invocation per frame; malformed frames are dropped
// without producing an envelope.
type Router struct {
	registry *Registry

	mu   sync.RWMutex
	seq  uint64
	last *Envelope
}

// NewRouter creates a router dispatching into registry.
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// HandleFrame decodes one inbound frame. On success the envelope becomes
// the router's last message and is dispatched under its kind; unknown
// kinds still produce an observable envelope. On decode failure the frame
// is logged and discarded.
func (r *Router) HandleFrame(data []byte) {
	var wire WireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		metrics.FrameDecodeErrors.Inc()
		logging.Warn().Err(err).Int("bytes", len(data)).Msg("discarding malformed push frame")
		return
	}

	kind, payload, err := decodePayload(wire.Type, wire.Data)
	if err != nil {
		metrics.FrameDecodeErrors.Inc()
		logging.Warn().Err(err).Str("type", wire.Type).Msg("discarding undecodable push payload")
		return
	}

	r.mu.Lock()
	r.seq++
	env := Envelope{
		Kind:       kind,
		Payload:    payload,
		ArrivalSeq: r.seq,
		ReceivedAt: time.Now().UTC(),
	}
	r.last = &env
	r.mu.Unlock()

	metrics.FramesReceived.WithLabelValues(string(kind)).Inc()

	start := time.Now()
	r.registry.Dispatch(env)
	metrics.DispatchDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
}

// LastMessage returns the most recently produced envelope, if any.
func (r *Router) LastMessage() (Envelope, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return Envelope{}, false
	}
	return *r.last, true
}

// ArrivalSeq reports the sequence number of the last envelope produced.
func (r *Router) ArrivalSeq() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seq
}
