// Meshboard - Mesh Network Operations Console
// Copyright 2026 Meshboard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meshlabs/meshboard

// Package realtime implements the push-channel core: the Session owning
// the single WebSocket connection to the mesh backend, the Router that
// turns inbound frames into typed envelopes, and the Registry that fans
// envelopes out to per-feature subscribers.
//
// Data flow:
//
//	Session -> raw frames -> Router -> Envelope -> Registry -> subscribers
//
// Everything downstream of the Session runs synchronously on its event
// loop, in frame arrival order. Subscribers own their state exclusively
// and therefore need no locking against each other; state read from other
// goroutines (the HTTP surface) is the subscriber's own concern.
//
// Failure handling is local: malformed frames are dropped, a transport
// close is answered with at most MaxAttempts fixed-delay reconnects, and
// after exhaustion the session stays Failed until Connect is called again.
// Consumers observe only the connectivity signal and the reconciled state.
package realtime
