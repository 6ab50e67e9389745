// Meshboard - Mesh Network Operations Console
// Copyright 2026 Meshboard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meshlabs/meshboard

package websocket

import (
	"github.com/meshlabs/meshboard/internal/realtime"
)

// rebroadcastKinds are the event kinds forwarded to the browser as-is,
// after the reconcilers have already folded them into the stores.
var rebroadcastKinds = []realtime.Kind{
	realtime.KindStatisticsUpdate,
	realtime.KindAnalyticsUpdate,
	realtime.KindNewAlert,
	realtime.KindNewMessage,
	realtime.KindLocationUpdate,
	realtime.KindZoneChange,
	realtime.KindZoneUpdate,
}

// Bridge forwards decoded push events and connectivity flips from the
// realtime core to the browser hub.
type Bridge struct {
	hub    *Hub
	unsubs []func()
}

// NewBridge creates a bridge over the given hub.
func NewBridge(hub *Hub) *Bridge {
	return &Bridge{hub: hub}
}

// Attach subscribes the bridge to every re-broadcast kind. Subscriptions
// run after the reconcilers', which registered first at wiring time, so
// the browser never sees an event before the stores reflect it.
func (b *Bridge) Attach(reg *realtime.Registry) {
	for _, kind := range rebroadcastKinds {
		k := kind
		b.unsubs = append(b.unsubs, reg.Subscribe(k, func(env realtime.Envelope) {
			b.hub.Broadcast(string(k), env.Payload)
		}))
	}
}

// Close releases the bridge's registry subscriptions.
func (b *Bridge) Close() {
	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
}

// ConnectionStatus is the payload of connection_status hub messages.
type ConnectionStatus struct {
	Connected bool `json:"connected"`
}

// ConnectionChanged broadcasts a connectivity flip of the backend push
// channel. Wired as the session's OnConnectionChange callback.
func (b *Bridge) ConnectionChanged(connected bool) {
	b.hub.Broadcast(MessageTypeConnectionStatus, ConnectionStatus{Connected: connected})
}
