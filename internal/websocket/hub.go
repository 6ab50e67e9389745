// Meshboard - Mesh Network Operations Console
// Copyright 2026 Meshboard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meshlabs/meshboard

// Package websocket is the browser-facing fan-out hub. Reconciled updates
// and connectivity flips are re-broadcast to every connected console tab
// as {type, data} JSON messages.
package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/meshlabs/meshboard/internal/logging"
	"github.com/meshlabs/meshboard/internal/metrics"
)

// Browser-bound message types beyond the re-broadcast event kinds.
const (
	MessageTypePing             = "ping"
	MessageTypePong             = "pong"
	MessageTypeConnectionStatus = "connection_status"
)

// Message is one browser-bound frame. ID is a correlation id for tracing
// a broadcast across logs and clients.
type Message struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub maintains the set of connected browser clients and fans broadcasts
// out to all of them. A slow client whose buffer fills is disconnected
// rather than allowed to stall the rest.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub ready to Serve.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Serve runs the hub loop until ctx is canceled; it implements
// suture.Service. Client lifecycle events are drained before broadcasts
// so registration state is consistent when a message fans out.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		// Lifecycle first, non-blocking.
		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// String names the hub in supervisor logs.
func (h *Hub) String() string { return "browser-hub" }

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	metrics.HubClients.Set(float64(count))
	logging.Info().Int("total_clients", count).Msg("browser client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	metrics.HubClients.Set(float64(count))
	logging.Info().Int("total_clients", count).Msg("browser client disconnected")
}

// broadcastToClients fans one message out in client-id order. Clients
// whose send buffer is full are dropped.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		logging.Warn().Uint64("client_id", client.id).Msg("dropping slow browser client")
	}
	if len(toRemove) > 0 {
		metrics.HubClients.Set(float64(len(h.clients)))
	}
}

// shutdown closes every client before the hub loop returns, so a
// supervisor restart never inherits orphaned connections.
func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	closed := len(h.clients)
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	metrics.HubClients.Set(0)
	logging.Info().
		Str("component", "browser-hub").
		AnErr("reason", ctx.Err()).
		Int("clients_closed", closed).
		Msg("browser hub stopped")
}

// Broadcast queues a {type, data} message for fan-out, tagging it with a
// fresh correlation id. Non-blocking: when the hub loop is saturated the
// message is dropped and counted.
func (h *Hub) Broadcast(messageType string, data any) {
	message := Message{
		ID:   uuid.NewString(),
		Type: messageType,
		Data: data,
	}

	select {
	case h.broadcast <- message:
	default:
		metrics.HubDroppedBroadcasts.Inc()
		logging.Warn().Str("message_type", messageType).Msg("broadcast channel full, dropping message")
	}
}

// ClientCount returns the number of connected browser clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
