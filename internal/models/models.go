// Meshboard - Mesh Network Operations Console
// Copyright 2026 Meshboard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meshlabs/meshboard

// Package models defines the entities shared between the REST seeding
// client, the push-event reconcilers, and the HTTP surface.
//
// The field names and types match the mesh backend's REST resource shapes;
// push events carry the same fields (fully or partially) and must merge
// field-for-field onto the REST-seeded baseline.
package models

import "time"

// User is a tracked mesh node (bot or operator device) on the map.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude"`
	Moving    bool      `json:"moving"`
	Online    bool      `json:"online"`
	LastSeen  time.Time `json:"last_seen"`
	ZoneID    string    `json:"zone_id"`
	ZoneName  string    `json:"zone_name"`
}

// TrailPoint is one position sample in a user's movement history.
type TrailPoint struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// LatLon is a polygon vertex.
type LatLon struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Zone is a named geographic region users can enter and leave.
type Zone struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Vertices  []LatLon  `json:"vertices"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// Alert is a platform-generated notification (geofence breach, node
// offline, trigger fired).
type Alert struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Severity     string    `json:"severity"`
	Kind         string    `json:"kind"`
	Text         string    `json:"text"`
	Acknowledged bool      `json:"acknowledged"`
	Timestamp    time.Time `json:"timestamp"`
}

// Message is a chat or command message exchanged with a node.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Text       string    `json:"text"`
	Direction  string    `json:"direction"`
	Timestamp  time.Time `json:"timestamp"`
}
