// Meshboard - Mesh Network Operations Console
// Copyright 2026 Meshboard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meshlabs/meshboard

package realtime

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/meshlabs/meshboard/internal/models"
)

// Kind identifies the event type of an inbound push frame.
//
// The set of kinds the backend emits is closed; anything else decodes to
// KindUnknown so new server-side kinds flow through without breaking
// existing consumers.
type Kind string

const (
	KindStatisticsUpdate Kind = "statistics_update"
	KindAnalyticsUpdate  Kind = "analytics_update"
	KindNewAlert         Kind = "new_alert"
	KindNewMessage       Kind = "new_message"
	KindLocationUpdate   Kind = "location_update"
	KindZoneChange       Kind = "zone_change"
	KindZoneUpdate       Kind = "zone_update"
	KindUnknown          Kind = "unknown"
)

// Outbound control message types.
const (
	TypeSubscribeUser  = "subscribe_user"
	TypeSubscribeZone  = "subscribe_zone"
	TypeLocationReport = "location_update"
)

// WireMessage is the envelope used in both directions on the push channel.
type WireMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Envelope is the decoded unit produced from one inbound frame. Immutable
// after creation.
type Envelope struct {
	// Kind is the decoded event kind; KindUnknown for unrecognized types.
	Kind Kind

	// Payload holds the typed payload for the kind: *LocationUpdate,
	// *ZoneChange, *ZoneUpdate, *models.Alert, *models.Message,
	// StatsPayload, or *UnknownPayload.
	Payload any

	// ArrivalSeq is a monotonic total order over all envelopes produced
	// by one router.
	ArrivalSeq uint64

	// ReceivedAt is the local time the frame was decoded.
	ReceivedAt time.Time
}

// LocationUpdate patches a user's position fields and extends their trail.
type LocationUpdate struct {
	UserID    string    `json:"user_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude"`
	Moving    bool      `json:"moving"`
	Timestamp time.Time `json:"timestamp"`
}

// ZoneChange patches a user's current-zone association.
type ZoneChange struct {
	UserID      string `json:"user_id"`
	NewZoneID   string `json:"new_zone_id"`
	NewZoneName string `json:"new_zone_name"`
}

// ZoneAction discriminates zone_update payloads.
type ZoneAction string

const (
	ZoneActionCreate ZoneAction = "create"
	ZoneActionUpdate ZoneAction = "update"
	ZoneActionDelete ZoneAction = "delete"
)

// ZoneUpdate carries a zone CRUD notification. Zone is set for create and
// update; delete carries only ZoneID.
type ZoneUpdate struct {
	Action ZoneAction   `json:"action"`
	Zone   *models.Zone `json:"zone,omitempty"`
	ZoneID string       `json:"zone_id,omitempty"`
}

// TargetZoneID returns the id the update applies to regardless of shape.
func (z *ZoneUpdate) TargetZoneID() string {
	if z.Zone != nil {
		return z.Zone.ID
	}
	return z.ZoneID
}

// StatsPayload is a statistics_update or analytics_update body: complete
// stat blocks keyed by domain. Blocks stay raw; the reconciler replaces
// them wholesale by top-level key.
type StatsPayload map[string]json.RawMessage

// UnknownPayload preserves a frame whose type has no decoder.
type UnknownPayload struct {
	Type string
	Data json.RawMessage
}

// SubscribeUser restores server-side routing for a console user after a
// (re)connect.
type SubscribeUser struct {
	UserID string `json:"user_id"`
}

// SubscribeZone requests push events scoped to one zone.
type SubscribeZone struct {
	ZoneID string `json:"zone_id"`
}

// LocationReport is a client-originated position report.
type LocationReport struct {
	UserID    string    `json:"user_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude"`
	Timestamp time.Time `json:"timestamp"`
}

// decodePayload performs the exhaustive kind match. Every recognized kind
// has exactly one payload shape; unrecognized types fall through to
// UnknownPayload rather than erroring.
func decodePayload(msgType string, data json.RawMessage) (Kind, any, error) {
	switch Kind(msgType) {
	case KindStatisticsUpdate, KindAnalyticsUpdate:
		var p StatsPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return "", nil, fmt.Errorf("decode %s: %w", msgType, err)
		}
		return Kind(msgType), p, nil

	case KindNewAlert:
		var a models.Alert
		if err := json.Unmarshal(data, &a); err != nil {
			return "", nil, fmt.Errorf("decode new_alert: %w", err)
		}
		return KindNewAlert, &a, nil

	case KindNewMessage:
		var m models.Message
		if err := json.Unmarshal(data, &m); err != nil {
			return "", nil, fmt.Errorf("decode new_message: %w", err)
		}
		return KindNewMessage, &m, nil

	case KindLocationUpdate:
		var l LocationUpdate
		if err := json.Unmarshal(data, &l); err != nil {
			return "", nil, fmt.Errorf("decode location_update: %w", err)
		}
		return KindLocationUpdate, &l, nil

	case KindZoneChange:
		var z ZoneChange
		if err := json.Unmarshal(data, &z); err != nil {
			return "", nil, fmt.Errorf("decode zone_change: %w", err)
		}
		return KindZoneChange, &z, nil

	case KindZoneUpdate:
		var z ZoneUpdate
		if err := json.Unmarshal(data, &z); err != nil {
			return "", nil, fmt.Errorf("decode zone_update: %w", err)
		}
		return KindZoneUpdate, &z, nil

	case KindUnknown:
		// The backend never emits "unknown"; treat it like any other
		// unrecognized type.
		fallthrough
	default:
		return KindUnknown, &UnknownPayload{Type: msgType, Data: data}, nil
	}
}
