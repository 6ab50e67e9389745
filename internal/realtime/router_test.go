// Meshboard - Mesh Network Operations Console
// Copyright 2026 Meshboard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meshlabs/meshboard

package realtime

import (
	"testing"

	"github.com/meshlabs/meshboard/internal/models"
)

func TestHandleFrameDispatchesTypedPayload(t *testing.T) {
	reg := NewRegistry()
	router := NewRouter(reg)

	var got *LocationUpdate
	reg.Subscribe(KindLocationUpdate, func(env Envelope) {
		got = env.Payload.(*LocationUpdate)
	})

	frame := []byte(`{"type":"location_update","data":{"user_id":"u1","latitude":52.5,"longitude":13.4,"altitude":34.0,"moving":true,"timestamp":"2026-08-23T10:00:00Z"}}`)
	router.HandleFrame(frame)

	if got == nil {
		t.Fatal("location_update subscriber not invoked")
	}
	if got.UserID != "u1" || got.Latitude != 52.5 || got.Longitude != 13.4 || !got.Moving {
		t.Errorf("decoded payload = %+v", got)
	}
}

func TestHandleFrameMalformedIsDropped(t *testing.T) {
	reg := NewRegistry()
	router := NewRouter(reg)

	var calls int
	reg.Subscribe(KindNewAlert, func(Envelope) { calls++ })

	router.HandleFrame([]byte(`{not json`))

	if calls != 0 {
		t.Errorf("subscriber invoked %d times for malformed frame, want 0", calls)
	}
	if _, ok := router.LastMessage(); ok {
		t.Error("malformed frame produced a last message")
	}
	if router.ArrivalSeq() != 0 {
		t.Errorf("arrivalSeq = %d after malformed frame, want 0", router.ArrivalSeq())
	}
}

func TestHandleFrameUnknownKindIsInertButObservable(t *testing.T) {
	reg := NewRegistry()
	router := NewRouter(reg)

	var calls int
	for _, k := range []Kind{KindNewAlert, KindLocationUpdate, KindZoneUpdate} {
		reg.Subscribe(k, func(Envelope) { calls++ })
	}

	router.HandleFrame([]byte(`{"type":"firmware_rollout","data":{"version":"2.1.0"}}`))

	if calls != 0 {
		t.Errorf("unknown kind invoked %d subscribers, want 0", calls)
	}
	last, ok := router.LastMessage()
	if !ok {
		t.Fatal("unknown kind did not update last message")
	}
	if last.Kind != KindUnknown {
		t.Errorf("last message kind = %s, want unknown", last.Kind)
	}
	unknown := last.Payload.(*UnknownPayload)
	if unknown.Type != "firmware_rollout" {
		t.Errorf("unknown payload type = %s", unknown.Type)
	}
}

func TestArrivalSeqMonotonic(t *testing.T) {
	reg := NewRegistry()
	router := NewRouter(reg)

	var seqs []uint64
	reg.Subscribe(KindNewAlert, func(env Envelope) {
		seqs = append(seqs, env.ArrivalSeq)
	})

	router.HandleFrame([]byte(`{"type":"new_alert","data":{"id":"a1"}}`))
	router.HandleFrame([]byte(`{"type":"bogus`)) // dropped, must not consume a seq
	router.HandleFrame([]byte(`{"type":"new_alert","data":{"id":"a2"}}`))

	if len(seqs) != 2 || seqs[0] != 1 || seqs[1] != 2 {
		t.Errorf("arrival seqs = %v, want [1 2]", seqs)
	}
}

func TestDecodePayloadShapes(t *testing.T) {
	tests := []struct {
		name    string
		msgType string
		data    string
		check   func(t *testing.T, kind Kind, payload any)
	}{
		{
			name:    "new_alert",
			msgType: "new_alert",
			data:    `{"id":"a1","user_id":"u1","severity":"critical","kind":"geofence","text":"left zone","acknowledged":false,"timestamp":"2026-08-23T10:00:00Z"}`,
			check: func(t *testing.T, kind Kind, payload any) {
				a := payload.(*models.Alert)
				if a.ID != "a1" || a.Severity != "critical" || a.Acknowledged {
					t.Errorf("alert = %+v", a)
				}
			},
		},
		{
			name:    "new_message",
			msgType: "new_message",
			data:    `{"id":"m1","sender_id":"u1","receiver_id":"console","text":"ack","direction":"inbound","timestamp":"2026-08-23T10:00:00Z"}`,
			check: func(t *testing.T, kind Kind, payload any) {
				m := payload.(*models.Message)
				if m.SenderID != "u1" || m.Direction != "inbound" {
					t.Errorf("message = %+v", m)
				}
			},
		},
		{
			name:    "zone_update delete carries only id",
			msgType: "zone_update",
			data:    `{"action":"delete","zone_id":"z9"}`,
			check: func(t *testing.T, kind Kind, payload any) {
				z := payload.(*ZoneUpdate)
				if z.Action != ZoneActionDelete || z.TargetZoneID() != "z9" {
					t.Errorf("zone update = %+v", z)
				}
			},
		},
		{
			name:    "zone_update create carries zone",
			msgType: "zone_update",
			data:    `{"action":"create","zone":{"id":"z1","name":"Depot","color":"#ff0000"}}`,
			check: func(t *testing.T, kind Kind, payload any) {
				z := payload.(*ZoneUpdate)
				if z.Action != ZoneActionCreate || z.Zone == nil || z.TargetZoneID() != "z1" {
					t.Errorf("zone update = %+v", z)
				}
			},
		},
		{
			name:    "statistics_update keeps blocks raw",
			msgType: "statistics_update",
			data:    `{"alert_stats":{"total":5},"node_stats":{"online":12}}`,
			check: func(t *testing.T, kind Kind, payload any) {
				p := payload.(StatsPayload)
				if len(p) != 2 {
					t.Errorf("stats payload keys = %d, want 2", len(p))
				}
				if _, ok := p["alert_stats"]; !ok {
					t.Error("missing alert_stats block")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, payload, err := decodePayload(tt.msgType, []byte(tt.data))
			if err != nil {
				t.Fatalf("decodePayload: %v", err)
			}
			tt.check(t, kind, payload)
		})
	}
}
