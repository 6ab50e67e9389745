// Meshboard - Mesh Network Operations Console
// Copyright 2026 Meshboard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meshlabs/meshboard

package state

import (
	"testing"

	"github.com/goccy/go-json"

	"github.com/meshlabs/meshboard/internal/realtime"
)

func statsEnvelope(kind realtime.Kind, blocks map[string]string) realtime.Envelope {
	payload := make(realtime.StatsPayload, len(blocks))
	for k, v := range blocks {
		payload[k] = json.RawMessage(v)
	}
	return realtime.Envelope{Kind: kind, Payload: payload}
}

func TestStatsStoreShallowMerge(t *testing.T) {
	reg := realtime.NewRegistry()
	store := NewStatsStore()
	store.Attach(reg)
	defer store.Close()

	reg.Dispatch(statsEnvelope(realtime.KindStatisticsUpdate, map[string]string{
		"alert_stats":   `{"critical":2,"warning":5}`,
		"network_stats": `{"nodes":12}`,
	}))
	reg.Dispatch(statsEnvelope(realtime.KindStatisticsUpdate, map[string]string{
		"alert_stats": `{"critical":3}`,
	}))

	got := store.Statistics()
	// Updated key is replaced wholesale: no field-level merge of the old
	// "warning" count into the new block.
	if string(got["alert_stats"]) != `{"critical":3}` {
		t.Errorf("alert_stats = %s, want wholesale replacement", got["alert_stats"])
	}
	// Absent keys stay untouched.
	if string(got["network_stats"]) != `{"nodes":12}` {
		t.Errorf("network_stats = %s, want untouched", got["network_stats"])
	}
}

func TestStatsStoreAnalyticsIsSiblingKeySpace(t *testing.T) {
	reg := realtime.NewRegistry()
	store := NewStatsStore()
	store.Attach(reg)
	defer store.Close()

	reg.Dispatch(statsEnvelope(realtime.KindStatisticsUpdate, map[string]string{
		"summary": `{"source":"stats"}`,
	}))
	reg.Dispatch(statsEnvelope(realtime.KindAnalyticsUpdate, map[string]string{
		"summary": `{"source":"analytics"}`,
	}))

	if got := string(store.Statistics()["summary"]); got != `{"source":"stats"}` {
		t.Errorf("statistics summary = %s, analytics leaked into statistics", got)
	}
	if got := string(store.Analytics()["summary"]); got != `{"source":"analytics"}` {
		t.Errorf("analytics summary = %s", got)
	}
}

func TestStatsStoreSeedThenMerge(t *testing.T) {
	reg := realtime.NewRegistry()
	store := NewStatsStore()
	store.Attach(reg)
	defer store.Close()

	store.Seed(map[string]json.RawMessage{
		"alert_stats":  json.RawMessage(`{"critical":0}`),
		"uptime_stats": json.RawMessage(`{"days":14}`),
	})
	reg.Dispatch(statsEnvelope(realtime.KindStatisticsUpdate, map[string]string{
		"alert_stats": `{"critical":1}`,
	}))

	got := store.Statistics()
	if string(got["alert_stats"]) != `{"critical":1}` {
		t.Errorf("alert_stats = %s, want pushed block over seed", got["alert_stats"])
	}
	if string(got["uptime_stats"]) != `{"days":14}` {
		t.Errorf("uptime_stats = %s, want seed block preserved", got["uptime_stats"])
	}
}

func TestStatsStoreSnapshotIsCopy(t *testing.T) {
	store := NewStatsStore()
	store.Seed(map[string]json.RawMessage{"a": json.RawMessage(`1`)})

	snap := store.Statistics()
	snap["a"] = json.RawMessage(`2`)
	snap["b"] = json.RawMessage(`3`)

	got := store.Statistics()
	if string(got["a"]) != `1` {
		t.Errorf("a = %s, want 1", got["a"])
	}
	if _, ok := got["b"]; ok {
		t.Error("store mutated through snapshot")
	}
}
