// Meshboard - Mesh Network Operations Console
// Copyright 2026 Meshboard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meshlabs/meshboard

package state

import (
	"fmt"
	"testing"

	"github.com/meshlabs/meshboard/internal/models"
	"github.com/meshlabs/meshboard/internal/realtime"
)

func alertEnvelope(a models.Alert) realtime.Envelope {
	return realtime.Envelope{Kind: realtime.KindNewAlert, Payload: &a}
}

func messageEnvelope(m models.Message) realtime.Envelope {
	return realtime.Envelope{Kind: realtime.KindNewMessage, Payload: &m}
}

func TestAlertFeedNewestFirstWithCounters(t *testing.T) {
	reg := realtime.NewRegistry()
	feed := NewAlertFeed(50)
	feed.Attach(reg)
	defer feed.Close()

	reg.Dispatch(alertEnvelope(models.Alert{ID: "A", Severity: "info"}))
	reg.Dispatch(alertEnvelope(models.Alert{ID: "B", Severity: "warning"}))
	reg.Dispatch(alertEnvelope(models.Alert{ID: "C", Severity: "critical"}))

	alerts := feed.Alerts()
	if len(alerts) != 3 {
		t.Fatalf("len = %d, want 3", len(alerts))
	}
	for i, want := range []string{"C", "B", "A"} {
		if alerts[i].ID != want {
			t.Errorf("alerts[%d].ID = %q, want %q", i, alerts[i].ID, want)
		}
	}

	total, unacked := feed.Counters()
	if total != 3 || unacked != 3 {
		t.Errorf("counters = (%d, %d), want (3, 3)", total, unacked)
	}
}

func TestAlertFeedCountersSurviveEviction(t *testing.T) {
	reg := realtime.NewRegistry()
	feed := NewAlertFeed(5)
	feed.Attach(reg)
	defer feed.Close()

	for i := 0; i < 8; i++ {
		reg.Dispatch(alertEnvelope(models.Alert{ID: fmt.Sprintf("a-%d", i), Acknowledged: i%2 == 0}))
	}

	if got := len(feed.Alerts()); got != 5 {
		t.Errorf("feed length = %d, want 5", got)
	}
	total, unacked := feed.Counters()
	if total != 8 {
		t.Errorf("total = %d, want 8 (counter tracks beyond capacity)", total)
	}
	if unacked != 4 {
		t.Errorf("unacknowledged = %d, want 4", unacked)
	}
}

func TestAlertFeedSeedInitializesCounters(t *testing.T) {
	feed := NewAlertFeed(50)
	feed.Seed([]models.Alert{
		{ID: "s1", Acknowledged: true},
		{ID: "s2"},
		{ID: "s3"},
	})

	total, unacked := feed.Counters()
	if total != 3 || unacked != 2 {
		t.Errorf("counters = (%d, %d), want (3, 2)", total, unacked)
	}
	if alerts := feed.Alerts(); alerts[0].ID != "s1" {
		t.Errorf("alerts[0].ID = %q, want seed order preserved", alerts[0].ID)
	}
}

func TestMessageFeedNewestFirstWithTotal(t *testing.T) {
	reg := realtime.NewRegistry()
	feed := NewMessageFeed(50)
	feed.Attach(reg)
	defer feed.Close()

	reg.Dispatch(messageEnvelope(models.Message{ID: "m1", Text: "ping"}))
	reg.Dispatch(messageEnvelope(models.Message{ID: "m2", Text: "pong"}))

	msgs := feed.Messages()
	if len(msgs) != 2 || msgs[0].ID != "m2" || msgs[1].ID != "m1" {
		t.Errorf("messages = %+v, want [m2 m1]", msgs)
	}
	if feed.Total() != 2 {
		t.Errorf("total = %d, want 2", feed.Total())
	}
}

func TestMessageFeedBounded(t *testing.T) {
	reg := realtime.NewRegistry()
	feed := NewMessageFeed(3)
	feed.Attach(reg)
	defer feed.Close()

	for i := 0; i < 6; i++ {
		reg.Dispatch(messageEnvelope(models.Message{ID: fmt.Sprintf("m-%d", i)}))
	}

	msgs := feed.Messages()
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}
	for i, want := range []string{"m-5", "m-4", "m-3"} {
		if msgs[i].ID != want {
			t.Errorf("messages[%d].ID = %q, want %q", i, msgs[i].ID, want)
		}
	}
	if feed.Total() != 6 {
		t.Errorf("total = %d, want 6", feed.Total())
	}
}
