// Meshboard - Mesh Network Operations Console
// Copyright 2026 Meshboard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meshlabs/meshboard

package state

import (
	"sync"

	"github.com/meshlabs/meshboard/internal/models"
	"github.com/meshlabs/meshboard/internal/realtime"
)

// AlertFeed reconciles the recent-alert feed: new alerts are prepended to
// a bounded, newest-first list while running counters track totals beyond
// the feed's capacity.
type AlertFeed struct {
	mu             sync.RWMutex
	feed           *Feed[models.Alert]
	total          uint64
	unacknowledged uint64

	unsub func()
}

// NewAlertFeed creates an alert feed with the given capacity.
func NewAlertFeed(capacity int) *AlertFeed {
	return &AlertFeed{feed: NewFeed[models.Alert]("alerts", capacity)}
}

// Attach subscribes the feed to new_alert events.
func (f *AlertFeed) Attach(reg *realtime.Registry) {
	f.unsub = reg.Subscribe(realtime.KindNewAlert, f.apply)
}

// Close releases the registry subscription.
func (f *AlertFeed) Close() {
	if f.unsub != nil {
		f.unsub()
		f.unsub = nil
	}
}

// Seed loads the REST baseline (newest first) and initializes counters
// from it.
func (f *AlertFeed) Seed(alerts []models.Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feed.Replace(alerts)
	f.total = uint64(len(alerts))
	f.unacknowledged = 0
	for _, a := range alerts {
		if !a.Acknowledged {
			f.unacknowledged++
		}
	}
}

func (f *AlertFeed) apply(env realtime.Envelope) {
	alert, ok := env.Payload.(*models.Alert)
	if !ok {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feed.Prepend(*alert)
	f.total++
	if !alert.Acknowledged {
		f.unacknowledged++
	}
}

// Alerts returns a snapshot, newest first.
func (f *AlertFeed) Alerts() []models.Alert {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.feed.Items()
}

// Counters returns the running total and unacknowledged counts.
func (f *AlertFeed) Counters() (total, unacknowledged uint64) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.total, f.unacknowledged
}

// MessageFeed reconciles the recent-message feed, newest first, with a
// running total.
type MessageFeed struct {
	mu    sync.RWMutex
	feed  *Feed[models.Message]
	total uint64

	unsub func()
}

// NewMessageFeed creates a message feed with the given capacity.
func NewMessageFeed(capacity int) *MessageFeed {
	return &MessageFeed{feed: NewFeed[models.Message]("messages", capacity)}
}

// Attach subscribes the feed to new_message events.
func (f *MessageFeed) Attach(reg *realtime.Registry) {
	f.unsub = reg.Subscribe(realtime.KindNewMessage, f.apply)
}

// Close releases the registry subscription.
func (f *MessageFeed) Close() {
	if f.unsub != nil {
		f.unsub()
		f.unsub = nil
	}
}

// Seed loads the REST baseline (newest first).
func (f *MessageFeed) Seed(messages []models.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feed.Replace(messages)
	f.total = uint64(len(messages))
}

func (f *MessageFeed) apply(env realtime.Envelope) {
	msg, ok := env.Payload.(*models.Message)
	if !ok {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feed.Prepend(*msg)
	f.total++
}

// Messages returns a snapshot, newest first.
func (f *MessageFeed) Messages() []models.Message {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.feed.Items()
}

// Total returns the running message count.
func (f *MessageFeed) Total() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.total
}
