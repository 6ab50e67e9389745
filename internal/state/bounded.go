// Meshboard - Mesh Network Operations Console
// Copyright 2026 Meshboard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meshlabs/meshboard

// Package state holds the reconcilers: per-feature subscribers that fold
// push envelopes into bounded in-memory collections seeded from the REST
// API. Each store owns its collection exclusively; the HTTP surface and
// the browser hub only read snapshots.
package state

import (
	"github.com/meshlabs/meshboard/internal/metrics"
	"github.com/meshlabs/meshboard/internal/models"
)

// Feed is a newest-first bounded sequence. Prepending beyond capacity
// evicts from the tail, so the feed always holds the most recent items.
// Feed is not safe for concurrent use; owning stores serialize access.
type Feed[T any] struct {
	name     string
	capacity int
	items    []T
}

// NewFeed creates a feed with the given capacity. The name labels the
// eviction metric.
func NewFeed[T any](name string, capacity int) *Feed[T] {
	return &Feed[T]{
		name:     name,
		capacity: capacity,
		items:    make([]T, 0, capacity),
	}
}

// Prepend inserts item at the front, evicting the oldest entry when the
// feed is full. The capacity bound holds after every call.
func (f *Feed[T]) Prepend(item T) {
	if len(f.items) < f.capacity {
		f.items = append(f.items, item)
	} else {
		metrics.FeedEvictions.WithLabelValues(f.name).Inc()
	}
	copy(f.items[1:], f.items)
	f.items[0] = item
}

// Items returns a snapshot copy, newest first.
func (f *Feed[T]) Items() []T {
	out := make([]T, len(f.items))
	copy(out, f.items)
	return out
}

// Len returns the current number of items.
func (f *Feed[T]) Len() int {
	return len(f.items)
}

// Replace resets the feed contents from a newest-first slice, truncating
// at capacity.
func (f *Feed[T]) Replace(items []T) {
	n := len(items)
	if n > f.capacity {
		n = f.capacity
	}
	f.items = f.items[:0]
	f.items = append(f.items, items[:n]...)
}

// Trail is the bounded position history of one user: append-newest with
// FIFO eviction of the oldest point once capacity is reached.
type Trail struct {
	capacity int
	points   []models.TrailPoint
}

// NewTrail creates a trail with the given capacity.
func NewTrail(capacity int) *Trail {
	return &Trail{capacity: capacity, points: make([]models.TrailPoint, 0, capacity)}
}

// Append adds a point, evicting the oldest when full.
func (t *Trail) Append(p models.TrailPoint) {
	if len(t.points) == t.capacity {
		copy(t.points, t.points[1:])
		t.points[len(t.points)-1] = p
		return
	}
	t.points = append(t.points, p)
}

// Points returns a snapshot copy in arrival order, oldest first.
func (t *Trail) Points() []models.TrailPoint {
	out := make([]models.TrailPoint, len(t.points))
	copy(out, t.points)
	return out
}

// Len returns the current number of points.
func (t *Trail) Len() int {
	return len(t.points)
}
