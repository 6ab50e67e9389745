// Meshboard - Mesh Network Operations Console
// Copyright 2026 Meshboard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meshlabs/meshboard

package realtime

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

// pushServer is a minimal mesh-backend push endpoint for tests.
type pushServer struct {
	*httptest.Server

	mu       sync.Mutex
	conns    []*websocket.Conn
	received [][]byte
}

func newPushServer(t *testing.T) *pushServer {
	t.Helper()
	ps := &pushServer{}
	upgrader := websocket.Upgrader{}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ps.mu.Lock()
		ps.conns = append(ps.conns, conn)
		ps.mu.Unlock()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			ps.mu.Lock()
			ps.received = append(ps.received, data)
			ps.mu.Unlock()
		}
	}))
	t.Cleanup(ps.Close)
	return ps
}

func (ps *pushServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ps.URL, "http")
}

func (ps *pushServer) connCount() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.conns)
}

func (ps *pushServer) lastConn() *websocket.Conn {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if len(ps.conns) == 0 {
		return nil
	}
	return ps.conns[len(ps.conns)-1]
}

func (ps *pushServer) receivedMessages() [][]byte {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make([][]byte, len(ps.received))
	copy(out, ps.received)
	return out
}

func TestBuildPushURL(t *testing.T) {
	tests := []struct {
		base string
		path string
		want string
	}{
		{"http://mesh.example.com:8080", "/ws", "ws://mesh.example.com:8080/ws"},
		{"https://mesh.example.com", "/ws", "wss://mesh.example.com/ws"},
	}
	for _, tt := range tests {
		got, err := BuildPushURL(tt.base, tt.path)
		if err != nil {
			t.Fatalf("BuildPushURL(%q): %v", tt.base, err)
		}
		if got != tt.want {
			t.Errorf("BuildPushURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestSessionOpensAndReplaysSubscription(t *testing.T) {
	ps := newPushServer(t)
	reg := NewRegistry()
	router := NewRouter(reg)

	sess := NewSession(SessionConfig{
		URL:         ps.wsURL(),
		UserID:      "operator-1",
		MaxAttempts: 5,
		RetryDelay:  20 * time.Millisecond,
	}, router)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sess.Serve(ctx) }()

	waitFor(t, 2*time.Second, sess.IsConnected, "session open")

	waitFor(t, 2*time.Second, func() bool { return len(ps.receivedMessages()) >= 1 }, "subscribe_user replay")
	var wire WireMessage
	if err := json.Unmarshal(ps.receivedMessages()[0], &wire); err != nil {
		t.Fatalf("unmarshal control message: %v", err)
	}
	if wire.Type != TypeSubscribeUser {
		t.Errorf("first control message type = %q, want subscribe_user", wire.Type)
	}
	var sub SubscribeUser
	if err := json.Unmarshal(wire.Data, &sub); err != nil {
		t.Fatalf("unmarshal subscribe_user: %v", err)
	}
	if sub.UserID != "operator-1" {
		t.Errorf("subscribe_user user_id = %q", sub.UserID)
	}
	if got := sess.Attempt(); got != 0 {
		t.Errorf("attempt after open = %d, want 0", got)
	}
}

func TestSessionDispatchesInboundFrames(t *testing.T) {
	ps := newPushServer(t)
	reg := NewRegistry()
	router := NewRouter(reg)

	var gotUser atomic.Value
	reg.Subscribe(KindLocationUpdate, func(env Envelope) {
		gotUser.Store(env.Payload.(*LocationUpdate).UserID)
	})

	sess := NewSession(SessionConfig{URL: ps.wsURL()}, router)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sess.Serve(ctx) }()

	waitFor(t, 2*time.Second, sess.IsConnected, "session open")

	frame := `{"type":"location_update","data":{"user_id":"u7","latitude":1,"longitude":2}}`
	if err := ps.lastConn().WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("server write: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return gotUser.Load() != nil }, "frame dispatch")
	if gotUser.Load().(string) != "u7" {
		t.Errorf("dispatched user_id = %v, want u7", gotUser.Load())
	}
}

func TestSessionReconnectsAfterClose(t *testing.T) {
	ps := newPushServer(t)
	reg := NewRegistry()
	router := NewRouter(reg)

	var flips []bool
	var flipMu sync.Mutex
	sess := NewSession(SessionConfig{
		URL:         ps.wsURL(),
		UserID:      "operator-1",
		MaxAttempts: 5,
		RetryDelay:  20 * time.Millisecond,
		OnConnectionChange: func(connected bool) {
			flipMu.Lock()
			flips = append(flips, connected)
			flipMu.Unlock()
		},
	}, router)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sess.Serve(ctx) }()

	waitFor(t, 2*time.Second, sess.IsConnected, "first open")

	// Server drops the connection; the session must redial and replay the
	// subscription on the new transport.
	_ = ps.lastConn().Close()
	waitFor(t, 2*time.Second, func() bool { return ps.connCount() >= 2 }, "reconnect")
	waitFor(t, 2*time.Second, sess.IsConnected, "second open")

	waitFor(t, 2*time.Second, func() bool { return len(ps.receivedMessages()) >= 2 }, "subscription replay after reconnect")

	if got := sess.Attempt(); got != 0 {
		t.Errorf("attempt after successful reconnect = %d, want 0", got)
	}

	flipMu.Lock()
	defer flipMu.Unlock()
	if len(flips) < 3 || !flips[0] || flips[1] || !flips[2] {
		t.Errorf("connectivity flips = %v, want [true false true ...]", flips)
	}
}

// TestSessionRetryBudgetExhaustion covers the six-failures scenario: with
// no successful open in between, the session schedules exactly MaxAttempts
// retries and then parks in Failed.
func TestSessionRetryBudgetExhaustion(t *testing.T) {
	// Reserve an address and close the listener so every dial is refused.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	_ = l.Close()

	reg := NewRegistry()
	router := NewRouter(reg)

	var becameConnected atomic.Bool
	sess := NewSession(SessionConfig{
		URL:         "ws://" + addr + "/ws",
		MaxAttempts: 5,
		RetryDelay:  10 * time.Millisecond,
		OnConnectionChange: func(connected bool) {
			if connected {
				becameConnected.Store(true)
			}
		},
	}, router)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sess.Serve(ctx) }()

	waitFor(t, 5*time.Second, func() bool { return sess.State() == StateFailed }, "session failed")

	if got := sess.Attempt(); got != 5 {
		t.Errorf("attempts consumed = %d, want 5", got)
	}
	if becameConnected.Load() {
		t.Error("connectivity signal reported connected during pure-failure run")
	}
	if sess.IsConnected() {
		t.Error("session reports connected in Failed state")
	}

	// No further retries: the state must stay Failed.
	time.Sleep(100 * time.Millisecond)
	if sess.State() != StateFailed {
		t.Errorf("state after exhaustion = %s, want failed", sess.State())
	}
}

func TestSessionManualConnectRecoversFromFailed(t *testing.T) {
	// Backend that refuses upgrades until "repaired".
	var accepting atomic.Bool
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !accepting.Load() {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	reg := NewRegistry()
	sess := NewSession(SessionConfig{
		URL:         "ws" + strings.TrimPrefix(srv.URL, "http"),
		MaxAttempts: 2,
		RetryDelay:  10 * time.Millisecond,
	}, NewRouter(reg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sess.Serve(ctx) }()

	waitFor(t, 5*time.Second, func() bool { return sess.State() == StateFailed }, "session failed")

	// Backend comes back; recovery needs an explicit Connect.
	accepting.Store(true)
	sess.Connect()
	waitFor(t, 2*time.Second, sess.IsConnected, "open after manual connect")
}

func TestSessionDisconnectGoesIdle(t *testing.T) {
	ps := newPushServer(t)
	reg := NewRegistry()
	sess := NewSession(SessionConfig{URL: ps.wsURL()}, NewRouter(reg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sess.Serve(ctx) }()

	waitFor(t, 2*time.Second, sess.IsConnected, "session open")

	sess.Disconnect()
	waitFor(t, 2*time.Second, func() bool { return sess.State() == StateIdle }, "idle after disconnect")

	if got := sess.Attempt(); got != 0 {
		t.Errorf("attempt after disconnect = %d, want 0", got)
	}
}

func TestSendWhileNotOpenIsDropped(t *testing.T) {
	reg := NewRegistry()
	sess := NewSession(SessionConfig{URL: "ws://127.0.0.1:1/ws"}, NewRouter(reg))

	// Session never ran; Send must neither panic nor block.
	sess.Send(TypeSubscribeZone, SubscribeZone{ZoneID: "z1"})

	if sess.State() != StateIdle {
		t.Errorf("state after dropped send = %s, want idle", sess.State())
	}
}
