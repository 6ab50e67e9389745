// Meshboard - Mesh Network Operations Console
// Copyright 2026 Meshboard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meshlabs/meshboard

package realtime

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/meshlabs/meshboard/internal/logging"
	"github.com/meshlabs/meshboard/internal/metrics"
)

// SessionState enumerates the connection lifecycle. Transitions:
//
//	Idle -> Connecting (Connect)
//	Connecting -> Open (dial success) | ReconnectWaiting | Failed (dial failure)
//	Open -> ReconnectWaiting | Failed (transport close)
//	ReconnectWaiting -> Connecting (retry timer)
//	Failed -> Connecting (explicit Connect only)
//	any -> Idle (Disconnect)
type SessionState string

const (
	StateIdle             SessionState = "idle"
	StateConnecting       SessionState = "connecting"
	StateOpen             SessionState = "open"
	StateReconnectWaiting SessionState = "reconnect_waiting"
	StateFailed           SessionState = "failed"
)

const writeWait = 10 * time.Second

// SessionConfig configures the push-channel session.
type SessionConfig struct {
	// URL is the ws:// or wss:// endpoint of the push channel. Use
	// BuildPushURL to derive it from the backend's HTTP base URL.
	URL string

	// Token, when set, is appended as a query parameter on dial.
	Token string

	// UserID, when set, is replayed as a subscribe_user control message
	// after every successful open so server-side routing state survives
	// reconnects.
	UserID string

	// MaxAttempts bounds reconnects after a close; RetryDelay is the fixed
	// wait between them. Once the budget is spent the session stays Failed
	// until Connect is called again. Retrying forever in the background is
	// deliberately not supported.
	MaxAttempts int
	RetryDelay  time.Duration

	HandshakeTimeout time.Duration

	// OnConnectionChange fires on every Open<->non-Open transition.
	OnConnectionChange func(connected bool)
}

// BuildPushURL converts the backend base URL to the push-channel endpoint,
// using the encrypted variant when the backend itself is served encrypted.
func BuildPushURL(base, path string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse backend url: %w", err)
	}
	scheme := "ws"
	if parsed.Scheme == "https" {
		scheme = "wss"
	}
	return scheme + "://" + parsed.Host + path, nil
}

type command int

const (
	cmdConnect command = iota
	cmdDisconnect
)

type readResult struct {
	data []byte
	err  error
}

// transport owns one live WebSocket connection and its reader goroutine.
type transport struct {
	conn   *websocket.Conn
	frames chan readResult
	done   chan struct{}
}

func (t *transport) readPump() {
	defer close(t.frames)
	for {
		_, data, err := t.conn.ReadMessage()
		select {
		case t.frames <- readResult{data: data, err: err}:
		case <-t.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (t *transport) close() {
	close(t.done)
	_ = t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	_ = t.conn.Close()
}

// Session owns the single push-channel connection to the mesh backend: it
// dials, detects closure, retries on a fixed-delay budget, and feeds every
// inbound frame to the router.
//
// All state transitions, frame dispatch, and the retry timer run on one
// event loop (Serve). Reconcilers therefore execute sequentially and need
// no locking among themselves.
type Session struct {
	cfg    SessionConfig
	router *Router

	mu      sync.RWMutex
	state   SessionState
	attempt int
	conn    *websocket.Conn

	writeMu  sync.Mutex
	commands chan command
}

// NewSession creates a session in the Idle state. Run it with Serve.
func NewSession(cfg SessionConfig, router *Router) *Session {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 3 * time.Second
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return &Session{
		cfg:      cfg,
		router:   router,
		state:    StateIdle,
		commands: make(chan command, 4),
	}
}

// Serve runs the session event loop until ctx is canceled. It connects
// immediately on start. Implements suture.Service.
func (s *Session) Serve(ctx context.Context) error {
	var (
		active     *transport
		retryTimer *time.Timer
		retryC     <-chan time.Time
	)

	stopTimer := func() {
		if retryTimer != nil {
			retryTimer.Stop()
			retryTimer = nil
		}
		retryC = nil
	}

	connect := func() {
		s.setState(StateConnecting)
		t, err := s.openTransport(ctx)
		if err != nil {
			logging.Warn().Err(err).Msg("push channel dial failed")
			s.applyRetryPolicy(&retryTimer, &retryC)
			return
		}
		active = t
	}

	// teardown closes the live transport and fires the connectivity signal;
	// the caller decides the next state (Idle, or via applyRetryPolicy).
	teardown := func() {
		if active != nil {
			active.close()
			active = nil
		}
		s.mu.Lock()
		wasOpen := s.state == StateOpen
		s.conn = nil
		s.mu.Unlock()
		if wasOpen {
			s.signalConnected(false)
		}
	}

	connect()

	for {
		var frames chan readResult
		if active != nil {
			frames = active.frames
		}

		select {
		case <-ctx.Done():
			stopTimer()
			teardown()
			s.setState(StateIdle)
			s.resetAttempt()
			return ctx.Err()

		case cmd := <-s.commands:
			switch cmd {
			case cmdConnect:
				if s.State() == StateOpen {
					continue
				}
				stopTimer()
				s.resetAttempt()
				connect()
			case cmdDisconnect:
				stopTimer()
				teardown()
				s.setState(StateIdle)
				s.resetAttempt()
			}

		case <-retryC:
			retryC = nil
			retryTimer = nil
			connect()

		case res, ok := <-frames:
			if !ok {
				// Reader exited after we closed the transport ourselves.
				active = nil
				continue
			}
			if res.err != nil {
				logging.Warn().Err(res.err).Msg("push channel closed")
				teardown()
				s.applyRetryPolicy(&retryTimer, &retryC)
				continue
			}
			s.router.HandleFrame(res.data)
		}
	}
}

// openTransport dials the push channel. On success the session is Open,
// the attempt counter resets, and the subscribe_user replay (if any) is
// written before any other traffic.
func (s *Session) openTransport(ctx context.Context) (*transport, error) {
	dialURL := s.cfg.URL
	if s.cfg.Token != "" {
		parsed, err := url.Parse(dialURL)
		if err != nil {
			return nil, fmt.Errorf("parse push url: %w", err)
		}
		q := parsed.Query()
		q.Set("token", s.cfg.Token)
		parsed.RawQuery = q.Encode()
		dialURL = parsed.String()
	}

	dialer := websocket.Dialer{
		HandshakeTimeout:  s.cfg.HandshakeTimeout,
		EnableCompression: true,
	}
	conn, resp, err := dialer.DialContext(ctx, dialURL, nil)
	if resp != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("push channel dial (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("push channel dial: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.attempt = 0
	s.mu.Unlock()
	s.setState(StateOpen)
	s.signalConnected(true)
	logging.Info().Str("url", s.cfg.URL).Msg("push channel open")

	if s.cfg.UserID != "" {
		s.Send(TypeSubscribeUser, SubscribeUser{UserID: s.cfg.UserID})
	}

	t := &transport{
		conn:   conn,
		frames: make(chan readResult),
		done:   make(chan struct{}),
	}
	go t.readPump()
	return t, nil
}

// applyRetryPolicy schedules a single fixed-delay retry while the budget
// lasts, and fails the session permanently otherwise.
func (s *Session) applyRetryPolicy(timer **time.Timer, retryC *<-chan time.Time) {
	s.mu.Lock()
	exhausted := s.attempt >= s.cfg.MaxAttempts
	if !exhausted {
		s.attempt++
	}
	attempt := s.attempt
	s.mu.Unlock()

	if exhausted {
		s.setState(StateFailed)
		metrics.ReconnectExhausted.Inc()
		logging.Error().
			Int("max_attempts", s.cfg.MaxAttempts).
			Msg("push channel reconnect budget exhausted, manual Connect required")
		return
	}

	s.setState(StateReconnectWaiting)
	metrics.ReconnectAttempts.Inc()
	logging.Info().
		Int("attempt", attempt).
		Int("max_attempts", s.cfg.MaxAttempts).
		Dur("delay", s.cfg.RetryDelay).
		Msg("push channel reconnect scheduled")

	*timer = time.NewTimer(s.cfg.RetryDelay)
	*retryC = (*timer).C
}

// Connect requests a connection attempt. No-op when already Open. This is
// also the manual recovery path out of Failed.
func (s *Session) Connect() {
	select {
	case s.commands <- cmdConnect:
	default:
		logging.Warn().Msg("session command queue full, dropping Connect")
	}
}

// Disconnect cancels any pending retry, closes the transport, and returns
// the session to Idle.
func (s *Session) Disconnect() {
	select {
	case s.commands <- cmdDisconnect:
	default:
		logging.Warn().Msg("session command queue full, dropping Disconnect")
	}
}

// Send transmits one outbound control message when the session is Open.
// Anything else is dropped with a warning: there is no send queue and no
// replay on reconnect. Write failures are logged only; reconnection is
// driven solely by transport close.
func (s *Session) Send(msgType string, data any) {
	s.mu.RLock()
	conn := s.conn
	open := s.state == StateOpen
	s.mu.RUnlock()

	if !open || conn == nil {
		metrics.DroppedSends.Inc()
		logging.Warn().Str("type", msgType).Msg("push channel not open, dropping outbound message")
		return
	}

	payload, err := json.Marshal(data)
	if err != nil {
		logging.Error().Err(err).Str("type", msgType).Msg("marshal outbound payload")
		return
	}
	frame, err := json.Marshal(WireMessage{Type: msgType, Data: payload})
	if err != nil {
		logging.Error().Err(err).Str("type", msgType).Msg("marshal outbound frame")
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		logging.Error().Err(err).Str("type", msgType).Msg("push channel write failed")
	}
}

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsConnected reports whether the session is Open.
func (s *Session) IsConnected() bool {
	return s.State() == StateOpen
}

// Attempt returns the current reconnect attempt counter.
func (s *Session) Attempt() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attempt
}

// String implements fmt.Stringer for supervisor logs.
func (s *Session) String() string {
	return "realtime-session"
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	metrics.SetSessionState(string(state))
}

func (s *Session) resetAttempt() {
	s.mu.Lock()
	s.attempt = 0
	s.mu.Unlock()
}

func (s *Session) signalConnected(connected bool) {
	if connected {
		metrics.SessionConnected.Set(1)
	} else {
		metrics.SessionConnected.Set(0)
	}
	if s.cfg.OnConnectionChange != nil {
		s.cfg.OnConnectionChange(connected)
	}
}
