// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package connectivity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/playwarden/internal/config"
	"github.com/tomtom215/playwarden/internal/logging"
	"github.com/tomtom215/playwarden/internal/metrics"
	"github.com/tomtom215/playwarden/internal/models"
	"github.com/tomtom215/playwarden/internal/retry"
)

var (
	// ErrNotConnected is returned when sending on a channel with no
	// connection.
	ErrNotConnected = errors.New("channel not connected")

	// ErrAuthTimeout closes a connection that was never acknowledged.
	ErrAuthTimeout = errors.New("authentication not acknowledged")
)

// State is a session's lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateAuthenticated
	StateBackoff
	StateProbing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateBackoff:
		return "backoff"
	case StateProbing:
		return "probing"
	default:
		return "unknown"
	}
}

// SessionInfo is a point-in-time view of a session.
type SessionInfo struct {
	Channel  Channel `json:"channel"`
	State    string  `json:"state"`
	Attempts int     `json:"reconnectAttempts"`
	LastErr  string  `json:"lastError,omitempty"`
}

// Session keeps one channel connected and authenticated. It reports what
// happens on the wire as Events; it never acts on them itself.
//
// Only an essential session drops a connection whose AUTHENTICATE is not
// acknowledged within AuthTimeout.
//
// When MaxReconnectAttempts consecutive connects fail, an essential session
// (control) switches to probing every ProbeInterval and starts a fresh
// reconnect cycle once a probe succeeds. A non-essential session
// (telemetry) waits Cooldown and starts over.
type Session struct {
	channel   Channel
	cfg       config.ChannelConfig
	dialer    Dialer
	essential bool
	identity  func() models.DeviceIdentity
	events    chan<- Event
	log       zerolog.Logger

	mu       sync.Mutex
	state    State
	conn     Conn
	attempts int
	lastErr  error
}

func newSession(ch Channel, cfg config.ChannelConfig, d Dialer, essential bool, identity func() models.DeviceIdentity, events chan<- Event) *Session {
	s := &Session{
		channel:   ch,
		cfg:       cfg,
		dialer:    d,
		essential: essential,
		identity:  identity,
		events:    events,
		log:       logging.WithComponent("channel").With().Str("channel", string(ch)).Logger(),
	}
	metrics.ChannelState.WithLabelValues(string(ch)).Set(float64(StateDisconnected))
	return s
}

// Channel returns the session's channel name.
func (s *Session) Channel() Channel { return s.channel }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Info returns a snapshot of the session.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := SessionInfo{Channel: s.channel, State: s.state.String(), Attempts: s.attempts}
	if s.lastErr != nil {
		info.LastErr = s.lastErr.Error()
	}
	return info
}

// Attempts returns the consecutive failed connect attempts.
func (s *Session) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// ResetAttempts clears the failure count.
func (s *Session) ResetAttempts() {
	s.mu.Lock()
	s.attempts = 0
	s.mu.Unlock()
}

// Usable reports whether frames can be sent.
func (s *Session) Usable() bool {
	st := s.State()
	return st == StateConnected || st == StateAuthenticated
}

// Send writes one frame on the current connection.
func (s *Session) Send(ctx context.Context, env models.Envelope) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("%s: %w", s.channel, ErrNotConnected)
	}
	return conn.Write(ctx, env)
}

// Run keeps the session up until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	defer s.setState(StateDisconnected)
	for {
		conn, err := s.establish(ctx)
		if err != nil {
			return ctx.Err()
		}
		s.serve(ctx, conn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// establish returns a connection, cycling through reconnect, probe and
// cooldown phases. It only fails when ctx is done.
func (s *Session) establish(ctx context.Context) (Conn, error) {
	for {
		conn, err := s.reconnect(ctx)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		s.log.Warn().Err(err).Int("attempts", s.Attempts()).Msg("Reconnect attempts exhausted")
		if s.essential {
			if err := s.probe(ctx); err != nil {
				return nil, err
			}
		} else {
			s.setState(StateBackoff)
			s.log.Info().Dur("cooldown", s.cfg.Cooldown).Msg("Pausing reconnects")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.cfg.Cooldown):
			}
		}
		s.ResetAttempts()
	}
}

// reconnect makes up to MaxReconnectAttempts connects with a fixed delay.
func (s *Session) reconnect(ctx context.Context) (Conn, error) {
	policy := retry.Fixed(s.cfg.MaxReconnectAttempts, s.cfg.ReconnectDelay)
	return retry.Do(ctx, string(s.channel)+"_connect", policy, func(ctx context.Context) (Conn, error) {
		s.setState(StateConnecting)
		conn, err := s.dial(ctx)
		if err != nil {
			s.mu.Lock()
			s.attempts++
			s.lastErr = err
			s.mu.Unlock()
			s.setState(StateBackoff)
			s.log.Debug().Err(err).Int("attempt", s.Attempts()).Msg("Connect failed")
			return nil, err
		}
		return conn, nil
	})
}

// probe checks availability every ProbeInterval until a connect succeeds.
// The probe connection is closed; the caller reconnects normally.
func (s *Session) probe(ctx context.Context) error {
	s.setState(StateProbing)
	s.log.Info().Dur("interval", s.cfg.ProbeInterval).Msg("Switching to availability probe")

	ticker := time.NewTicker(s.cfg.ProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		conn, err := s.dial(ctx)
		if err != nil {
			s.log.Debug().Err(err).Msg("Probe failed")
			continue
		}
		_ = conn.Close()
		s.log.Info().Msg("Probe succeeded, reconnecting")
		return nil
	}
}

func (s *Session) dial(ctx context.Context) (Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	defer cancel()
	conn, err := s.dialer.Dial(ctx, s.cfg.URL)
	metrics.RecordConnectAttempt(string(s.channel), err)
	return conn, err
}

// serve authenticates and reads frames until the connection fails.
func (s *Session) serve(ctx context.Context, conn Conn) {
	s.mu.Lock()
	s.conn = conn
	s.attempts = 0
	s.lastErr = nil
	s.mu.Unlock()
	s.setState(StateConnected)
	s.log.Info().Str("url", s.cfg.URL).Msg("Connected")
	s.emit(ctx, Event{Channel: s.channel, Kind: EventConnected})

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	// Only the essential channel requires AUTH_SUCCESS. A telemetry
	// monitor may never acknowledge and stays usable while Connected.
	var authFailed error
	var authMu sync.Mutex
	if s.essential && s.cfg.AuthTimeout > 0 {
		authTimer := time.AfterFunc(s.cfg.AuthTimeout, func() {
			if s.State() == StateAuthenticated {
				return
			}
			authMu.Lock()
			authFailed = ErrAuthTimeout
			authMu.Unlock()
			s.log.Warn().Dur("timeout", s.cfg.AuthTimeout).Msg("Authentication not acknowledged, dropping connection")
			_ = conn.Close()
		})
		defer authTimer.Stop()
	}

	if err := s.authenticate(ctx, conn); err != nil {
		s.log.Warn().Err(err).Msg("Failed to send AUTHENTICATE")
		_ = conn.Close()
	}

	var readErr error
	for {
		env, err := conn.Read()
		if err != nil {
			readErr = err
			break
		}
		s.handleFrame(ctx, env)
	}

	authMu.Lock()
	if authFailed != nil {
		readErr = authFailed
	}
	authMu.Unlock()

	_ = conn.Close()
	s.mu.Lock()
	s.conn = nil
	s.lastErr = readErr
	s.mu.Unlock()
	s.setState(StateDisconnected)

	if ctx.Err() == nil {
		s.log.Warn().Err(readErr).Msg("Connection lost")
	}
	s.emit(ctx, Event{Channel: s.channel, Kind: EventDisconnected, Err: readErr})
}

func (s *Session) authenticate(ctx context.Context, conn Conn) error {
	env, err := models.NewEnvelope(models.EventAuthenticate, s.identity())
	if err != nil {
		return err
	}
	return conn.Write(ctx, env)
}

// handleFrame turns a wire frame into an Event.
func (s *Session) handleFrame(ctx context.Context, env models.Envelope) {
	switch env.Event {
	case models.EventAuthSuccess:
		var ack models.AuthAck
		if err := env.Decode(&ack); err != nil {
			s.log.Warn().Err(err).Msg("Malformed AUTH_SUCCESS")
			return
		}
		s.setState(StateAuthenticated)
		s.log.Info().Str("id", ack.ID).Str("name", ack.Name).Msg("Authenticated")
		s.emit(ctx, Event{Channel: s.channel, Kind: EventAuthenticated, Ack: ack})

	case models.EventAuthError:
		var fail models.AuthFailure
		_ = env.Decode(&fail)
		err := fmt.Errorf("authentication rejected: %s", fail.Message)
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		s.log.Warn().Str("message", fail.Message).Msg("Authentication rejected")
		s.emit(ctx, Event{Channel: s.channel, Kind: EventAuthRejected, Err: err})

	case models.EventCommand:
		var cmd models.Command
		if err := env.Decode(&cmd); err != nil {
			s.log.Warn().Err(err).Msg("Malformed command")
			return
		}
		s.emit(ctx, Event{Channel: s.channel, Kind: EventCommand, Command: cmd})

	case models.EventStateRequest:
		s.emit(ctx, Event{Channel: s.channel, Kind: EventStateRequest})

	default:
		s.log.Debug().Str("event", string(env.Event)).Msg("Ignoring frame")
	}
}

func (s *Session) emit(ctx context.Context, ev Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	metrics.ChannelState.WithLabelValues(string(s.channel)).Set(float64(st))
}
