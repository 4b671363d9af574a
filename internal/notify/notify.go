// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

// Package notify delivers operator-facing notifications (player crashed,
// control channel lost) to whatever host surface is present. Hosts without
// one use Noop. The sink is chosen once at start-up.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/playwarden/internal/logging"
)

// Kind classifies a notification.
type Kind string

const (
	PlayerStarted        Kind = "player_started"
	PlayerStopped        Kind = "player_stopped"
	PlayerCrashed        Kind = "player_crashed"
	PlaylistChanged      Kind = "playlist_changed"
	ChannelAuthenticated Kind = "channel_authenticated"
	ChannelLost          Kind = "channel_lost"
)

// Notification is one message for the operator.
type Notification struct {
	Kind    Kind
	Message string
	At      time.Time
}

// Sink receives notifications. Implementations must not block.
type Sink interface {
	Notify(Notification)
}

// Noop discards everything.
type Noop struct{}

func (Noop) Notify(Notification) {}

// Log writes notifications to the structured log.
type Log struct{}

func (Log) Notify(n Notification) {
	logging.Info().Str("kind", string(n.Kind)).Time("at", n.At).Msg(n.Message)
}

// New returns the sink named by the notifications.sink setting.
func New(name string) (Sink, error) {
	switch name {
	case "", "none":
		return Noop{}, nil
	case "log":
		return Log{}, nil
	default:
		return nil, fmt.Errorf("unknown notification sink %q", name)
	}
}

// Send stamps and delivers a notification. A nil sink is treated as Noop.
func Send(s Sink, kind Kind, format string, args ...any) {
	if s == nil {
		return
	}
	s.Notify(Notification{Kind: kind, Message: fmt.Sprintf(format, args...), At: time.Now()})
}

// Recorder keeps notifications in memory. Tests use it to assert delivery.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	r.sent = append(r.sent, n)
	r.mu.Unlock()
}

// Kinds returns the kinds received so far, in order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.sent))
	for i, n := range r.sent {
		out[i] = n.Kind
	}
	return out
}
