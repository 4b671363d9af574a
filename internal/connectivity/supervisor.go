// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

// Package connectivity keeps the device attached to its control and
// telemetry services.
//
// Each channel is a Session with its own reconnect policy. Sessions turn
// wire frames into Events on one channel; Supervisor.Run consumes them in
// a single goroutine. The heartbeat loop runs only while the control
// channel is authenticated.
package connectivity

import (
	"context"
	"sync"

	"github.com/tomtom215/playwarden/internal/catalog"
	"github.com/tomtom215/playwarden/internal/config"
	"github.com/tomtom215/playwarden/internal/logging"
	"github.com/tomtom215/playwarden/internal/models"
	"github.com/tomtom215/playwarden/internal/notify"
)

// Playback is the player surface commands and heartbeats need.
type Playback interface {
	GetStatus(ctx context.Context) models.PlayerStatus
	Execute(ctx context.Context, action models.CommandAction) error
	Restart(ctx context.Context) bool
}

// PlaylistStore reads and updates the active playlist.
type PlaylistStore interface {
	ActivePlaylist(ctx context.Context) models.ActivePlaylistRecord
	Update(ctx context.Context, patch models.PlaylistPatch) (models.ActivePlaylistRecord, error)
}

// IdentityStore holds the device identity.
type IdentityStore interface {
	Identity() models.DeviceIdentity
	AdoptIdentity(ack models.AuthAck) models.DeviceIdentity
}

// Resolver looks up playlists by name.
type Resolver interface {
	Resolve(name string) (catalog.Entry, error)
}

// SnapshotSource captures a frame for a heartbeat. nil means no snapshot.
type SnapshotSource interface {
	Capture(ctx context.Context) *string
}

// Options wires a Supervisor.
type Options struct {
	Control   config.ChannelConfig
	Telemetry config.ChannelConfig
	Heartbeat config.HeartbeatConfig

	// Dialer defaults to a WSDialer.
	Dialer Dialer

	Playback  Playback
	Playlists PlaylistStore
	Identity  IdentityStore
	Catalog   Resolver
	Snapshots SnapshotSource
	Sink      notify.Sink
}

// Supervisor owns both sessions, the heartbeat loop and command dispatch.
type Supervisor struct {
	hb        config.HeartbeatConfig
	control   *Session
	telemetry *Session
	events    chan Event

	playback  Playback
	playlists PlaylistStore
	identity  IdentityStore
	catalog   Resolver
	snapshots SnapshotSource
	sink      notify.Sink

	wg     sync.WaitGroup
	beatMu sync.Mutex

	// hbCancel stops the running heartbeat loop. Only touched by Run.
	hbCancel context.CancelFunc
}

// New creates a Supervisor. The telemetry session is omitted when
// telemetry is disabled.
func New(opts Options) *Supervisor {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = WSDialer{HandshakeTimeout: opts.Control.HandshakeTimeout}
	}
	sink := opts.Sink
	if sink == nil {
		sink = notify.Noop{}
	}

	s := &Supervisor{
		hb:        opts.Heartbeat,
		events:    make(chan Event, 16),
		playback:  opts.Playback,
		playlists: opts.Playlists,
		identity:  opts.Identity,
		catalog:   opts.Catalog,
		snapshots: opts.Snapshots,
		sink:      sink,
	}
	s.control = newSession(Control, opts.Control, dialer, true, opts.Identity.Identity, s.events)
	if opts.Telemetry.Enabled {
		s.telemetry = newSession(Telemetry, opts.Telemetry, dialer, false, opts.Identity.Identity, s.events)
	}
	return s
}

// Sessions returns a view of each session.
func (s *Supervisor) Sessions() []SessionInfo {
	out := []SessionInfo{s.control.Info()}
	if s.telemetry != nil {
		out = append(out, s.telemetry.Info())
	}
	return out
}

// ControlState returns the control session state.
func (s *Supervisor) ControlState() State { return s.control.State() }

// Run connects both channels and handles their events until ctx is done.
func (s *Supervisor) Run(ctx context.Context) error {
	log := logging.WithComponent("connectivity")
	log.Info().Bool("telemetry", s.telemetry != nil).Msg("Connectivity supervisor starting")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.control.Run(ctx)
	}()
	if s.telemetry != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_ = s.telemetry.Run(ctx)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			s.stopHeartbeat()
			s.wg.Wait()
			log.Info().Msg("Connectivity supervisor stopped")
			return ctx.Err()
		case ev := <-s.events:
			s.handle(ctx, ev)
		}
	}
}

// handle is the single consumer of session events.
func (s *Supervisor) handle(ctx context.Context, ev Event) {
	log := logging.WithComponent("connectivity").With().
		Str("channel", string(ev.Channel)).
		Str("event", ev.Kind.String()).
		Logger()

	switch ev.Kind {
	case EventConnected:
		log.Debug().Msg("Channel connected")

	case EventAuthenticated:
		if ev.Channel != Control {
			return
		}
		dev := s.identity.AdoptIdentity(ev.Ack)
		notify.Send(s.sink, notify.ChannelAuthenticated, "Authenticated as %s (%s)", dev.Name, dev.ID)
		s.startHeartbeat(ctx)

	case EventAuthRejected:
		log.Warn().Err(ev.Err).Msg("Authentication rejected, will retry on reconnect")

	case EventDisconnected:
		if ev.Channel != Control {
			return
		}
		s.stopHeartbeat()
		notify.Send(s.sink, notify.ChannelLost, "Control channel lost: %v", ev.Err)

	case EventCommand:
		if ev.Channel != Control || s.control.State() != StateAuthenticated {
			log.Warn().Err(ErrNotAuthenticated).Str("action", ev.Command.Action).Msg("Ignoring command")
			return
		}
		s.wg.Add(1)
		go func(cmd models.Command) {
			defer s.wg.Done()
			s.respond(ctx, s.dispatch(ctx, cmd))
		}(ev.Command)

	case EventStateRequest:
		if s.control.State() != StateAuthenticated {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.beat(ctx)
		}()
	}
}

func (s *Supervisor) respond(ctx context.Context, ack models.CommandAck) {
	env, err := models.NewEnvelope(models.EventCommandResponse, ack)
	if err == nil {
		err = s.control.Send(ctx, env)
	}
	if err != nil {
		logging.Warn().Err(err).Str("command_id", ack.CommandID).Msg("Failed to acknowledge command")
	}
}

func (s *Supervisor) startHeartbeat(ctx context.Context) {
	if s.hbCancel != nil {
		return
	}
	hbCtx, cancel := context.WithCancel(ctx)
	s.hbCancel = cancel
	s.wg.Add(1)
	go s.heartbeatLoop(hbCtx)
}

func (s *Supervisor) stopHeartbeat() {
	if s.hbCancel == nil {
		return
	}
	s.hbCancel()
	s.hbCancel = nil
}
