// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package connectivity

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/playwarden/internal/catalog"
	"github.com/tomtom215/playwarden/internal/config"
	"github.com/tomtom215/playwarden/internal/models"
)

// fakeConn is an in-memory channel connection.
type fakeConn struct {
	in       chan models.Envelope
	autoAuth *models.AuthAck

	mu  sync.Mutex
	out []models.Envelope

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn(autoAuth *models.AuthAck) *fakeConn {
	return &fakeConn{in: make(chan models.Envelope, 16), autoAuth: autoAuth, closed: make(chan struct{})}
}

func (c *fakeConn) Read() (models.Envelope, error) {
	select {
	case env := <-c.in:
		return env, nil
	case <-c.closed:
		return models.Envelope{}, io.EOF
	}
}

func (c *fakeConn) Write(_ context.Context, env models.Envelope) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	c.mu.Lock()
	c.out = append(c.out, env)
	c.mu.Unlock()
	if env.Event == models.EventAuthenticate && c.autoAuth != nil {
		c.push(models.EventAuthSuccess, c.autoAuth)
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(event models.EventName, payload any) {
	env, err := models.NewEnvelope(event, payload)
	if err != nil {
		panic(err)
	}
	c.in <- env
}

func (c *fakeConn) sent(event models.EventName) []models.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Envelope
	for _, env := range c.out {
		if env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

// endpoint is one fake server URL.
type endpoint struct {
	down     atomic.Bool
	dials    atomic.Int32
	autoAuth *models.AuthAck

	mu    sync.Mutex
	conns []*fakeConn
}

func (e *endpoint) last() *fakeConn {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.conns) == 0 {
		return nil
	}
	return e.conns[len(e.conns)-1]
}

type fakeDialer struct {
	endpoints map[string]*endpoint
}

func (d *fakeDialer) Dial(_ context.Context, url string) (Conn, error) {
	ep, ok := d.endpoints[url]
	if !ok {
		return nil, errors.New("no such endpoint")
	}
	ep.dials.Add(1)
	if ep.down.Load() {
		return nil, errors.New("connection refused")
	}
	c := newFakeConn(ep.autoAuth)
	ep.mu.Lock()
	ep.conns = append(ep.conns, c)
	ep.mu.Unlock()
	return c, nil
}

type fakePlayback struct {
	mu       sync.Mutex
	actions  []models.CommandAction
	restarts int
	execErr  error
}

func (p *fakePlayback) GetStatus(context.Context) models.PlayerStatus {
	return models.PlayerStatus{State: models.PlayerPlaying, Volume: 256}
}

func (p *fakePlayback) Execute(_ context.Context, a models.CommandAction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, a)
	return p.execErr
}

func (p *fakePlayback) Restart(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restarts++
	return true
}

func (p *fakePlayback) executed() []models.CommandAction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.CommandAction(nil), p.actions...)
}

type fakeStore struct {
	mu       sync.Mutex
	rec      models.ActivePlaylistRecord
	identity models.DeviceIdentity
}

func (s *fakeStore) ActivePlaylist(context.Context) models.ActivePlaylistRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Clone()
}

func (s *fakeStore) Update(_ context.Context, patch models.PlaylistPatch) (models.ActivePlaylistRecord, error) {
	if err := patch.Validate(); err != nil {
		return models.ActivePlaylistRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	name, path := *patch.PlaylistName, *patch.PlaylistPath
	s.rec = models.ActivePlaylistRecord{PlaylistName: &name, PlaylistPath: &path, IsActive: true}
	if patch.FileCount != nil {
		s.rec.FileCount = *patch.FileCount
	}
	return s.rec.Clone(), nil
}

func (s *fakeStore) Identity() models.DeviceIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *fakeStore) AdoptIdentity(ack models.AuthAck) models.DeviceIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = s.identity.WithAck(ack)
	return s.identity
}

type fakeCatalog map[string]catalog.Entry

func (c fakeCatalog) Resolve(name string) (catalog.Entry, error) {
	e, ok := c[name]
	if !ok {
		return catalog.Entry{}, catalog.ErrPlaylistNotFound
	}
	return e, nil
}

type nilSnapshots struct{ calls atomic.Int32 }

func (n *nilSnapshots) Capture(context.Context) *string {
	n.calls.Add(1)
	return nil
}

const (
	controlURL   = "ws://control.test/ws"
	telemetryURL = "ws://telemetry.test/ws"
)

func testChannel(url string) config.ChannelConfig {
	return config.ChannelConfig{
		Enabled:              true,
		URL:                  url,
		MaxReconnectAttempts: 3,
		ReconnectDelay:       5 * time.Millisecond,
		HandshakeTimeout:     time.Second,
		AuthTimeout:          time.Second,
		ProbeInterval:        50 * time.Millisecond,
		Cooldown:             50 * time.Millisecond,
	}
}

type rig struct {
	sup       *Supervisor
	control   *endpoint
	telemetry *endpoint
	playback  *fakePlayback
	store     *fakeStore
	snapshots *nilSnapshots
	cancel    context.CancelFunc
	done      chan error
}

func newRig(t *testing.T, mutate func(*Options)) *rig {
	t.Helper()
	ack := &models.AuthAck{ID: "srv-7", Name: "Lobby Screen"}
	r := &rig{
		control:   &endpoint{autoAuth: ack},
		telemetry: &endpoint{autoAuth: ack},
		playback:  &fakePlayback{},
		store:     &fakeStore{identity: models.DeviceIdentity{ID: "aa:bb", Name: "player-1", IP: "10.0.0.5", MAC: "aa:bb"}},
		snapshots: &nilSnapshots{},
		done:      make(chan error, 1),
	}
	opts := Options{
		Control:   testChannel(controlURL),
		Telemetry: testChannel(telemetryURL),
		Heartbeat: config.HeartbeatConfig{Interval: time.Hour, StatusTimeout: time.Second},
		Dialer:    &fakeDialer{endpoints: map[string]*endpoint{controlURL: r.control, telemetryURL: r.telemetry}},
		Playback:  r.playback,
		Playlists: r.store,
		Identity:  r.store,
		Catalog:   fakeCatalog{"intro": {Name: "intro", Path: "/p/intro/intro.m3u", FileCount: 4}},
		Snapshots: r.snapshots,
	}
	if mutate != nil {
		mutate(&opts)
	}
	r.sup = New(opts)
	return r
}

func (r *rig) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go func() { r.done <- r.sup.Run(ctx) }()
	t.Cleanup(r.stop)
}

func (r *rig) stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.cancel = nil
	select {
	case <-r.done:
	case <-time.After(3 * time.Second):
		panic("supervisor did not stop")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func decodeAck(t *testing.T, env models.Envelope) models.CommandAck {
	t.Helper()
	var ack models.CommandAck
	if err := env.Decode(&ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	return ack
}
