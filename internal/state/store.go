// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/playwarden/internal/logging"
	"github.com/tomtom215/playwarden/internal/metrics"
	"github.com/tomtom215/playwarden/internal/models"
	"github.com/tomtom215/playwarden/internal/retry"
)

// Snapshot is a consistent copy of everything the store knows.
type Snapshot struct {
	Playlist models.ActivePlaylistRecord `json:"activePlaylist"`
	Default  *models.PlaylistRef         `json:"defaultPlaylist"`
	Player   models.PlayerStatus         `json:"player"`
	Device   models.DeviceIdentity       `json:"device"`
}

// Options configures a Store.
type Options struct {
	// FilePath is the durable JSON document.
	FilePath string

	// Cache is optional. A nil cache leaves only the file tier.
	Cache Cache

	// WriteAttempts bounds durable write attempts per update (default 3).
	WriteAttempts int

	// WriteRetryDelay separates durable write attempts (default 100ms).
	WriteRetryDelay time.Duration

	// Identity seeds the device identity.
	Identity models.DeviceIdentity
}

// Store implements the dual-tier state store.
type Store struct {
	file  stateFile
	cache Cache
	write retry.Policy

	// mu serializes updates; reads take it shared.
	mu sync.RWMutex

	statusMu sync.RWMutex
	player   models.PlayerStatus
	identity models.DeviceIdentity

	now func() time.Time
}

// New creates a Store. It does not touch the file or cache until first use.
func New(opts Options) *Store {
	attempts := opts.WriteAttempts
	if attempts <= 0 {
		attempts = 3
	}
	delay := opts.WriteRetryDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	return &Store{
		file:     stateFile{path: opts.FilePath},
		cache:    opts.Cache,
		write:    retry.Linear(attempts, delay),
		player:   models.StoppedStatus("not started"),
		identity: opts.Identity,
		now:      time.Now,
	}
}

// Get returns the current record, the default playlist, the last player
// status and the device identity. It never fails.
func (s *Store) Get(_ context.Context) Snapshot {
	s.mu.RLock()
	st := s.read()
	s.mu.RUnlock()

	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return Snapshot{
		Playlist: st.ActivePlaylist.Clone(),
		Default:  cloneRef(st.DefaultPlaylist),
		Player:   s.player,
		Device:   s.identity,
	}
}

// ActivePlaylist is shorthand for Get(ctx).Playlist.
func (s *Store) ActivePlaylist(ctx context.Context) models.ActivePlaylistRecord {
	return s.Get(ctx).Playlist
}

// Default returns the default playlist, if one is set.
func (s *Store) Default(ctx context.Context) (models.PlaylistRef, bool) {
	d := s.Get(ctx).Default
	if d == nil {
		return models.PlaylistRef{}, false
	}
	return *d, true
}

// Update merges patch into the active playlist record and persists it.
// Omitted fields keep their value; LastLoaded is stamped unless supplied.
// Changing the playlist resets CurrentIndex and FileCount unless the patch
// supplies them.
func (s *Store) Update(ctx context.Context, patch models.PlaylistPatch) (models.ActivePlaylistRecord, error) {
	if err := patch.Validate(); err != nil {
		return models.ActivePlaylistRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.read()
	next := prev
	next.ActivePlaylist = merge(prev.ActivePlaylist, patch, s.now())

	if err := s.persist(ctx, prev, next); err != nil {
		return models.ActivePlaylistRecord{}, err
	}

	logging.Info().
		Str("playlist", next.ActivePlaylist.Name()).
		Int("current_index", next.ActivePlaylist.CurrentIndex).
		Int("file_count", next.ActivePlaylist.FileCount).
		Bool("is_default", next.ActivePlaylist.IsDefault).
		Msg("Active playlist updated")
	return next.ActivePlaylist.Clone(), nil
}

// SetDefault stores the fallback playlist used when nothing is active.
// A nil ref clears it.
func (s *Store) SetDefault(ctx context.Context, ref *models.PlaylistRef) error {
	if ref != nil && (ref.PlaylistName == "" || ref.PlaylistPath == "") {
		return models.ErrPartialPlaylist
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.read()
	next := prev
	next.DefaultPlaylist = cloneRef(ref)
	return s.persist(ctx, prev, next)
}

// SetPlayerStatus records the latest player status. It is not persisted.
func (s *Store) SetPlayerStatus(status models.PlayerStatus) {
	s.statusMu.Lock()
	s.player = status
	s.statusMu.Unlock()
}

// Identity returns the current device identity.
func (s *Store) Identity() models.DeviceIdentity {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.identity
}

// AdoptIdentity applies the control service's authentication acknowledgment.
func (s *Store) AdoptIdentity(ack models.AuthAck) models.DeviceIdentity {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	if ack.ID != s.identity.ID || ack.Name != s.identity.Name {
		logging.Info().
			Str("old_id", s.identity.ID).
			Str("new_id", ack.ID).
			Str("new_name", ack.Name).
			Msg("Adopting server-assigned identity")
	}
	s.identity = s.identity.WithAck(ack)
	return s.identity
}

// Close releases the cache tier.
func (s *Store) Close() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Close()
}

// read must be called with mu held.
func (s *Store) read() models.SystemState {
	if s.cache != nil {
		st, err := s.cache.Load()
		if err == nil {
			metrics.StateReads.WithLabelValues("cache").Inc()
			return st
		}
		if !errors.Is(err, ErrCacheMiss) {
			logging.Warn().Err(err).Msg("State cache read failed, using file")
		}
	}

	st, err := s.file.load()
	switch {
	case err == nil:
		metrics.StateReads.WithLabelValues("file").Inc()
		if s.cache != nil {
			if cerr := s.cache.Store(st); cerr != nil {
				logging.Debug().Err(cerr).Msg("State cache warm failed")
			}
		}
		return st
	case errors.Is(err, errNoFile):
		logging.Debug().Str("path", s.file.path).Msg("No state file yet, using defaults")
	default:
		logging.Warn().Err(err).Str("path", s.file.path).Msg("State file unreadable, using defaults")
	}
	metrics.StateReads.WithLabelValues("default").Inc()
	return models.SystemState{}
}

// persist writes next to the cache and then the file. mu must be held.
func (s *Store) persist(ctx context.Context, prev, next models.SystemState) error {
	cached := false
	if s.cache != nil {
		err := s.cache.Store(next)
		metrics.RecordStateWrite("cache", err)
		if err != nil {
			logging.Warn().Err(err).Msg("State cache write failed, continuing with file only")
		} else {
			cached = true
		}
	}

	err := retry.Run(ctx, "state.file_write", s.write, func(context.Context) error {
		return s.file.save(next)
	})
	metrics.RecordStateWrite("file", err)
	if err == nil {
		return nil
	}

	if cached {
		if rerr := s.cache.Store(prev); rerr != nil {
			logging.Warn().Err(rerr).Msg("State cache rollback failed")
		}
	}
	return fmt.Errorf("persist state: %w", err)
}

// merge applies patch to rec.
func merge(rec models.ActivePlaylistRecord, patch models.PlaylistPatch, now time.Time) models.ActivePlaylistRecord {
	out := rec.Clone()

	if patch.Clear {
		out = models.ActivePlaylistRecord{}
	} else if patch.PlaylistName != nil && patch.PlaylistPath != nil {
		changed := *patch.PlaylistName != rec.Name() || *patch.PlaylistPath != rec.Path()
		name, path := *patch.PlaylistName, *patch.PlaylistPath
		out.PlaylistName = &name
		out.PlaylistPath = &path
		if changed {
			out.CurrentIndex = 0
			out.FileCount = 0
			out.IsDefault = false
		}
	}

	if patch.CurrentIndex != nil {
		out.CurrentIndex = *patch.CurrentIndex
	}
	if patch.FileCount != nil {
		out.FileCount = *patch.FileCount
	}
	if patch.IsDefault != nil {
		out.IsDefault = *patch.IsDefault
	}

	loaded := now.UTC()
	if patch.LastLoaded != nil {
		loaded = patch.LastLoaded.UTC()
	}
	out.LastLoaded = &loaded
	out.IsActive = out.Configured()

	return out.Normalize()
}

func cloneRef(r *models.PlaylistRef) *models.PlaylistRef {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
