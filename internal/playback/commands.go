// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package playback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/playwarden/internal/metrics"
	"github.com/tomtom215/playwarden/internal/models"
)

// VolumeStep is the change applied by VOLUME_UP and VOLUME_DOWN, in the
// player's 0-512 volume units.
const VolumeStep = 10

var (
	// ErrNotRunning is returned by commands that need a live player.
	ErrNotRunning = errors.New("player is not running")

	// ErrNoPlaylist is returned when PLAY or RESTART cannot start the player
	// because no playlist is configured or the playlist is unusable.
	ErrNoPlaylist = errors.New("no playable playlist configured")

	// ErrUnsupported is returned for actions playback does not handle.
	ErrUnsupported = errors.New("action not handled by playback")
)

// Execute runs a player command. PLAY starts the player when it is not
// running; RESTART restarts it. Other actions require a running player.
func (s *Supervisor) Execute(ctx context.Context, action models.CommandAction) error {
	start := time.Now()
	err := s.execute(ctx, action)
	metrics.RecordPlayerCommand(string(action), time.Since(start), err)
	return err
}

func (s *Supervisor) execute(ctx context.Context, action models.CommandAction) error {
	switch action {
	case models.ActionPlay:
		if !s.Running() {
			if !s.Start(ctx) {
				return ErrNoPlaylist
			}
			return nil
		}
		return s.player.Play(ctx)
	case models.ActionRestart:
		if !s.Restart(ctx) {
			return ErrNoPlaylist
		}
		return nil
	}

	if !s.Running() {
		return ErrNotRunning
	}

	switch action {
	case models.ActionPause:
		return s.player.Pause(ctx)
	case models.ActionStop:
		return s.player.Stop(ctx)
	case models.ActionNext:
		if err := s.player.Next(ctx); err != nil {
			return err
		}
		s.advance(ctx, 1)
		return nil
	case models.ActionPrevious:
		if err := s.player.Previous(ctx); err != nil {
			return err
		}
		s.advance(ctx, -1)
		return nil
	case models.ActionVolumeUp:
		return s.player.Volume(ctx, VolumeStep)
	case models.ActionVolumeDown:
		return s.player.Volume(ctx, -VolumeStep)
	case models.ActionSnapshot:
		return s.TriggerSnapshot(ctx)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, action)
	}
}

// TriggerSnapshot asks the running player to write a frame to the snapshot
// directory.
func (s *Supervisor) TriggerSnapshot(ctx context.Context) error {
	if !s.Running() {
		return ErrNotRunning
	}
	return s.player.Snapshot(ctx)
}

// advance moves the persisted playlist index by delta, wrapping around the
// playlist length. Failures are logged; the player has already moved.
func (s *Supervisor) advance(ctx context.Context, delta int) {
	rec := s.store.ActivePlaylist(ctx)
	if !rec.Configured() || rec.FileCount <= 0 {
		return
	}

	idx := (rec.CurrentIndex + delta) % rec.FileCount
	if idx < 0 {
		idx += rec.FileCount
	}
	name, path := rec.Name(), rec.Path()
	patch := models.PlaylistPatch{
		PlaylistName: &name,
		PlaylistPath: &path,
		CurrentIndex: &idx,
		LastLoaded:   rec.LastLoaded,
	}
	if _, err := s.store.Update(ctx, patch); err != nil {
		s.log.Warn().Err(err).Int("index", idx).Msg("Could not persist playlist index")
	}
}
