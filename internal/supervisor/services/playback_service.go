// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package services

import (
	"context"

	"github.com/tomtom215/playwarden/internal/logging"
)

// PlayerStartStopper matches *playback.Supervisor.
type PlayerStartStopper interface {
	Start(ctx context.Context) bool
	Stop()
}

// PlaybackService starts the player when served and stops it on shutdown.
// Having nothing to play is a normal state, so a false Start does not fail
// the service; the player is started later by a command or the API.
type PlaybackService struct {
	player PlayerStartStopper
	name   string
}

// NewPlaybackService wraps player.
func NewPlaybackService(player PlayerStartStopper) *PlaybackService {
	return &PlaybackService{player: player, name: "playback"}
}

// Serve implements suture.Service.
func (s *PlaybackService) Serve(ctx context.Context) error {
	if !s.player.Start(ctx) {
		logging.Info().Msg("Player idle until a playlist is activated")
	}

	<-ctx.Done()
	s.player.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for suture's logs.
func (s *PlaybackService) String() string {
	return s.name
}
