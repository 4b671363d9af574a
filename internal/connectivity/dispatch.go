// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package connectivity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/playwarden/internal/logging"
	"github.com/tomtom215/playwarden/internal/metrics"
	"github.com/tomtom215/playwarden/internal/models"
	"github.com/tomtom215/playwarden/internal/notify"
)

var (
	// ErrUnknownAction rejects commands outside the allow-list.
	ErrUnknownAction = errors.New("unknown action")

	// ErrNotAuthenticated is logged for commands received before the
	// control channel authenticated.
	ErrNotAuthenticated = errors.New("control channel not authenticated")

	// ErrInvalidParams rejects commands with missing or malformed params.
	ErrInvalidParams = errors.New("invalid command params")
)

// dispatch runs one allowed command and builds its acknowledgment.
func (s *Supervisor) dispatch(ctx context.Context, cmd models.Command) models.CommandAck {
	id := cmd.CommandID
	if id == "" {
		id = logging.GenerateCorrelationID()
	}
	ctx = logging.ContextWithCorrelationID(ctx, id)
	log := logging.Ctx(ctx)

	action, ok := models.ParseAction(cmd.Action)
	if !ok {
		log.Warn().Str("action", cmd.Action).Msg("Rejected unknown command")
		metrics.CommandsReceived.WithLabelValues("unknown", string(models.AckError)).Inc()
		return models.Ack(cmd.CommandID, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action))
	}

	log.Info().Str("action", string(action)).Msg("Executing command")

	var err error
	switch action {
	case models.ActionLoadPlaylist:
		err = s.loadPlaylist(ctx, cmd)
	default:
		err = s.playback.Execute(ctx, action)
	}

	ack := models.Ack(cmd.CommandID, err)
	metrics.CommandsReceived.WithLabelValues(string(action), string(ack.Status)).Inc()
	if err != nil {
		log.Warn().Err(err).Str("action", string(action)).Msg("Command failed")
	}
	return ack
}

// loadPlaylist resolves the named playlist, makes it active and restarts
// the player on it.
func (s *Supervisor) loadPlaylist(ctx context.Context, cmd models.Command) error {
	var params models.LoadPlaylistParams
	if len(cmd.Params) == 0 {
		return fmt.Errorf("%w: playlistName is required", ErrInvalidParams)
	}
	if err := decodeParams(cmd, &params); err != nil {
		return err
	}
	name := strings.TrimSpace(params.PlaylistName)
	if name == "" {
		return fmt.Errorf("%w: playlistName is required", ErrInvalidParams)
	}

	entry, err := s.catalog.Resolve(name)
	if err != nil {
		return err
	}

	if _, err := s.playlists.Update(ctx, models.SelectPlaylist(entry.Name, entry.Path, entry.FileCount)); err != nil {
		return fmt.Errorf("activate playlist: %w", err)
	}
	notify.Send(s.sink, notify.PlaylistChanged, "Active playlist is now %s", entry.Name)

	if !s.playback.Restart(ctx) {
		return fmt.Errorf("playlist %s activated but player did not start", entry.Name)
	}
	return nil
}

func decodeParams(cmd models.Command, v any) error {
	env := models.Envelope{Event: models.EventCommand, Data: cmd.Params}
	if err := env.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}
