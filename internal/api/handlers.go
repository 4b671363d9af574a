// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/playwarden/internal/catalog"
	"github.com/tomtom215/playwarden/internal/connectivity"
	"github.com/tomtom215/playwarden/internal/logging"
	"github.com/tomtom215/playwarden/internal/models"
	"github.com/tomtom215/playwarden/internal/notify"
	"github.com/tomtom215/playwarden/internal/state"
	"github.com/tomtom215/playwarden/internal/validation"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// StateReader is the part of the state store the API uses.
type StateReader interface {
	Get(ctx context.Context) state.Snapshot
	Update(ctx context.Context, patch models.PlaylistPatch) (models.ActivePlaylistRecord, error)
}

// Player controls the playback supervisor.
type Player interface {
	Start(ctx context.Context) bool
	Stop()
	Restart(ctx context.Context) bool
	Running() bool
	GetStatus(ctx context.Context) models.PlayerStatus
}

// Library resolves playlists by name.
type Library interface {
	Resolve(name string) (catalog.Entry, error)
	List() ([]catalog.Entry, error)
}

// Channels reports connection state. It may be nil when the device runs
// without a control service.
type Channels interface {
	Sessions() []connectivity.SessionInfo
}

// Handler serves the operator API.
type Handler struct {
	store    StateReader
	player   Player
	library  Library
	channels Channels
	sink     notify.Sink
	started  time.Time
}

// NewHandler wires the API to the running components. sink may be nil.
func NewHandler(store StateReader, player Player, library Library, channels Channels, sink notify.Sink) *Handler {
	if sink == nil {
		sink = notify.Noop{}
	}
	return &Handler{
		store:    store,
		player:   player,
		library:  library,
		channels: channels,
		sink:     sink,
		started:  time.Now(),
	}
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status        string `json:"status"`
	PlayerRunning bool   `json:"playerRunning"`
	Uptime        string `json:"uptime"`
}

// Health always answers 200 while the process is alive.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondOK(w, r, HealthResponse{
		Status:        "ok",
		PlayerRunning: h.player.Running(),
		Uptime:        time.Since(h.started).Truncate(time.Second).String(),
	})
}

// StateResponse is the /api/v1/state body.
type StateResponse struct {
	state.Snapshot
	Live models.PlayerStatus `json:"livePlayer"`
}

// GetState returns the stored state plus a fresh player status.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	respondOK(w, r, StateResponse{
		Snapshot: h.store.Get(ctx),
		Live:     h.player.GetStatus(ctx),
	})
}

// ListPlaylists returns the playlist library.
func (h *Handler) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	entries, err := h.library.List()
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Failed to read playlist library", nil)
		return
	}
	if entries == nil {
		entries = []catalog.Entry{}
	}
	respondOK(w, r, entries)
}

// GetChannels reports the control and telemetry connections.
func (h *Handler) GetChannels(w http.ResponseWriter, r *http.Request) {
	out := []connectivity.SessionInfo{}
	if h.channels != nil {
		out = append(out, h.channels.Sessions()...)
	}
	respondOK(w, r, out)
}

// ActivePlaylistRequest selects a playlist. When PlaylistPath is omitted the
// name is resolved against the library.
type ActivePlaylistRequest struct {
	PlaylistName string `json:"playlistName" validate:"required,max=255"`
	PlaylistPath string `json:"playlistPath,omitempty" validate:"omitempty,max=4096"`
	CurrentIndex *int   `json:"currentIndex,omitempty" validate:"omitempty,gte=0"`
	FileCount    *int   `json:"fileCount,omitempty" validate:"omitempty,gte=0"`
}

// SetActivePlaylist stores a new active playlist and restarts the player on it.
func (h *Handler) SetActivePlaylist(w http.ResponseWriter, r *http.Request) {
	var req ActivePlaylistRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body", nil)
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
		return
	}

	patch := models.PlaylistPatch{
		CurrentIndex: req.CurrentIndex,
		FileCount:    req.FileCount,
	}
	if req.PlaylistPath == "" {
		entry, err := h.library.Resolve(req.PlaylistName)
		switch {
		case errors.Is(err, catalog.ErrPlaylistNotFound):
			respondError(w, r, http.StatusNotFound, ErrCodeNotFound, err.Error(), nil)
			return
		case errors.Is(err, catalog.ErrInvalidName):
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
			return
		case err != nil:
			respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Failed to resolve playlist", nil)
			return
		}
		patch.PlaylistName, patch.PlaylistPath = &entry.Name, &entry.Path
		if patch.FileCount == nil {
			patch.FileCount = &entry.FileCount
		}
	} else {
		patch.PlaylistName, patch.PlaylistPath = &req.PlaylistName, &req.PlaylistPath
	}

	rec, err := h.store.Update(r.Context(), patch)
	if errors.Is(err, models.ErrPartialPlaylist) || errors.Is(err, models.ErrNegativeCounter) {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
		return
	}
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Failed to store active playlist", nil)
		return
	}
	notify.Send(h.sink, notify.PlaylistChanged, "playlist %s activated via API", rec.Name())
	logging.Ctx(r.Context()).Info().Str("playlist", rec.Name()).Msg("Active playlist set via API")

	h.player.Restart(context.WithoutCancel(r.Context()))
	respondOK(w, r, rec)
}

// ClearActivePlaylist forgets the active playlist and stops the player.
func (h *Handler) ClearActivePlaylist(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Update(r.Context(), models.PlaylistPatch{Clear: true})
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Failed to clear active playlist", nil)
		return
	}
	h.player.Stop()
	respondOK(w, r, rec)
}

// PlayerActionResponse reports the outcome of a start or restart.
type PlayerActionResponse struct {
	Running bool `json:"running"`
}

// StartPlayer starts playback if it is not already running.
func (h *Handler) StartPlayer(w http.ResponseWriter, r *http.Request) {
	ok := h.player.Running() || h.player.Start(context.WithoutCancel(r.Context()))
	respondOK(w, r, PlayerActionResponse{Running: ok})
}

// StopPlayer stops playback.
func (h *Handler) StopPlayer(w http.ResponseWriter, r *http.Request) {
	h.player.Stop()
	respondOK(w, r, PlayerActionResponse{Running: false})
}

// RestartPlayer restarts playback on the stored playlist.
func (h *Handler) RestartPlayer(w http.ResponseWriter, r *http.Request) {
	ok := h.player.Restart(context.WithoutCancel(r.Context()))
	respondOK(w, r, PlayerActionResponse{Running: ok})
}
