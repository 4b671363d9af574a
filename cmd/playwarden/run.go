// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/playwarden/internal/api"
	"github.com/tomtom215/playwarden/internal/catalog"
	"github.com/tomtom215/playwarden/internal/config"
	"github.com/tomtom215/playwarden/internal/connectivity"
	"github.com/tomtom215/playwarden/internal/device"
	"github.com/tomtom215/playwarden/internal/logging"
	"github.com/tomtom215/playwarden/internal/models"
	"github.com/tomtom215/playwarden/internal/notify"
	"github.com/tomtom215/playwarden/internal/playback"
	"github.com/tomtom215/playwarden/internal/player"
	"github.com/tomtom215/playwarden/internal/snapshot"
	"github.com/tomtom215/playwarden/internal/state"
	"github.com/tomtom215/playwarden/internal/supervisor"
	"github.com/tomtom215/playwarden/internal/supervisor/services"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the playback supervisor (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAgent(cmd.Context(), opts)
		},
	}
}

func runAgent(parent context.Context, opts *rootOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("version", version).Msg("Starting Playwarden with supervisor tree")

	sink, err := notify.New(cfg.Notifications.Sink)
	if err != nil {
		return err
	}

	identity := device.NewDiscoverer().Discover(ctx, cfg.Device)
	logging.Info().Str("device", device.String(identity)).Msg("Device identity discovered")

	store := openStore(cfg, identity)
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing state cache")
		}
	}()

	library := catalog.New(cfg.Catalog.PlaylistsDir)
	applyDefaultPlaylist(ctx, cfg.State, store, library)

	playbackSup := playback.New(playback.Options{
		Player:   cfg.Player,
		Snapshot: cfg.Snapshot,
		Store:    store,
		Control:  player.NewClient(cfg.Player),
		Launcher: playback.ExecLauncher{},
		Sink:     sink,
	})
	defer playbackSup.Close()

	probe := snapshot.NewProbe(cfg.Snapshot, playbackSup)

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFrom(cfg.Supervisor))
	tree.AddPlaybackService(services.NewPlaybackService(playbackSup))
	tree.AddPlaybackService(services.NewRunnerService("snapshot-purger", snapshot.NewPurger(cfg.Snapshot)))

	var channels api.Channels
	if cfg.Control.Enabled {
		conn := connectivity.New(connectivity.Options{
			Control:   cfg.Control,
			Telemetry: cfg.Telemetry,
			Heartbeat: cfg.Heartbeat,
			Playback:  playbackSup,
			Playlists: store,
			Identity:  store,
			Catalog:   library,
			Snapshots: probe,
			Sink:      sink,
		})
		tree.AddConnectivityService(services.NewRunnerService("connectivity", conn))
		channels = conn
	} else {
		logging.Warn().Msg("Control channel disabled; running standalone")
	}

	if cfg.API.Enabled {
		handler := api.NewHandler(store, playbackSup, library, channels, sink)
		server := &http.Server{
			Addr:              cfg.API.Listen,
			Handler:           api.NewRouter(cfg.API, handler),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		tree.AddAPIService(services.NewHTTPServerService(server, cfg.API.ShutdownTimeout))
		logging.Info().Str("listen", cfg.API.Listen).Msg("Local API enabled")
	}

	err = tree.Serve(ctx)
	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor tree: %w", err)
	}
	logging.Info().Msg("Playwarden stopped")
	return nil
}

// openStore builds the state store. A cache that cannot be opened is logged
// and skipped; the file tier alone is sufficient.
func openStore(cfg *config.Config, identity models.DeviceIdentity) *state.Store {
	opts := state.Options{
		FilePath:      cfg.State.File,
		WriteAttempts: cfg.State.WriteRetries,
		Identity:      identity,
	}
	if cfg.State.CacheEnabled {
		cache, err := state.OpenBadgerCache(cfg.State.CachePath, cfg.State.CacheTTL)
		if err != nil {
			logging.Warn().Err(err).Msg("State cache unavailable, using file only")
		} else {
			opts.Cache = cache
		}
	}
	return state.New(opts)
}

// applyDefaultPlaylist stores the configured default playlist. Resolution
// failures leave the previous default in place.
func applyDefaultPlaylist(ctx context.Context, cfg config.StateConfig, store *state.Store, library *catalog.Catalog) {
	if cfg.DefaultPlaylist == "" {
		return
	}
	entry, err := library.Resolve(cfg.DefaultPlaylist)
	if err != nil {
		logging.Warn().Err(err).Str("playlist", cfg.DefaultPlaylist).Msg("Default playlist not available")
		return
	}
	ref := &models.PlaylistRef{PlaylistName: entry.Name, PlaylistPath: entry.Path}
	if err := store.SetDefault(ctx, ref); err != nil {
		logging.Warn().Err(err).Msg("Failed to store default playlist")
	}
}
