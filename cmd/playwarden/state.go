// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/playwarden/internal/api"
	"github.com/tomtom215/playwarden/internal/catalog"
	"github.com/tomtom215/playwarden/internal/config"
	"github.com/tomtom215/playwarden/internal/models"
	"github.com/tomtom215/playwarden/internal/state"
)

// storedState is what `state show` prints: the durable part of the store.
type storedState struct {
	ActivePlaylist  models.ActivePlaylistRecord `json:"activePlaylist"`
	DefaultPlaylist *models.PlaylistRef         `json:"defaultPlaylist"`
}

func newStateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect the persisted state",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the active and default playlist records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			// The file tier is always current; the cache belongs to the
			// running agent and may be locked.
			snap := state.New(state.Options{FilePath: cfg.State.File}).Get(cmd.Context())
			return printJSON(cmd.OutOrStdout(), storedState{
				ActivePlaylist:  snap.Playlist,
				DefaultPlaylist: snap.Default,
			})
		},
	})
	return cmd
}

func newPlaylistCmd(opts *rootOptions) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "playlist",
		Short: "Manage the active playlist",
	}
	activate := &cobra.Command{
		Use:   "activate <name>",
		Short: "Make a catalog playlist active",
		Long: "Asks the running agent's local API to activate the playlist and restart\n" +
			"the player. With --offline the state file is updated directly and the\n" +
			"change takes effect on the next start.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if offline {
				return activateOffline(cmd.Context(), cmd.OutOrStdout(), cfg, args[0])
			}
			return activateOnline(cmd.Context(), cmd.OutOrStdout(), cfg.API, args[0])
		},
	}
	activate.Flags().BoolVar(&offline, "offline", false, "write the state file instead of calling the running agent")
	cmd.AddCommand(activate)
	return cmd
}

func activateOffline(ctx context.Context, out io.Writer, cfg *config.Config, name string) error {
	entry, err := catalog.New(cfg.Catalog.PlaylistsDir).Resolve(name)
	if err != nil {
		return err
	}
	rec, err := state.New(state.Options{FilePath: cfg.State.File}).
		Update(ctx, models.SelectPlaylist(entry.Name, entry.Path, entry.FileCount))
	if err != nil {
		return err
	}
	return printJSON(out, rec)
}

func activateOnline(ctx context.Context, out io.Writer, cfg config.APIConfig, name string) error {
	if !cfg.Enabled {
		return fmt.Errorf("local API is disabled; use --offline")
	}
	base, err := apiBaseURL(cfg.Listen)
	if err != nil {
		return err
	}
	body, err := json.Marshal(api.ActivePlaylistRequest{PlaylistName: name})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, base+"/api/v1/active-playlist", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("contact agent: %w", err)
	}
	defer resp.Body.Close()

	var result api.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode agent response: %w", err)
	}
	if !result.Success {
		if result.Error != nil {
			return fmt.Errorf("agent rejected request: %s", result.Error.Message)
		}
		return fmt.Errorf("agent rejected request: HTTP %d", resp.StatusCode)
	}
	return printJSON(out, result.Data)
}

// apiBaseURL turns a listen address such as ":8080" into a loopback URL.
func apiBaseURL(listen string) (string, error) {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "", fmt.Errorf("invalid api.listen %q: %w", listen, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port), nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
