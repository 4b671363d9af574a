// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package playback

import (
	"fmt"

	"github.com/tomtom215/playwarden/internal/config"
)

// BuildArgs returns the player command line: loop playback, the HTTP
// control interface, the snapshot settings, any extra arguments and finally
// the playlist.
func BuildArgs(p config.PlayerConfig, s config.SnapshotConfig, playlist string) []string {
	args := []string{
		"--loop",
		"--no-video-title-show",
		"--intf=http",
		fmt.Sprintf("--http-host=%s", p.Host),
		fmt.Sprintf("--http-port=%d", p.Port),
		fmt.Sprintf("--http-password=%s", p.Password),
		fmt.Sprintf("--snapshot-path=%s", s.Dir),
		fmt.Sprintf("--snapshot-prefix=%s", s.Prefix),
		fmt.Sprintf("--snapshot-format=%s", s.Format),
		fmt.Sprintf("--snapshot-width=%d", s.Width),
		"--snapshot-height=0",
		"--no-snapshot-preview",
		"--snapshot-sequential",
	}
	args = append(args, p.ExtraArgs...)
	return append(args, playlist)
}
