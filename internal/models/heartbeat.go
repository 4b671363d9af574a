// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package models

import "time"

// Device status values reported in heartbeats.
const (
	DeviceOnline   = "online"
	DeviceDegraded = "degraded"
)

// HeartbeatMessage is the periodic status frame. Build it with
// NewHeartbeat and do not modify it afterwards.
type HeartbeatMessage struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	IP        string     `json:"ip"`
	MAC       string     `json:"mac"`
	Status    string     `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
	VLC       VLCSummary `json:"vlc"`
	Snapshot  *string    `json:"snapshot"`
}

// VLCSummary is the player section of a heartbeat.
type VLCSummary struct {
	Status   PlayerStatus     `json:"status"`
	Playlist *PlaylistSummary `json:"playlist"`
}

// PlaylistSummary is the active playlist as reported in a heartbeat.
type PlaylistSummary struct {
	Name         string `json:"name"`
	Path         string `json:"path"`
	CurrentIndex int    `json:"currentIndex"`
	FileCount    int    `json:"fileCount"`
	IsDefault    bool   `json:"isDefault"`
}

// NewHeartbeat assembles a heartbeat from independently gathered parts.
// snapshot may be nil.
func NewHeartbeat(dev DeviceIdentity, at time.Time, status PlayerStatus, rec ActivePlaylistRecord, snapshot *string) HeartbeatMessage {
	hb := HeartbeatMessage{
		ID:        dev.ID,
		Name:      dev.Name,
		IP:        dev.IP,
		MAC:       dev.MAC,
		Status:    DeviceOnline,
		Timestamp: at.UTC(),
		VLC:       VLCSummary{Status: status},
		Snapshot:  cloneString(snapshot),
	}
	if status.State == PlayerError {
		hb.Status = DeviceDegraded
	}
	if rec.Configured() {
		hb.VLC.Playlist = &PlaylistSummary{
			Name:         rec.Name(),
			Path:         rec.Path(),
			CurrentIndex: rec.CurrentIndex,
			FileCount:    rec.FileCount,
			IsDefault:    rec.IsDefault,
		}
	}
	return hb
}
