// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package models

// PlayerState is the coarse player state.
type PlayerState string

const (
	PlayerStopped  PlayerState = "stopped"
	PlayerStarting PlayerState = "starting"
	PlayerPlaying  PlayerState = "playing"
	PlayerPaused   PlayerState = "paused"
	PlayerError    PlayerState = "error"
)

// PlayerStatus is derived by polling the player; it is never persisted.
type PlayerStatus struct {
	State       PlayerState `json:"state"`
	CurrentItem string      `json:"currentItem,omitempty"`
	Position    float64     `json:"position"`
	TimeSec     int         `json:"time"`
	LengthSec   int         `json:"length"`
	Volume      int         `json:"volume"`

	// Reason explains a stopped or error state, e.g. "no playlist configured".
	Reason string `json:"reason,omitempty"`
}

// StoppedStatus returns a stopped status with the given reason.
func StoppedStatus(reason string) PlayerStatus {
	return PlayerStatus{State: PlayerStopped, Reason: reason}
}
