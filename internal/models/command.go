// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package models

import (
	"strings"

	"github.com/goccy/go-json"
)

// CommandAction is a remote control action.
type CommandAction string

// Accepted remote actions. Anything else is rejected with an error ack.
const (
	ActionPlay         CommandAction = "PLAY"
	ActionPause        CommandAction = "PAUSE"
	ActionStop         CommandAction = "STOP"
	ActionNext         CommandAction = "NEXT"
	ActionPrevious     CommandAction = "PREVIOUS"
	ActionVolumeUp     CommandAction = "VOLUME_UP"
	ActionVolumeDown   CommandAction = "VOLUME_DOWN"
	ActionRestart      CommandAction = "RESTART"
	ActionSnapshot     CommandAction = "SNAPSHOT"
	ActionLoadPlaylist CommandAction = "LOAD_PLAYLIST"
)

var allowedActions = map[CommandAction]struct{}{
	ActionPlay:         {},
	ActionPause:        {},
	ActionStop:         {},
	ActionNext:         {},
	ActionPrevious:     {},
	ActionVolumeUp:     {},
	ActionVolumeDown:   {},
	ActionRestart:      {},
	ActionSnapshot:     {},
	ActionLoadPlaylist: {},
}

// ParseAction normalizes s and reports whether it is allowed.
func ParseAction(s string) (CommandAction, bool) {
	a := CommandAction(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := allowedActions[a]
	return a, ok
}

// Command is an inbound control-channel request.
type Command struct {
	Action    string          `json:"action"`
	CommandID string          `json:"commandId"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// LoadPlaylistParams are the params of LOAD_PLAYLIST.
type LoadPlaylistParams struct {
	PlaylistName string `json:"playlistName"`
}

// AckStatus is success or error.
type AckStatus string

const (
	AckSuccess AckStatus = "success"
	AckError   AckStatus = "error"
)

// CommandAck answers a Command, echoing its CommandID.
type CommandAck struct {
	CommandID string    `json:"commandId"`
	Status    AckStatus `json:"status"`
	Message   string    `json:"message,omitempty"`
}

// Ack builds an acknowledgment for id from err.
func Ack(id string, err error) CommandAck {
	if err != nil {
		return CommandAck{CommandID: id, Status: AckError, Message: err.Error()}
	}
	return CommandAck{CommandID: id, Status: AckSuccess}
}
