// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package models

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// EventName is the event field of a wire frame.
type EventName string

// Wire events.
const (
	EventAuthenticate    EventName = "AUTHENTICATE"
	EventAuthSuccess     EventName = "AUTH_SUCCESS"
	EventAuthError       EventName = "AUTH_ERROR"
	EventHeartbeat       EventName = "heartbeat"
	EventCommand         EventName = "player:command"
	EventCommandResponse EventName = "player:command:response"
	EventStateRequest    EventName = "player:request:state"
)

// Envelope is one JSON text frame on a channel.
type Envelope struct {
	Event EventName       `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into a frame with a fresh id.
func NewEnvelope(event EventName, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return Envelope{Event: event, ID: uuid.NewString(), Data: data}, nil
}

// Decode unmarshals the frame payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s frame has no data", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Event, err)
	}
	return nil
}

// AuthAck is the AUTH_SUCCESS payload.
type AuthAck struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AuthFailure is the AUTH_ERROR payload.
type AuthFailure struct {
	Message string `json:"message"`
}
