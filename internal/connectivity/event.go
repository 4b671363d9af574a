// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package connectivity

import "github.com/tomtom215/playwarden/internal/models"

// Channel names a session.
type Channel string

const (
	// Control receives commands and carries authoritative heartbeats.
	Control Channel = "control"

	// Telemetry is best-effort and only mirrors heartbeats.
	Telemetry Channel = "telemetry"
)

// EventKind enumerates what a session can report to the supervisor.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventAuthenticated
	EventAuthRejected
	EventCommand
	EventStateRequest
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventAuthenticated:
		return "authenticated"
	case EventAuthRejected:
		return "auth_rejected"
	case EventCommand:
		return "command"
	case EventStateRequest:
		return "state_request"
	default:
		return "unknown"
	}
}

// Event is a message from a session to the supervisor. Only the field
// matching Kind is set.
type Event struct {
	Channel Channel
	Kind    EventKind

	// Ack is set for EventAuthenticated.
	Ack models.AuthAck

	// Command is set for EventCommand.
	Command models.Command

	// Err is set for EventDisconnected and EventAuthRejected.
	Err error
}
