// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package models

// DeviceIdentity identifies this device to the control and telemetry
// services. ID and Name may be replaced by the control service's
// authentication acknowledgment; everything else is fixed at start-up.
type DeviceIdentity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	IP    string `json:"ip"`
	MAC   string `json:"mac"`
	Group string `json:"group,omitempty"`
	Token string `json:"token,omitempty"`
}

// WithAck returns a copy carrying the server-assigned id and name. Empty
// values in the acknowledgment leave the local value in place.
func (d DeviceIdentity) WithAck(ack AuthAck) DeviceIdentity {
	if ack.ID != "" {
		d.ID = ack.ID
	}
	if ack.Name != "" {
		d.Name = ack.Name
	}
	return d
}
