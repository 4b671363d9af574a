// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

/*
Package models defines the values exchanged between Playwarden components
and over the wire.

Every type here is passed by value. Components never share a pointer to a
record they do not own; ActivePlaylistRecord.Clone exists so that the
optional fields (which are pointers so they marshal to null) do not alias.

Wire types:

  - Envelope: the {event, id, data} frame carried on both channels
  - HeartbeatMessage: periodic status frame
  - Command / CommandAck: remote control requests and their acknowledgments

State types:

  - DeviceIdentity: who this device is
  - ActivePlaylistRecord: what the device is supposed to be playing
  - PlayerStatus: what the player is actually doing
*/
package models
