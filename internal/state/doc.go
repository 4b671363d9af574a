// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

/*
Package state is the single source of truth for what the device should be
playing.

A Store keeps the active and default playlists in two tiers:

  - a cache tier (BadgerDB, in memory or on disk, entries expire after a TTL)
  - a durable JSON file, replaced atomically on every write

Reads prefer the cache, then the file, then an empty record. They never
fail: a corrupt file is logged and treated as absent.

Writes go through Update, which merges a PlaylistPatch into the current
record, writes the cache and then the file. The file write is retried and
must succeed before Update returns; a cache failure is only logged. When the
file write fails for good the cache is rolled back so both tiers keep
agreeing.

The store also holds two in-memory values that are never persisted: the
last reported PlayerStatus and the DeviceIdentity, whose id and name the
control service may replace after authentication.
*/
package state
