// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package models

import (
	"errors"
	"time"
)

var (
	// ErrPartialPlaylist is returned when a patch sets only one of name and path.
	ErrPartialPlaylist = errors.New("playlist name and path must be set together")

	// ErrNegativeCounter is returned for a negative currentIndex or fileCount.
	ErrNegativeCounter = errors.New("currentIndex and fileCount must not be negative")
)

// ActivePlaylistRecord is the persisted description of what the device is
// expected to be playing. PlaylistName and PlaylistPath are either both nil
// (nothing configured) or both set.
type ActivePlaylistRecord struct {
	PlaylistName *string    `json:"playlistName"`
	PlaylistPath *string    `json:"playlistPath"`
	CurrentIndex int        `json:"currentIndex"`
	FileCount    int        `json:"fileCount"`
	IsDefault    bool       `json:"isDefault"`
	IsActive     bool       `json:"isActive"`
	LastLoaded   *time.Time `json:"lastLoaded"`
}

// Configured reports whether a playlist is set.
func (r ActivePlaylistRecord) Configured() bool {
	return r.PlaylistName != nil && r.PlaylistPath != nil
}

// Name returns the playlist name or "".
func (r ActivePlaylistRecord) Name() string {
	if r.PlaylistName == nil {
		return ""
	}
	return *r.PlaylistName
}

// Path returns the playlist path or "".
func (r ActivePlaylistRecord) Path() string {
	if r.PlaylistPath == nil {
		return ""
	}
	return *r.PlaylistPath
}

// Clone returns a deep copy.
func (r ActivePlaylistRecord) Clone() ActivePlaylistRecord {
	out := r
	out.PlaylistName = cloneString(r.PlaylistName)
	out.PlaylistPath = cloneString(r.PlaylistPath)
	if r.LastLoaded != nil {
		t := *r.LastLoaded
		out.LastLoaded = &t
	}
	return out
}

// Normalize repairs a record read from storage so the name/path invariant
// holds. A half-configured record is treated as unconfigured.
func (r ActivePlaylistRecord) Normalize() ActivePlaylistRecord {
	if r.PlaylistName != nil && *r.PlaylistName == "" {
		r.PlaylistName = nil
	}
	if r.PlaylistPath != nil && *r.PlaylistPath == "" {
		r.PlaylistPath = nil
	}
	if !r.Configured() {
		r.PlaylistName = nil
		r.PlaylistPath = nil
		r.IsActive = false
		r.IsDefault = false
	}
	if r.CurrentIndex < 0 {
		r.CurrentIndex = 0
	}
	if r.FileCount < 0 {
		r.FileCount = 0
	}
	return r
}

// PlaylistRef names a playlist by name and path.
type PlaylistRef struct {
	PlaylistName string `json:"playlistName"`
	PlaylistPath string `json:"playlistPath"`
}

// PlaylistPatch is a partial ActivePlaylistRecord. Nil fields keep their
// prior value. Clear resets the record to "no playlist configured".
type PlaylistPatch struct {
	PlaylistName *string    `json:"playlistName,omitempty"`
	PlaylistPath *string    `json:"playlistPath,omitempty"`
	CurrentIndex *int       `json:"currentIndex,omitempty"`
	FileCount    *int       `json:"fileCount,omitempty"`
	IsDefault    *bool      `json:"isDefault,omitempty"`
	LastLoaded   *time.Time `json:"lastLoaded,omitempty"`
	Clear        bool       `json:"clear,omitempty"`
}

// Validate checks the patch against the name/path invariant.
func (p PlaylistPatch) Validate() error {
	if !p.Clear {
		hasName := p.PlaylistName != nil && *p.PlaylistName != ""
		hasPath := p.PlaylistPath != nil && *p.PlaylistPath != ""
		if hasName != hasPath {
			return ErrPartialPlaylist
		}
		if (p.PlaylistName != nil && !hasName) || (p.PlaylistPath != nil && !hasPath) {
			return ErrPartialPlaylist
		}
	}
	if (p.CurrentIndex != nil && *p.CurrentIndex < 0) || (p.FileCount != nil && *p.FileCount < 0) {
		return ErrNegativeCounter
	}
	return nil
}

// SelectPlaylist builds a patch that switches to the named playlist.
func SelectPlaylist(name, path string, fileCount int) PlaylistPatch {
	return PlaylistPatch{
		PlaylistName: &name,
		PlaylistPath: &path,
		FileCount:    &fileCount,
	}
}

// SystemState is the on-disk document holding the active and default
// playlists.
type SystemState struct {
	ActivePlaylist  ActivePlaylistRecord `json:"activePlaylist"`
	DefaultPlaylist *PlaylistRef         `json:"defaultPlaylist"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
