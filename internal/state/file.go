// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/tomtom215/playwarden/internal/models"
)

// errNoFile means the durable file does not exist yet.
var errNoFile = errors.New("state file does not exist")

// stateFile reads and atomically replaces the durable JSON document.
type stateFile struct {
	path string
}

func (f stateFile) load() (models.SystemState, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.SystemState{}, errNoFile
	}
	if err != nil {
		return models.SystemState{}, fmt.Errorf("read %s: %w", f.path, err)
	}

	var st models.SystemState
	if err := json.Unmarshal(data, &st); err != nil {
		return models.SystemState{}, fmt.Errorf("parse %s: %w", f.path, err)
	}
	return normalize(st), nil
}

// save writes st to a temp file in the same directory and renames it over
// the target, so readers see either the old or the new document.
func (f stateFile) save(st models.SystemState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	committed = true

	syncDir(dir)
	return nil
}

// syncDir flushes the rename. Not every platform supports fsync on a
// directory, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

func normalize(st models.SystemState) models.SystemState {
	st.ActivePlaylist = st.ActivePlaylist.Normalize()
	if st.DefaultPlaylist != nil && (st.DefaultPlaylist.PlaylistName == "" || st.DefaultPlaylist.PlaylistPath == "") {
		st.DefaultPlaylist = nil
	}
	return st
}
