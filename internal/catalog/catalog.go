// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

// Package catalog resolves playlist names to M3U files in the playlist
// library. A playlist named "intro" lives at <dir>/intro/intro.m3u.
package catalog

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrPlaylistNotFound means no playlist file exists for the name.
	ErrPlaylistNotFound = errors.New("playlist not found")

	// ErrInvalidName rejects names that would escape the library.
	ErrInvalidName = errors.New("invalid playlist name")

	// ErrEmptyPlaylist means the file has no media entries.
	ErrEmptyPlaylist = errors.New("playlist has no entries")
)

// Entry is a resolved playlist.
type Entry struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	FileCount int    `json:"fileCount"`
}

// Catalog reads the playlist library on disk.
type Catalog struct {
	dir string
}

// New returns a catalog rooted at dir.
func New(dir string) *Catalog {
	return &Catalog{dir: dir}
}

// PathFor returns where the playlist called name is stored.
func (c *Catalog) PathFor(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(c.dir, name, name+".m3u"), nil
}

// Resolve looks up a playlist and counts its entries.
func (c *Catalog) Resolve(name string) (Entry, error) {
	path, err := c.PathFor(name)
	if err != nil {
		return Entry{}, err
	}
	n, err := CountEntries(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Entry{}, fmt.Errorf("%w: %s", ErrPlaylistNotFound, name)
	}
	if err != nil {
		return Entry{}, err
	}
	return Entry{Name: name, Path: path, FileCount: n}, nil
}

// List returns every resolvable playlist, sorted by name.
func (c *Catalog) List() ([]Entry, error) {
	dirs, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read playlist dir: %w", err)
	}

	var out []Entry
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		e, err := c.Resolve(d.Name())
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CountEntries counts the media lines of an M3U file: every non-blank line
// that is not a # directive.
func CountEntries(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			n++
		}
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	return n, nil
}

// CheckPlayable returns nil when path is an M3U file with at least one entry.
func CheckPlayable(path string) error {
	n, err := CountEntries(path)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEmptyPlaylist
	}
	return nil
}
