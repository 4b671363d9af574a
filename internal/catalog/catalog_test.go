// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writePlaylist(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name, name+".m3u")
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	want := writePlaylist(t, dir, "intro", "#EXTM3U\n#EXTINF:-1,Clip\n/videos/a.mp4\n\n/videos/b.mp4\n")

	e, err := New(dir).Resolve("intro")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if e.Path != want || e.FileCount != 2 || e.Name != "intro" {
		t.Errorf("Resolve() = %+v", e)
	}
}

func TestResolveErrors(t *testing.T) {
	c := New(t.TempDir())
	if _, err := c.Resolve("missing"); !errors.Is(err, ErrPlaylistNotFound) {
		t.Errorf("missing: %v", err)
	}
	for _, bad := range []string{"", "..", "a/b", `a\b`} {
		if _, err := c.Resolve(bad); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Resolve(%q) = %v, want ErrInvalidName", bad, err)
		}
	}
}

func TestListSkipsBrokenEntries(t *testing.T) {
	dir := t.TempDir()
	writePlaylist(t, dir, "b", "/v/1.mp4\n")
	writePlaylist(t, dir, "a", "/v/1.mp4\n/v/2.mp4\n")
	if err := os.MkdirAll(filepath.Join(dir, "no-m3u"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := New(dir).List()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "b" {
		t.Errorf("List() = %+v", got)
	}
}

func TestCheckPlayable(t *testing.T) {
	dir := t.TempDir()
	empty := writePlaylist(t, dir, "empty", "#EXTM3U\n\n")
	full := writePlaylist(t, dir, "full", "/v/1.mp4\n")

	if err := CheckPlayable(empty); !errors.Is(err, ErrEmptyPlaylist) {
		t.Errorf("empty: %v", err)
	}
	if err := CheckPlayable(full); err != nil {
		t.Errorf("full: %v", err)
	}
	if err := CheckPlayable(filepath.Join(dir, "nope.m3u")); err == nil {
		t.Error("expected error for missing file")
	}
}
