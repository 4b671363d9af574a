// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package models

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestPlaylistPatchValidate(t *testing.T) {
	tests := []struct {
		name    string
		patch   PlaylistPatch
		wantErr error
	}{
		{"empty patch", PlaylistPatch{}, nil},
		{"name and path", PlaylistPatch{PlaylistName: strPtr("intro"), PlaylistPath: strPtr("/p/intro/intro.m3u")}, nil},
		{"name only", PlaylistPatch{PlaylistName: strPtr("intro")}, ErrPartialPlaylist},
		{"path only", PlaylistPatch{PlaylistPath: strPtr("/p/intro/intro.m3u")}, ErrPartialPlaylist},
		{"empty name", PlaylistPatch{PlaylistName: strPtr("")}, ErrPartialPlaylist},
		{"clear", PlaylistPatch{Clear: true}, nil},
		{"negative index", PlaylistPatch{CurrentIndex: intPtr(-1)}, ErrNegativeCounter},
		{"index only", PlaylistPatch{CurrentIndex: intPtr(3)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.patch.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecordNormalize(t *testing.T) {
	rec := ActivePlaylistRecord{PlaylistName: strPtr("intro"), IsActive: true, CurrentIndex: -2}
	got := rec.Normalize()
	if got.Configured() || got.PlaylistName != nil || got.PlaylistPath != nil {
		t.Errorf("half-configured record should normalize to unconfigured, got %+v", got)
	}
	if got.IsActive {
		t.Error("unconfigured record must not be active")
	}
	if got.CurrentIndex != 0 {
		t.Errorf("CurrentIndex = %d, want 0", got.CurrentIndex)
	}
}

func TestRecordCloneDoesNotAlias(t *testing.T) {
	now := time.Now()
	rec := ActivePlaylistRecord{PlaylistName: strPtr("a"), PlaylistPath: strPtr("/a"), LastLoaded: &now}
	c := rec.Clone()
	*c.PlaylistName = "b"
	*c.LastLoaded = now.Add(time.Hour)
	if rec.Name() != "a" || !rec.LastLoaded.Equal(now) {
		t.Error("clone aliases the original")
	}
}

func TestNewHeartbeatWireShape(t *testing.T) {
	dev := DeviceIdentity{ID: "d1", Name: "lobby", IP: "10.0.0.5", MAC: "aa:bb", Token: "secret"}
	rec := ActivePlaylistRecord{PlaylistName: strPtr("intro"), PlaylistPath: strPtr("/p/intro/intro.m3u"), FileCount: 4}
	hb := NewHeartbeat(dev, time.Unix(100, 0), PlayerStatus{State: PlayerPlaying, Volume: 256}, rec, nil)

	data, err := json.Marshal(hb)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := string(data)
	for _, want := range []string{`"id":"d1"`, `"mac":"aa:bb"`, `"status":"online"`, `"snapshot":null`, `"vlc":{"status":{"state":"playing"`, `"fileCount":4`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
	if strings.Contains(out, "secret") {
		t.Error("heartbeat must not carry the auth token")
	}
}

func TestNewHeartbeatWithoutPlaylist(t *testing.T) {
	snap := "data:image/jpeg;base64,AAAA"
	hb := NewHeartbeat(DeviceIdentity{}, time.Now(), PlayerStatus{State: PlayerError}, ActivePlaylistRecord{}, &snap)
	if hb.VLC.Playlist != nil {
		t.Error("expected nil playlist summary")
	}
	if hb.Status != DeviceDegraded {
		t.Errorf("Status = %q, want %q", hb.Status, DeviceDegraded)
	}
	snap = "changed"
	if *hb.Snapshot == "changed" {
		t.Error("heartbeat snapshot aliases caller string")
	}
}

func TestParseAction(t *testing.T) {
	if a, ok := ParseAction(" next "); !ok || a != ActionNext {
		t.Errorf("ParseAction(next) = %q, %v", a, ok)
	}
	if _, ok := ParseAction("SELF_DESTRUCT"); ok {
		t.Error("expected unknown action to be rejected")
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := NewEnvelope(EventAuthSuccess, AuthAck{ID: "srv-1", Name: "Lobby"})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if env.ID == "" {
		t.Error("expected envelope id")
	}
	var ack AuthAck
	if err := env.Decode(&ack); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	dev := DeviceIdentity{ID: "local", Name: "local", IP: "1.2.3.4"}.WithAck(ack)
	if dev.ID != "srv-1" || dev.Name != "Lobby" || dev.IP != "1.2.3.4" {
		t.Errorf("WithAck = %+v", dev)
	}
	if err := (Envelope{Event: EventStateRequest}).Decode(&ack); err == nil {
		t.Error("expected error decoding empty frame")
	}
}

func TestAck(t *testing.T) {
	if a := Ack("c1", nil); a.Status != AckSuccess || a.CommandID != "c1" {
		t.Errorf("Ack success = %+v", a)
	}
	if a := Ack("c2", errors.New("boom")); a.Status != AckError || a.Message != "boom" {
		t.Errorf("Ack error = %+v", a)
	}
}
