// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	if cfg.Heartbeat.Interval != 25*time.Second {
		t.Errorf("Heartbeat.Interval = %v, want 25s", cfg.Heartbeat.Interval)
	}
	if cfg.Control.MaxReconnectAttempts != 5 {
		t.Errorf("Control.MaxReconnectAttempts = %d, want 5", cfg.Control.MaxReconnectAttempts)
	}
	if cfg.Control.ProbeInterval != 30*time.Second {
		t.Errorf("Control.ProbeInterval = %v, want 30s", cfg.Control.ProbeInterval)
	}
	if cfg.Player.WatchdogInterval != 30*time.Second {
		t.Errorf("Player.WatchdogInterval = %v, want 30s", cfg.Player.WatchdogInterval)
	}
	if cfg.State.CacheTTL != 24*time.Hour {
		t.Errorf("State.CacheTTL = %v, want 24h", cfg.State.CacheTTL)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"PLAYWARDEN_CONTROL_URL", "control.url"},
		{"PLAYWARDEN_CONTROL_MAX_RECONNECT_ATTEMPTS", "control.max_reconnect_attempts"},
		{"PLAYWARDEN_PLAYER_WATCHDOG_INTERVAL", "player.watchdog_interval"},
		{"PLAYWARDEN_LOGGING_LEVEL", "logging.level"},
		{"PLAYWARDEN_CONFIG", ""},
		{"PLAYWARDEN_UNKNOWN_KEY", ""},
		{"PLAYWARDEN_PLAYER", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := envTransformFunc(tt.in); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoadFileLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlDoc := `
device:
  name: lobby-screen
player:
  port: 9090
  watchdog_interval: 10s
control:
  url: ws://fleet.local:3001/ws
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PLAYWARDEN_PLAYER_PORT", "9191")
	t.Setenv("PLAYWARDEN_PLAYER_EXTRA_ARGS", "--no-audio, --fullscreen")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Device.Name != "lobby-screen" {
		t.Errorf("Device.Name = %q", cfg.Device.Name)
	}
	if cfg.Player.Port != 9191 {
		t.Errorf("Player.Port = %d, want env override 9191", cfg.Player.Port)
	}
	if cfg.Player.WatchdogInterval != 10*time.Second {
		t.Errorf("Player.WatchdogInterval = %v, want 10s", cfg.Player.WatchdogInterval)
	}
	if cfg.Control.URL != "ws://fleet.local:3001/ws" {
		t.Errorf("Control.URL = %q", cfg.Control.URL)
	}
	if len(cfg.Player.ExtraArgs) != 2 || cfg.Player.ExtraArgs[1] != "--fullscreen" {
		t.Errorf("Player.ExtraArgs = %v", cfg.Player.ExtraArgs)
	}
	if cfg.Heartbeat.Interval != 25*time.Second {
		t.Errorf("default Heartbeat.Interval lost: %v", cfg.Heartbeat.Interval)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"http control url", func(c *Config) { c.Control.URL = "http://x/ws" }, "ws or wss"},
		{"empty telemetry url", func(c *Config) { c.Telemetry.URL = "" }, "telemetry.url is required"},
		{"bad port", func(c *Config) { c.Player.Port = 70000 }, "player.port"},
		{"zero heartbeat", func(c *Config) { c.Heartbeat.Interval = 0 }, "heartbeat.interval"},
		{"unknown sink", func(c *Config) { c.Notifications.Sink = "desktop" }, "notifications.sink"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad listen", func(c *Config) { c.API.Listen = "nope" }, "api.listen"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateSkipsDisabledChannel(t *testing.T) {
	cfg := defaultConfig()
	cfg.Telemetry.Enabled = false
	cfg.Telemetry.URL = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled telemetry should not be validated: %v", err)
	}
}

func TestPlayerBaseURL(t *testing.T) {
	cfg := defaultConfig()
	if got := cfg.PlayerBaseURL(); got != "http://localhost:8080" {
		t.Errorf("PlayerBaseURL() = %q", got)
	}
}
