// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PLAYWARDEN_"

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "PLAYWARDEN_CONFIG"

// DefaultConfigPaths are searched in order when ConfigPathEnvVar is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/playwarden/config.yaml",
}

func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Group: "default",
		},
		Player: PlayerConfig{
			Binary:           "vlc",
			Host:             "localhost",
			Port:             8080,
			RequestTimeout:   5 * time.Second,
			RetryAttempts:    2,
			RetryDelay:       500 * time.Millisecond,
			WarmupDelay:      2 * time.Second,
			GraceDelay:       1 * time.Second,
			WatchdogDelay:    5 * time.Second,
			WatchdogInterval: 30 * time.Second,
			RestartCooldown:  5 * time.Second,
		},
		State: StateConfig{
			File:         "data/systemState.json",
			CacheEnabled: true,
			CacheTTL:     24 * time.Hour,
			WriteRetries: 3,
		},
		Catalog: CatalogConfig{
			PlaylistsDir: "public/videos/playlists",
		},
		Snapshot: SnapshotConfig{
			Dir:           "public/snapshots",
			CanonicalName: "snapshot.jpg",
			Prefix:        "snapshot",
			Format:        "jpg",
			Width:         300,
			Timeout:       3 * time.Second,
			Retention:     7 * 24 * time.Hour,
			MaxFiles:      1000,
			PurgeInterval: 24 * time.Hour,
			Inline:        true,
		},
		Control: ChannelConfig{
			Enabled:              true,
			URL:                  "ws://192.168.1.3:3001/ws",
			MaxReconnectAttempts: 5,
			ReconnectDelay:       1 * time.Second,
			HandshakeTimeout:     20 * time.Second,
			AuthTimeout:          10 * time.Second,
			ProbeInterval:        30 * time.Second,
			Cooldown:             60 * time.Second,
		},
		Telemetry: ChannelConfig{
			Enabled:              true,
			URL:                  "ws://localhost:3002/ws",
			MaxReconnectAttempts: 5,
			ReconnectDelay:       1 * time.Second,
			HandshakeTimeout:     20 * time.Second,
			AuthTimeout:          10 * time.Second,
			ProbeInterval:        30 * time.Second,
			Cooldown:             60 * time.Second,
		},
		Heartbeat: HeartbeatConfig{
			Interval:      25 * time.Second,
			StatusTimeout: 3 * time.Second,
		},
		API: APIConfig{
			Enabled:         true,
			Listen:          "127.0.0.1:3000",
			ShutdownTimeout: 10 * time.Second,
			WriteRateLimit:  30,
		},
		Notifications: NotificationsConfig{
			Sink: "none",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// Default returns the built-in configuration. Tests and the CLI use it as
// a starting point.
func Default() *Config {
	return defaultConfig()
}

// Load builds the configuration from defaults, the config file and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit config file path. An empty path skips
// the file layer.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransformFunc maps PLAYWARDEN_SECTION_SOME_KEY to section.some_key.
// Variables that do not name a section are dropped.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if key == "config" {
		return ""
	}
	section, rest, ok := strings.Cut(key, "_")
	if !ok || rest == "" {
		return ""
	}
	if _, known := sections[section]; !known {
		return ""
	}
	return section + "." + rest
}

var sections = map[string]struct{}{
	"device": {}, "player": {}, "state": {}, "catalog": {}, "snapshot": {},
	"control": {}, "telemetry": {}, "heartbeat": {}, "api": {},
	"notifications": {}, "logging": {}, "supervisor": {},
}

// sliceConfigPaths arrive from the environment as comma-separated strings.
var sliceConfigPaths = []string{
	"player.extra_args",
	"api.cors_origins",
}

func splitSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}
