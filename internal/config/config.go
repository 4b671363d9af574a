// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

// Package config loads Playwarden configuration.
//
// Values are layered, later layers winning:
//
//  1. built-in defaults (defaultConfig)
//  2. a YAML file: $PLAYWARDEN_CONFIG, ./config.yaml or /etc/playwarden/config.yaml
//  3. environment variables prefixed PLAYWARDEN_
//
// An environment variable maps to a key by dropping the prefix, lowercasing
// and turning the first underscore into a dot:
//
//	PLAYWARDEN_CONTROL_URL                    -> control.url
//	PLAYWARDEN_PLAYER_WATCHDOG_INTERVAL       -> player.watchdog_interval
//	PLAYWARDEN_CONTROL_MAX_RECONNECT_ATTEMPTS -> control.max_reconnect_attempts
package config

import "time"

// Config is the complete runtime configuration.
type Config struct {
	Device        DeviceConfig        `koanf:"device"`
	Player        PlayerConfig        `koanf:"player"`
	State         StateConfig         `koanf:"state"`
	Catalog       CatalogConfig       `koanf:"catalog"`
	Snapshot      SnapshotConfig      `koanf:"snapshot"`
	Control       ChannelConfig       `koanf:"control"`
	Telemetry     ChannelConfig       `koanf:"telemetry"`
	Heartbeat     HeartbeatConfig     `koanf:"heartbeat"`
	API           APIConfig           `koanf:"api"`
	Notifications NotificationsConfig `koanf:"notifications"`
	Logging       LoggingConfig       `koanf:"logging"`
	Supervisor    SupervisorConfig    `koanf:"supervisor"`
}

// DeviceConfig seeds the device identity. ID and Name may be replaced by
// the control service after authentication.
type DeviceConfig struct {
	// ID defaults to the primary interface's MAC address when empty.
	ID string `koanf:"id"`

	// Name defaults to the hostname when empty.
	Name string `koanf:"name"`

	Group     string `koanf:"group"`
	AuthToken string `koanf:"auth_token"`

	// Interface pins identity discovery to one NIC (e.g. "eth0").
	Interface string `koanf:"interface"`
}

// PlayerConfig controls the external player process and its HTTP control
// interface.
type PlayerConfig struct {
	Binary    string   `koanf:"binary" validate:"required"`
	Host      string   `koanf:"host" validate:"required"`
	Port      int      `koanf:"port" validate:"min=1,max=65535"`
	Password  string   `koanf:"password"`
	ExtraArgs []string `koanf:"extra_args"`

	// RequestTimeout bounds each control interface request.
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gt=0"`

	// RetryAttempts is the number of retries after the first request fails.
	RetryAttempts int           `koanf:"retry_attempts" validate:"gte=0,lte=5"`
	RetryDelay    time.Duration `koanf:"retry_delay" validate:"gte=0"`

	// WarmupDelay is how long after spawn the playlist is submitted.
	WarmupDelay time.Duration `koanf:"warmup_delay" validate:"gte=0"`

	// GraceDelay separates stop from the next start during a restart.
	GraceDelay time.Duration `koanf:"grace_delay" validate:"gte=0"`

	WatchdogDelay    time.Duration `koanf:"watchdog_delay" validate:"gte=0"`
	WatchdogInterval time.Duration `koanf:"watchdog_interval" validate:"gt=0"`

	// RestartCooldown is the minimum spacing between automatic restarts.
	RestartCooldown time.Duration `koanf:"restart_cooldown" validate:"gte=0"`
}

// StateConfig controls the state store.
type StateConfig struct {
	// File is the durable JSON document.
	File string `koanf:"file" validate:"required"`

	CacheEnabled bool `koanf:"cache_enabled"`

	// CachePath is the badger directory; empty keeps the cache in memory.
	CachePath string        `koanf:"cache_path"`
	CacheTTL  time.Duration `koanf:"cache_ttl" validate:"gte=0"`

	// WriteRetries is the number of attempts for each durable write.
	WriteRetries int `koanf:"write_retries" validate:"min=1"`

	// DefaultPlaylist names the catalog playlist played when nothing is
	// active. Empty leaves the stored default untouched.
	DefaultPlaylist string `koanf:"default_playlist"`
}

// CatalogConfig points at the playlist library.
type CatalogConfig struct {
	PlaylistsDir string `koanf:"playlists_dir" validate:"required"`
}

// SnapshotConfig controls frame capture and retention.
type SnapshotConfig struct {
	Dir           string        `koanf:"dir" validate:"required"`
	CanonicalName string        `koanf:"canonical_name" validate:"required"`
	Prefix        string        `koanf:"prefix"`
	Format        string        `koanf:"format" validate:"oneof=jpg png"`
	Width         int           `koanf:"width" validate:"gte=0"`
	Timeout       time.Duration `koanf:"timeout" validate:"gt=0"`
	Retention     time.Duration `koanf:"retention" validate:"gte=0"`
	MaxFiles      int           `koanf:"max_files" validate:"gte=0"`
	PurgeInterval time.Duration `koanf:"purge_interval" validate:"gt=0"`

	// Inline embeds the image as a base64 data URI in heartbeats instead of
	// sending the file path.
	Inline bool `koanf:"inline"`
}

// ChannelConfig configures one websocket session. The control and telemetry
// sections share this shape.
type ChannelConfig struct {
	Enabled              bool          `koanf:"enabled"`
	URL                  string        `koanf:"url"`
	MaxReconnectAttempts int           `koanf:"max_reconnect_attempts" validate:"min=1"`
	ReconnectDelay       time.Duration `koanf:"reconnect_delay" validate:"gt=0"`
	HandshakeTimeout     time.Duration `koanf:"handshake_timeout" validate:"gt=0"`
	AuthTimeout          time.Duration `koanf:"auth_timeout" validate:"gt=0"`

	// ProbeInterval is the slow availability probe used by the control
	// channel after reconnects are exhausted.
	ProbeInterval time.Duration `koanf:"probe_interval" validate:"gt=0"`

	// Cooldown is the pause before the telemetry channel resets its attempts.
	Cooldown time.Duration `koanf:"cooldown" validate:"gt=0"`
}

// HeartbeatConfig controls the heartbeat loop.
type HeartbeatConfig struct {
	Interval      time.Duration `koanf:"interval" validate:"gt=0"`
	StatusTimeout time.Duration `koanf:"status_timeout" validate:"gt=0"`
}

// APIConfig controls the local HTTP surface.
type APIConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Listen          string        `koanf:"listen"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// CORSOrigins lists browser origins allowed to call the API, e.g. a
	// dashboard on the LAN. Empty disables CORS.
	CORSOrigins []string `koanf:"cors_origins"`

	// WriteRateLimit caps state-changing requests per minute per client.
	WriteRateLimit int `koanf:"write_rate_limit" validate:"gte=0"`
}

// NotificationsConfig selects the notification sink.
type NotificationsConfig struct {
	Sink string `koanf:"sink" validate:"oneof=none log"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// SupervisorConfig tunes the suture tree.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gt=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}
