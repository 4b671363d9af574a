// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Player process

	PlayerStarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playwarden_player_starts_total",
			Help: "Player start attempts by outcome",
		},
		[]string{"result"}, // "started", "no_playlist", "failed"
	)

	PlayerRestarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playwarden_player_restarts_total",
			Help: "Player restarts by trigger",
		},
		[]string{"trigger"}, // "crash", "watchdog", "command", "api"
	)

	PlayerRestartsCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playwarden_player_restarts_coalesced_total",
			Help: "Restart requests folded into a restart already in progress",
		},
	)

	PlayerRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "playwarden_player_running",
			Help: "1 while the player process is alive",
		},
	)

	PlayerCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "playwarden_player_command_duration_seconds",
			Help:    "Latency of player control interface requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"command"},
	)

	PlayerCommandErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playwarden_player_command_errors_total",
			Help: "Failed player control interface requests",
		},
		[]string{"command"},
	)

	// Circuit breaker

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "playwarden_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playwarden_circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playwarden_circuit_breaker_state_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Channels

	ChannelState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "playwarden_channel_state",
			Help: "Session state (0=disconnected, 1=connecting, 2=connected, 3=authenticated, 4=backoff, 5=probing)",
		},
		[]string{"channel"},
	)

	ChannelConnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playwarden_channel_connect_attempts_total",
			Help: "Channel dial attempts by outcome",
		},
		[]string{"channel", "result"},
	)

	HeartbeatsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playwarden_heartbeats_sent_total",
			Help: "Heartbeats written per channel",
		},
		[]string{"channel"},
	)

	HeartbeatBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "playwarden_heartbeat_build_duration_seconds",
			Help:    "Time spent gathering status and snapshot for one heartbeat",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
	)

	CommandsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playwarden_commands_total",
			Help: "Remote commands by action and acknowledgment status",
		},
		[]string{"action", "status"},
	)

	// Snapshots

	SnapshotCaptures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playwarden_snapshot_captures_total",
			Help: "Snapshot captures by outcome",
		},
		[]string{"result"}, // "ok", "unavailable"
	)

	SnapshotsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playwarden_snapshots_purged_total",
			Help: "Snapshot files removed by retention",
		},
	)

	// State store

	StateWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playwarden_state_writes_total",
			Help: "State writes by tier and outcome",
		},
		[]string{"tier", "result"}, // tier: "cache", "file"
	)

	StateReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playwarden_state_reads_total",
			Help: "State reads by the tier that answered",
		},
		[]string{"tier"}, // "cache", "file", "default"
	)

	// Retry

	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playwarden_retry_attempts_total",
			Help: "Retries scheduled after a failed attempt",
		},
		[]string{"operation"},
	)

	RetryExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playwarden_retry_exhausted_total",
			Help: "Operations that failed after all retries",
		},
		[]string{"operation"},
	)

	// Local API

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "playwarden_api_request_duration_seconds",
			Help:    "Local API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordPlayerCommand records the latency and outcome of a player request.
func RecordPlayerCommand(command string, duration time.Duration, err error) {
	PlayerCommandDuration.WithLabelValues(command).Observe(duration.Seconds())
	if err != nil {
		PlayerCommandErrors.WithLabelValues(command).Inc()
	}
}

// RecordStateWrite records one write to a state tier.
func RecordStateWrite(tier string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	StateWrites.WithLabelValues(tier, result).Inc()
}

// RecordConnectAttempt records one channel dial.
func RecordConnectAttempt(channel string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ChannelConnectAttempts.WithLabelValues(channel, result).Inc()
}
