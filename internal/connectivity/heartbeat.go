// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package connectivity

import (
	"context"
	"time"

	"github.com/tomtom215/playwarden/internal/logging"
	"github.com/tomtom215/playwarden/internal/metrics"
	"github.com/tomtom215/playwarden/internal/models"
)

// heartbeatLoop emits a heartbeat now and then every interval until ctx is
// done.
func (s *Supervisor) heartbeatLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.hb.Interval)
	defer ticker.Stop()

	for {
		s.beat(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// beat gathers status, snapshot and playlist, then emits one heartbeat on
// control and mirrors it to telemetry. Sub-step failures leave the field
// empty; beat itself never fails.
func (s *Supervisor) beat(ctx context.Context) {
	s.beatMu.Lock()
	defer s.beatMu.Unlock()

	log := logging.WithComponent("heartbeat")
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Heartbeat panicked")
		}
	}()

	msg := s.buildHeartbeat(ctx)

	env, err := models.NewEnvelope(models.EventHeartbeat, msg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode heartbeat")
		return
	}

	if err := s.control.Send(ctx, env); err != nil {
		log.Warn().Err(err).Msg("Heartbeat not sent on control channel")
	} else {
		metrics.HeartbeatsSent.WithLabelValues(string(Control)).Inc()
	}

	if s.telemetry == nil || !s.telemetry.Usable() {
		return
	}
	if err := s.telemetry.Send(ctx, env); err != nil {
		log.Debug().Err(err).Msg("Heartbeat not mirrored to telemetry")
		return
	}
	s.telemetry.ResetAttempts()
	metrics.HeartbeatsSent.WithLabelValues(string(Telemetry)).Inc()
}

func (s *Supervisor) buildHeartbeat(ctx context.Context) models.HeartbeatMessage {
	start := time.Now()
	defer func() { metrics.HeartbeatBuildDuration.Observe(time.Since(start).Seconds()) }()

	statusCtx, cancel := context.WithTimeout(ctx, s.hb.StatusTimeout)
	status := s.playback.GetStatus(statusCtx)
	cancel()

	var snapshot *string
	if s.snapshots != nil {
		snapshot = s.snapshots.Capture(ctx)
	}

	rec := s.playlists.ActivePlaylist(ctx)
	return models.NewHeartbeat(s.identity.Identity(), time.Now(), status, rec, snapshot)
}
