// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

// Package playback owns the external player process.
//
// Start resolves the active playlist from the state store (falling back to
// the default playlist), spawns the player and, after a warm-up delay, asks
// its control interface to load the playlist. Two things bring a dead
// player back:
//
//   - the exit handler, which restarts on a non-zero exit code
//   - the watchdog, which polls liveness every WatchdogInterval
//
// Restarts are keyed by process generation. Triggers for the same dead
// process share one restart; a trigger for a process that has already been
// replaced or deliberately stopped is dropped. Automatic restarts also pass
// through a cooldown limiter, and one that fails to spawn the player is
// retried every WatchdogInterval while a playlist is configured. Manual
// restarts never wait for the limiter.
package playback

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/tomtom215/playwarden/internal/catalog"
	"github.com/tomtom215/playwarden/internal/config"
	"github.com/tomtom215/playwarden/internal/logging"
	"github.com/tomtom215/playwarden/internal/metrics"
	"github.com/tomtom215/playwarden/internal/models"
	"github.com/tomtom215/playwarden/internal/notify"
)

// Idle reasons reported in PlayerStatus.Reason.
const (
	ReasonNotStarted  = "not started"
	ReasonNoPlaylist  = "no playlist configured"
	ReasonStopped     = "stopped"
	ReasonExited      = "player exited"
	ReasonUnplayable  = "playlist not playable"
	ReasonSpawnFailed = "player failed to start"
	killTimeout       = 5 * time.Second
	triggerCrash      = "crash"
	triggerWatchdog   = "watchdog"
	triggerManual     = "manual"
	triggerRetry      = "retry"

	// statusWarmupAllowance is how long after WarmupDelay an unreachable
	// control interface is still reported as starting.
	statusWarmupAllowance = 10 * time.Second
)

// StateSource is the part of the state store playback uses.
type StateSource interface {
	ActivePlaylist(ctx context.Context) models.ActivePlaylistRecord
	Default(ctx context.Context) (models.PlaylistRef, bool)
	Update(ctx context.Context, patch models.PlaylistPatch) (models.ActivePlaylistRecord, error)
	SetPlayerStatus(models.PlayerStatus)
}

// Controller is the player's control interface.
type Controller interface {
	Status(ctx context.Context) (models.PlayerStatus, error)
	Load(ctx context.Context, input string) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Volume(ctx context.Context, delta int) error
	Snapshot(ctx context.Context) error
}

// Options wires a Supervisor.
type Options struct {
	Player   config.PlayerConfig
	Snapshot config.SnapshotConfig
	Store    StateSource
	Control  Controller
	Launcher Launcher
	Sink     notify.Sink
}

// Supervisor keeps one player process alive.
type Supervisor struct {
	cfg      config.PlayerConfig
	snap     config.SnapshotConfig
	store    StateSource
	player   Controller
	launcher Launcher
	sink     notify.Sink
	log      zerolog.Logger

	life   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// opMu serializes start, stop and restart so two processes never
	// overlap.
	opMu sync.Mutex

	mu         sync.Mutex
	proc       Process
	procCancel context.CancelFunc
	gen        uint64
	startedAt  time.Time
	current    models.ActivePlaylistRecord
	idle       models.PlayerStatus

	restarts singleflight.Group
	limiter  *rate.Limiter
}

// New creates a Supervisor. Nothing is spawned until Start.
func New(opts Options) *Supervisor {
	life, cancel := context.WithCancel(context.Background())

	limit := rate.Inf
	if opts.Player.RestartCooldown > 0 {
		limit = rate.Every(opts.Player.RestartCooldown)
	}
	launcher := opts.Launcher
	if launcher == nil {
		launcher = ExecLauncher{}
	}
	sink := opts.Sink
	if sink == nil {
		sink = notify.Noop{}
	}

	return &Supervisor{
		cfg:      opts.Player,
		snap:     opts.Snapshot,
		store:    opts.Store,
		player:   opts.Control,
		launcher: launcher,
		sink:     sink,
		log:      logging.WithComponent("playback"),
		life:     life,
		cancel:   cancel,
		idle:     models.StoppedStatus(ReasonNotStarted),
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// Start spawns the player for the active playlist. It returns false when
// there is nothing to play or the player could not be spawned; neither is
// an error for the caller.
func (s *Supervisor) Start(ctx context.Context) bool {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.startLocked(ctx)
}

// Stop kills the player, if any, and cancels the watchdog.
func (s *Supervisor) Stop() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.stopLocked(ReasonStopped)
}

// Restart stops the player, waits the grace delay and starts it again with
// a freshly read playlist. Concurrent calls share one restart.
func (s *Supervisor) Restart(ctx context.Context) bool {
	return s.restart(ctx, s.generation(), triggerManual, false)
}

// Running reports whether a player process is alive.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc != nil && !exited(s.proc)
}

// Current returns the record the running player was started with.
func (s *Supervisor) Current() models.ActivePlaylistRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// GetStatus polls the player. It never fails: an unreachable player shows
// up as starting during warm-up and as error afterwards.
func (s *Supervisor) GetStatus(ctx context.Context) models.PlayerStatus {
	s.mu.Lock()
	proc, started, idle := s.proc, s.startedAt, s.idle
	s.mu.Unlock()

	if proc == nil || exited(proc) {
		if proc != nil {
			idle = models.StoppedStatus(ReasonExited)
		}
		s.store.SetPlayerStatus(idle)
		return idle
	}

	st, err := s.player.Status(ctx)
	if err != nil {
		warmup := s.cfg.WarmupDelay + statusWarmupAllowance
		if time.Since(started) < warmup {
			st = models.PlayerStatus{State: models.PlayerStarting}
		} else {
			st = models.PlayerStatus{State: models.PlayerError, Reason: err.Error()}
		}
	}
	s.store.SetPlayerStatus(st)
	return st
}

// Close stops the player and waits for background work to finish.
func (s *Supervisor) Close() {
	s.Stop()
	s.cancel()
	s.wg.Wait()
}

func (s *Supervisor) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// startLocked must be called with opMu held.
func (s *Supervisor) startLocked(ctx context.Context) bool {
	s.stopLocked(ReasonStopped)

	rec, ok := s.resolveTarget(ctx)
	if !ok {
		s.log.Info().Msg("No playlist configured, player not started")
		metrics.PlayerStarts.WithLabelValues("no_playlist").Inc()
		s.setIdle(models.StoppedStatus(ReasonNoPlaylist))
		return false
	}

	path := rec.Path()
	if err := catalog.CheckPlayable(path); err != nil {
		s.log.Error().Err(err).Str("path", path).Msg("Playlist is not playable")
		metrics.PlayerStarts.WithLabelValues("failed").Inc()
		s.setIdle(models.PlayerStatus{State: models.PlayerError, Reason: ReasonUnplayable + ": " + err.Error()})
		return false
	}

	proc, err := s.launcher.Launch(s.cfg.Binary, BuildArgs(s.cfg, s.snap, path))
	if err != nil {
		s.log.Error().Err(err).Str("binary", s.cfg.Binary).Msg("Failed to spawn player")
		metrics.PlayerStarts.WithLabelValues("failed").Inc()
		s.setIdle(models.PlayerStatus{State: models.PlayerError, Reason: ReasonSpawnFailed + ": " + err.Error()})
		return false
	}

	procCtx, procCancel := context.WithCancel(s.life)
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.proc = proc
	s.procCancel = procCancel
	s.startedAt = time.Now()
	s.current = rec.Clone()
	s.mu.Unlock()

	s.store.SetPlayerStatus(models.PlayerStatus{State: models.PlayerStarting})
	metrics.PlayerStarts.WithLabelValues("started").Inc()
	metrics.PlayerRunning.Set(1)
	s.log.Info().Int("pid", proc.PID()).Str("playlist", rec.Name()).Bool("is_default", rec.IsDefault).Msg("Player started")
	notify.Send(s.sink, notify.PlayerStarted, "Playing %s", rec.Name())

	s.wg.Add(3)
	go s.awaitExit(gen, proc)
	go s.loadAfterWarmup(procCtx, path)
	go s.watchdog(procCtx, gen, proc)
	return true
}

// stopLocked must be called with opMu held. It bumps the generation so
// pending exit handlers and restart triggers for the old process are
// ignored.
func (s *Supervisor) stopLocked(reason string) {
	s.mu.Lock()
	proc, cancel := s.proc, s.procCancel
	s.proc, s.procCancel = nil, nil
	s.gen++
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if proc == nil {
		return
	}

	if err := proc.Kill(); err != nil {
		s.log.Warn().Err(err).Int("pid", proc.PID()).Msg("Kill failed")
	}
	select {
	case <-proc.Done():
	case <-time.After(killTimeout):
		s.log.Warn().Int("pid", proc.PID()).Msg("Player did not exit after kill")
	}

	metrics.PlayerRunning.Set(0)
	s.setIdle(models.StoppedStatus(reason))
	s.log.Info().Int("pid", proc.PID()).Msg("Player stopped")
	notify.Send(s.sink, notify.PlayerStopped, "Player stopped")
}

// resolveTarget returns the active playlist, promoting the default
// playlist when nothing is active.
func (s *Supervisor) resolveTarget(ctx context.Context) (models.ActivePlaylistRecord, bool) {
	rec := s.store.ActivePlaylist(ctx)
	if rec.Configured() {
		return rec, true
	}

	def, ok := s.store.Default(ctx)
	if !ok {
		return rec, false
	}

	count, _ := catalog.CountEntries(def.PlaylistPath)
	patch := models.SelectPlaylist(def.PlaylistName, def.PlaylistPath, count)
	isDefault := true
	patch.IsDefault = &isDefault

	updated, err := s.store.Update(ctx, patch)
	if err != nil {
		s.log.Warn().Err(err).Str("playlist", def.PlaylistName).Msg("Could not record default playlist as active")
		name, path := def.PlaylistName, def.PlaylistPath
		return models.ActivePlaylistRecord{PlaylistName: &name, PlaylistPath: &path, FileCount: count, IsDefault: true, IsActive: true}, true
	}
	s.log.Info().Str("playlist", def.PlaylistName).Msg("No active playlist, using default")
	return updated, true
}

func (s *Supervisor) restart(ctx context.Context, gen uint64, trigger string, automatic bool) bool {
	key := strconv.FormatUint(gen, 10)
	if automatic {
		key += "/auto"
	}
	v, _, shared := s.restarts.Do(key, func() (any, error) {
		if automatic {
			if err := s.limiter.Wait(ctx); err != nil {
				return false, nil
			}
		}

		s.opMu.Lock()
		defer s.opMu.Unlock()

		if s.generation() != gen {
			s.log.Debug().Str("trigger", trigger).Msg("Restart superseded")
			return s.Running(), nil
		}

		metrics.PlayerRestarts.WithLabelValues(trigger).Inc()
		s.log.Info().Str("trigger", trigger).Msg("Restarting player")

		s.stopLocked(ReasonStopped)
		if !sleepCtx(ctx, s.cfg.GraceDelay) {
			return false, nil
		}
		if s.startLocked(ctx) {
			return true, nil
		}
		if automatic && s.hasTarget(ctx) {
			s.retryLater(s.generation())
		}
		return false, nil
	})
	if shared {
		metrics.PlayerRestartsCoalesced.Inc()
	}
	ok, _ := v.(bool)
	return ok
}

// hasTarget reports whether there is a playlist the player should be
// running.
func (s *Supervisor) hasTarget(ctx context.Context) bool {
	if s.store.ActivePlaylist(ctx).Configured() {
		return true
	}
	_, ok := s.store.Default(ctx)
	return ok
}

// retryLater schedules another automatic restart for generation gen after
// WatchdogInterval. A Start, Stop or Restart in the meantime moves the
// generation on and the retry is dropped.
func (s *Supervisor) retryLater(gen uint64) {
	s.log.Warn().Dur("in", s.cfg.WatchdogInterval).Msg("Player did not come back, retrying")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if !sleepCtx(s.life, s.cfg.WatchdogInterval) {
			return
		}
		s.restart(s.life, gen, triggerRetry, true)
	}()
}

// triggerRestart schedules an automatic restart for generation gen.
func (s *Supervisor) triggerRestart(gen uint64, trigger string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.restart(s.life, gen, trigger, true)
	}()
}

func (s *Supervisor) awaitExit(gen uint64, proc Process) {
	defer s.wg.Done()
	select {
	case <-proc.Done():
	case <-s.life.Done():
		return
	}

	if s.generation() != gen {
		return
	}

	code := proc.ExitCode()
	metrics.PlayerRunning.Set(0)
	if code == 0 {
		s.log.Info().Int("pid", proc.PID()).Msg("Player exited cleanly")
		s.setIdle(models.StoppedStatus(ReasonExited))
		return
	}

	s.log.Warn().Int("pid", proc.PID()).Int("exit_code", code).Msg("Player crashed, restarting")
	s.setIdle(models.PlayerStatus{State: models.PlayerError, Reason: "exit code " + strconv.Itoa(code)})
	notify.Send(s.sink, notify.PlayerCrashed, "Player exited with code %d", code)
	s.triggerRestart(gen, triggerCrash)
}

func (s *Supervisor) loadAfterWarmup(ctx context.Context, path string) {
	defer s.wg.Done()
	if !sleepCtx(ctx, s.cfg.WarmupDelay) {
		return
	}
	if err := s.player.Load(ctx, path); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("Could not submit playlist to player")
		return
	}
	s.log.Debug().Str("path", path).Msg("Playlist submitted to player")
}

func (s *Supervisor) watchdog(ctx context.Context, gen uint64, proc Process) {
	defer s.wg.Done()
	if !sleepCtx(ctx, s.cfg.WatchdogDelay) {
		return
	}

	ticker := time.NewTicker(s.cfg.WatchdogInterval)
	defer ticker.Stop()

	for {
		checkCtx, cancel := context.WithTimeout(ctx, s.cfg.WatchdogInterval)
		alive := proc.Alive(checkCtx)
		cancel()
		if ctx.Err() != nil {
			return
		}
		if !alive {
			s.log.Warn().Int("pid", proc.PID()).Msg("Watchdog found player dead")
			s.triggerRestart(gen, triggerWatchdog)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Supervisor) setIdle(st models.PlayerStatus) {
	s.mu.Lock()
	s.idle = st
	s.mu.Unlock()
	s.store.SetPlayerStatus(st)
}

func exited(p Process) bool {
	select {
	case <-p.Done():
		return true
	default:
		return false
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
