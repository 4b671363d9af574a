// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package playback

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/playwarden/internal/config"
	"github.com/tomtom215/playwarden/internal/models"
	"github.com/tomtom215/playwarden/internal/notify"
	"github.com/tomtom215/playwarden/internal/state"
)

type fakeProcess struct {
	pid  int
	l    *fakeLauncher
	done chan struct{}
	once sync.Once
	code atomic.Int32
	hung atomic.Bool
}

func (p *fakeProcess) PID() int              { return p.pid }
func (p *fakeProcess) Done() <-chan struct{} { return p.done }
func (p *fakeProcess) ExitCode() int         { return int(p.code.Load()) }

func (p *fakeProcess) Kill() error {
	p.exit(-1)
	return nil
}

func (p *fakeProcess) Alive(context.Context) bool {
	if p.hung.Load() {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *fakeProcess) exit(code int) {
	p.once.Do(func() {
		p.code.Store(int32(code))
		p.l.exited()
		close(p.done)
	})
}

type fakeLauncher struct {
	mu       sync.Mutex
	procs    []*fakeProcess
	args     [][]string
	alive    int
	overlap  bool
	lastExit time.Time
	gaps     []time.Duration
	fail     error
}

func (l *fakeLauncher) Launch(_ string, args []string) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return nil, l.fail
	}
	l.alive++
	if l.alive > 1 {
		l.overlap = true
	}
	if !l.lastExit.IsZero() {
		l.gaps = append(l.gaps, time.Since(l.lastExit))
	}
	p := &fakeProcess{pid: 1000 + len(l.procs), l: l, done: make(chan struct{})}
	l.procs = append(l.procs, p)
	l.args = append(l.args, args)
	return p, nil
}

func (l *fakeLauncher) setFail(err error) {
	l.mu.Lock()
	l.fail = err
	l.mu.Unlock()
}

func (l *fakeLauncher) exited() {
	l.mu.Lock()
	l.alive--
	l.lastExit = time.Now()
	l.mu.Unlock()
}

func (l *fakeLauncher) launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.procs)
}

func (l *fakeLauncher) last() *fakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.procs) == 0 {
		return nil
	}
	return l.procs[len(l.procs)-1]
}

type fakeController struct {
	mu        sync.Mutex
	calls     []string
	loaded    []string
	snapErr   error
	statusErr error
}

func (c *fakeController) record(name string) error {
	c.mu.Lock()
	c.calls = append(c.calls, name)
	c.mu.Unlock()
	return nil
}

func (c *fakeController) Status(context.Context) (models.PlayerStatus, error) {
	c.mu.Lock()
	err := c.statusErr
	c.mu.Unlock()
	if err != nil {
		return models.PlayerStatus{}, err
	}
	return models.PlayerStatus{State: models.PlayerPlaying, Volume: 256}, nil
}

func (c *fakeController) Load(_ context.Context, input string) error {
	c.mu.Lock()
	c.loaded = append(c.loaded, input)
	c.mu.Unlock()
	return nil
}

func (c *fakeController) Play(context.Context) error     { return c.record("play") }
func (c *fakeController) Pause(context.Context) error    { return c.record("pause") }
func (c *fakeController) Stop(context.Context) error     { return c.record("stop") }
func (c *fakeController) Next(context.Context) error     { return c.record("next") }
func (c *fakeController) Previous(context.Context) error { return c.record("previous") }
func (c *fakeController) Volume(context.Context, int) error {
	return c.record("volume")
}

func (c *fakeController) Snapshot(context.Context) error {
	if c.snapErr != nil {
		return c.snapErr
	}
	return c.record("snapshot")
}

func (c *fakeController) loads() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.loaded...)
}

func testPlayerConfig() config.PlayerConfig {
	return config.PlayerConfig{
		Binary:           "vlc",
		Host:             "127.0.0.1",
		Port:             8080,
		Password:         "secret",
		RequestTimeout:   time.Second,
		WarmupDelay:      5 * time.Millisecond,
		GraceDelay:       20 * time.Millisecond,
		WatchdogDelay:    time.Hour,
		WatchdogInterval: time.Hour,
	}
}

func writePlaylist(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name+".m3u")
	if err := os.WriteFile(path, []byte("#EXTM3U\na.mp4\nb.mp4\nc.mp4\n"), 0o644); err != nil {
		t.Fatalf("write playlist: %v", err)
	}
	return path
}

type harness struct {
	sup      *Supervisor
	store    *state.Store
	launcher *fakeLauncher
	player   *fakeController
	sink     *notify.Recorder
	dir      string
}

func newHarness(t *testing.T, cfg config.PlayerConfig) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		store:    state.New(state.Options{FilePath: filepath.Join(dir, "state.json")}),
		launcher: &fakeLauncher{},
		player:   &fakeController{},
		sink:     &notify.Recorder{},
		dir:      dir,
	}
	h.sup = New(Options{
		Player:   cfg,
		Snapshot: config.SnapshotConfig{Dir: dir, CanonicalName: "snapshot.jpg", Prefix: "snapshot", Format: "jpg"},
		Store:    h.store,
		Control:  h.player,
		Launcher: h.launcher,
		Sink:     h.sink,
	})
	t.Cleanup(h.sup.Close)
	return h
}

func (h *harness) activate(t *testing.T, name string) string {
	t.Helper()
	path := writePlaylist(t, h.dir, name)
	if _, err := h.store.Update(context.Background(), models.SelectPlaylist(name, path, 3)); err != nil {
		t.Fatalf("Update: %v", err)
	}
	return path
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStartWithoutPlaylist(t *testing.T) {
	h := newHarness(t, testPlayerConfig())

	if h.sup.Start(context.Background()) {
		t.Fatal("Start returned true with no playlist")
	}
	if n := h.launcher.launches(); n != 0 {
		t.Errorf("launches = %d, want 0", n)
	}
	if h.sup.Running() {
		t.Error("Running() = true")
	}

	st := h.sup.GetStatus(context.Background())
	if st.State != models.PlayerStopped || st.Reason != ReasonNoPlaylist {
		t.Errorf("status = %+v", st)
	}
	if got := h.store.Get(context.Background()).Player.Reason; got != ReasonNoPlaylist {
		t.Errorf("stored reason = %q", got)
	}
}

func TestStartSpawnsAndLoads(t *testing.T) {
	h := newHarness(t, testPlayerConfig())
	path := h.activate(t, "intro")

	if !h.sup.Start(context.Background()) {
		t.Fatal("Start returned false")
	}
	if !h.sup.Running() {
		t.Fatal("Running() = false after Start")
	}

	args := h.launcher.args[0]
	if args[len(args)-1] != path {
		t.Errorf("last arg = %q, want playlist path", args[len(args)-1])
	}

	waitFor(t, "playlist load", func() bool { return len(h.player.loads()) == 1 })
	if got := h.player.loads()[0]; got != path {
		t.Errorf("loaded %q, want %q", got, path)
	}

	st := h.sup.GetStatus(context.Background())
	if st.State != models.PlayerPlaying {
		t.Errorf("state = %q, want playing", st.State)
	}
	if h.sup.Current().Name() != "intro" {
		t.Errorf("current = %q", h.sup.Current().Name())
	}
}

func TestStartFallsBackToDefault(t *testing.T) {
	h := newHarness(t, testPlayerConfig())
	path := writePlaylist(t, h.dir, "fallback")
	ref := &models.PlaylistRef{PlaylistName: "fallback", PlaylistPath: path}
	if err := h.store.SetDefault(context.Background(), ref); err != nil {
		t.Fatalf("SetDefault: %v", err)
	}

	if !h.sup.Start(context.Background()) {
		t.Fatal("Start returned false with a default playlist")
	}

	rec := h.store.ActivePlaylist(context.Background())
	if rec.Name() != "fallback" || !rec.IsDefault || !rec.IsActive {
		t.Errorf("record = %+v", rec)
	}
	if rec.FileCount != 3 {
		t.Errorf("FileCount = %d, want 3", rec.FileCount)
	}
}

func TestStartRejectsUnplayablePlaylist(t *testing.T) {
	h := newHarness(t, testPlayerConfig())
	path := filepath.Join(h.dir, "empty.m3u")
	if err := os.WriteFile(path, []byte("#EXTM3U\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := h.store.Update(context.Background(), models.SelectPlaylist("empty", path, 0)); err != nil {
		t.Fatal(err)
	}

	if h.sup.Start(context.Background()) {
		t.Fatal("Start returned true for an empty playlist")
	}
	if h.launcher.launches() != 0 {
		t.Error("player was spawned")
	}
}

func TestStartSpawnFailure(t *testing.T) {
	h := newHarness(t, testPlayerConfig())
	h.activate(t, "intro")
	h.launcher.setFail(errors.New("exec: not found"))

	if h.sup.Start(context.Background()) {
		t.Fatal("Start returned true when spawn failed")
	}
	if st := h.sup.GetStatus(context.Background()); st.State != models.PlayerError {
		t.Errorf("state = %q, want error", st.State)
	}
}

func TestCrashesRestartWithoutOverlap(t *testing.T) {
	cfg := testPlayerConfig()
	h := newHarness(t, cfg)
	h.activate(t, "intro")

	if !h.sup.Start(context.Background()) {
		t.Fatal("Start returned false")
	}

	const crashes = 3
	for i := 1; i <= crashes; i++ {
		h.launcher.last().exit(1)
		want := i + 1
		waitFor(t, "restart", func() bool { return h.launcher.launches() == want && h.sup.Running() })
	}

	time.Sleep(50 * time.Millisecond)
	if n := h.launcher.launches(); n != crashes+1 {
		t.Errorf("launches = %d, want %d", n, crashes+1)
	}

	h.launcher.mu.Lock()
	defer h.launcher.mu.Unlock()
	if h.launcher.overlap {
		t.Error("two player processes were alive at once")
	}
	for i, gap := range h.launcher.gaps {
		if gap < cfg.GraceDelay {
			t.Errorf("restart %d gap = %v, want >= %v", i, gap, cfg.GraceDelay)
		}
	}
}

func TestFailedRespawnIsRetried(t *testing.T) {
	cfg := testPlayerConfig()
	cfg.WatchdogInterval = 10 * time.Millisecond
	h := newHarness(t, cfg)
	h.activate(t, "intro")

	if !h.sup.Start(context.Background()) {
		t.Fatal("Start returned false")
	}

	h.launcher.setFail(errors.New("exec: not found"))
	h.launcher.last().exit(1)
	waitFor(t, "failed respawn", func() bool {
		return h.sup.GetStatus(context.Background()).State == models.PlayerError
	})
	time.Sleep(30 * time.Millisecond)
	if h.sup.Running() {
		t.Fatal("Running() = true while spawns fail")
	}

	h.launcher.setFail(nil)
	waitFor(t, "player back", func() bool { return h.launcher.launches() == 2 && h.sup.Running() })

	time.Sleep(50 * time.Millisecond)
	if n := h.launcher.launches(); n != 2 {
		t.Errorf("launches = %d, want 2", n)
	}
}

func TestFailedRespawnNotRetriedAfterStop(t *testing.T) {
	cfg := testPlayerConfig()
	cfg.WatchdogInterval = 30 * time.Millisecond
	h := newHarness(t, cfg)
	h.activate(t, "intro")
	h.sup.Start(context.Background())

	h.launcher.setFail(errors.New("exec: not found"))
	h.launcher.last().exit(1)
	waitFor(t, "failed respawn", func() bool {
		return h.sup.GetStatus(context.Background()).State == models.PlayerError
	})
	h.sup.Stop()
	h.launcher.setFail(nil)

	time.Sleep(100 * time.Millisecond)
	if n := h.launcher.launches(); n != 1 {
		t.Errorf("launches = %d, want 1", n)
	}
}

func TestCleanExitIsNotRestarted(t *testing.T) {
	h := newHarness(t, testPlayerConfig())
	h.activate(t, "intro")
	h.sup.Start(context.Background())

	h.launcher.last().exit(0)
	time.Sleep(100 * time.Millisecond)

	if n := h.launcher.launches(); n != 1 {
		t.Errorf("launches = %d, want 1", n)
	}
	if h.sup.Running() {
		t.Error("Running() = true after exit")
	}
	if st := h.sup.GetStatus(context.Background()); st.State != models.PlayerStopped {
		t.Errorf("state = %q, want stopped", st.State)
	}
}

func TestWatchdogRestartsDeadPlayer(t *testing.T) {
	cfg := testPlayerConfig()
	cfg.WatchdogDelay = 10 * time.Millisecond
	cfg.WatchdogInterval = 10 * time.Millisecond
	h := newHarness(t, cfg)
	h.activate(t, "intro")
	h.sup.Start(context.Background())

	h.launcher.last().hung.Store(true)

	waitFor(t, "watchdog restart", func() bool { return h.launcher.launches() == 2 })
	if h.launcher.overlap {
		t.Error("processes overlapped")
	}
}

func TestWatchdogNotStartedWithoutPlaylist(t *testing.T) {
	cfg := testPlayerConfig()
	cfg.WatchdogDelay = time.Millisecond
	cfg.WatchdogInterval = time.Millisecond
	h := newHarness(t, cfg)

	h.sup.Start(context.Background())
	time.Sleep(30 * time.Millisecond)

	if n := h.launcher.launches(); n != 0 {
		t.Errorf("launches = %d, want 0", n)
	}
}

func TestConcurrentRestartsCoalesce(t *testing.T) {
	cfg := testPlayerConfig()
	cfg.GraceDelay = 100 * time.Millisecond
	h := newHarness(t, cfg)
	h.activate(t, "intro")
	h.sup.Start(context.Background())

	var wg sync.WaitGroup
	gate := make(chan struct{})
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			h.sup.Restart(context.Background())
		}()
	}
	close(gate)
	wg.Wait()

	if n := h.launcher.launches(); n != 2 {
		t.Errorf("launches = %d, want 2", n)
	}
	if h.launcher.overlap {
		t.Error("processes overlapped")
	}
}

func TestRestartPicksUpNewPlaylist(t *testing.T) {
	h := newHarness(t, testPlayerConfig())
	h.activate(t, "intro")
	h.sup.Start(context.Background())

	path := h.activate(t, "outro")
	if !h.sup.Restart(context.Background()) {
		t.Fatal("Restart returned false")
	}

	args := h.launcher.args[len(h.launcher.args)-1]
	if args[len(args)-1] != path {
		t.Errorf("restart played %q, want %q", args[len(args)-1], path)
	}
}

func TestStopSuppressesPendingRestart(t *testing.T) {
	cfg := testPlayerConfig()
	cfg.RestartCooldown = time.Hour
	h := newHarness(t, cfg)
	h.activate(t, "intro")
	h.sup.Start(context.Background())

	// Consume the limiter token so the crash restart has to wait.
	h.sup.limiter.Allow()
	h.launcher.last().exit(1)
	time.Sleep(20 * time.Millisecond)
	h.sup.Stop()

	time.Sleep(50 * time.Millisecond)
	if n := h.launcher.launches(); n != 1 {
		t.Errorf("launches = %d, want 1", n)
	}
}

func TestManualRestartSkipsCooldown(t *testing.T) {
	cfg := testPlayerConfig()
	cfg.RestartCooldown = time.Hour
	h := newHarness(t, cfg)
	h.activate(t, "intro")
	h.sup.Start(context.Background())

	// The crash restart blocks on the cooldown.
	h.sup.limiter.Allow()
	h.launcher.last().exit(1)
	time.Sleep(20 * time.Millisecond)

	done := make(chan bool, 1)
	go func() { done <- h.sup.Restart(context.Background()) }()
	select {
	case ok := <-done:
		if !ok {
			t.Fatal("Restart returned false")
		}
	case <-time.After(time.Second):
		t.Fatal("manual Restart waited for the cooldown")
	}

	if n := h.launcher.launches(); n != 2 {
		t.Errorf("launches = %d, want 2", n)
	}
	if !h.sup.Running() {
		t.Error("Running() = false after Restart")
	}
}

func TestStatusStartingDuringWarmup(t *testing.T) {
	h := newHarness(t, testPlayerConfig())
	h.activate(t, "intro")
	h.player.statusErr = errors.New("connection refused")
	h.sup.Start(context.Background())

	if st := h.sup.GetStatus(context.Background()); st.State != models.PlayerStarting {
		t.Errorf("state = %q, want starting", st.State)
	}

	h.sup.mu.Lock()
	h.sup.startedAt = time.Now().Add(-statusWarmupAllowance - time.Second)
	h.sup.mu.Unlock()
	st := h.sup.GetStatus(context.Background())
	if st.State != models.PlayerError || st.Reason != "connection refused" {
		t.Errorf("status = %+v, want error", st)
	}
}

func TestExecuteCommands(t *testing.T) {
	h := newHarness(t, testPlayerConfig())

	if err := h.sup.Execute(context.Background(), models.ActionPause); !errors.Is(err, ErrNotRunning) {
		t.Errorf("PAUSE while stopped: err = %v, want ErrNotRunning", err)
	}
	if err := h.sup.Execute(context.Background(), models.ActionPlay); !errors.Is(err, ErrNoPlaylist) {
		t.Errorf("PLAY without playlist: err = %v, want ErrNoPlaylist", err)
	}

	h.activate(t, "intro")
	if err := h.sup.Execute(context.Background(), models.ActionPlay); err != nil {
		t.Fatalf("PLAY: %v", err)
	}
	if !h.sup.Running() {
		t.Fatal("PLAY did not start the player")
	}

	for _, a := range []models.CommandAction{models.ActionPause, models.ActionVolumeUp, models.ActionStop, models.ActionSnapshot} {
		if err := h.sup.Execute(context.Background(), a); err != nil {
			t.Errorf("%s: %v", a, err)
		}
	}
	if err := h.sup.Execute(context.Background(), models.ActionLoadPlaylist); !errors.Is(err, ErrUnsupported) {
		t.Errorf("LOAD_PLAYLIST: err = %v, want ErrUnsupported", err)
	}
}

func TestNextAndPreviousTrackIndex(t *testing.T) {
	h := newHarness(t, testPlayerConfig())
	h.activate(t, "intro")
	h.sup.Start(context.Background())
	ctx := context.Background()

	if err := h.sup.Execute(ctx, models.ActionPrevious); err != nil {
		t.Fatal(err)
	}
	if got := h.store.ActivePlaylist(ctx).CurrentIndex; got != 2 {
		t.Errorf("index after PREVIOUS = %d, want 2", got)
	}

	if err := h.sup.Execute(ctx, models.ActionNext); err != nil {
		t.Fatal(err)
	}
	if got := h.store.ActivePlaylist(ctx).CurrentIndex; got != 0 {
		t.Errorf("index after NEXT = %d, want 0", got)
	}
}

func TestNotifications(t *testing.T) {
	h := newHarness(t, testPlayerConfig())
	h.activate(t, "intro")
	h.sup.Start(context.Background())
	h.sup.Stop()

	kinds := h.sink.Kinds()
	if len(kinds) != 2 || kinds[0] != notify.PlayerStarted || kinds[1] != notify.PlayerStopped {
		t.Errorf("kinds = %v", kinds)
	}
}
