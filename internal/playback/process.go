// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package playback

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/tomtom215/playwarden/internal/logging"
)

// Process is a running player.
type Process interface {
	PID() int

	// Done is closed once the process has exited.
	Done() <-chan struct{}

	// ExitCode is valid after Done is closed. It is -1 when the process was
	// killed by a signal.
	ExitCode() int

	Kill() error

	// Alive reports whether the process is still running.
	Alive(ctx context.Context) bool
}

// Launcher starts player processes.
type Launcher interface {
	Launch(binary string, args []string) (Process, error)
}

// ExecLauncher starts the player with os/exec and logs its output.
type ExecLauncher struct{}

// Launch implements Launcher.
func (ExecLauncher) Launch(binary string, args []string) (Process, error) {
	cmd := exec.Command(binary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", binary, err)
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{}), code: -1}
	log := logging.WithComponent("player-process").With().Int("pid", cmd.Process.Pid).Logger()

	var pipes sync.WaitGroup
	pipes.Add(2)
	go pipeLines(&pipes, stdout, log, zerolog.DebugLevel)
	go pipeLines(&pipes, stderr, log, zerolog.WarnLevel)

	go func() {
		pipes.Wait()
		err := cmd.Wait()
		p.mu.Lock()
		p.code = exitCode(cmd, err)
		p.mu.Unlock()
		close(p.done)
	}()
	return p, nil
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func pipeLines(wg *sync.WaitGroup, r io.Reader, log zerolog.Logger, level zerolog.Level) {
	defer wg.Done()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		log.WithLevel(level).Str("stream", streamName(level)).Msg(sc.Text())
	}
}

func streamName(level zerolog.Level) string {
	if level == zerolog.DebugLevel {
		return "stdout"
	}
	return "stderr"
}

func exitCode(cmd *exec.Cmd, err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return -1
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu   sync.Mutex
	code int
}

func (p *execProcess) PID() int              { return p.cmd.Process.Pid }
func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.code
}

func (p *execProcess) Kill() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	return p.cmd.Process.Kill()
}

// Alive checks both our own handle and the process table, so a player that
// vanished without us reaping it is still reported dead.
func (p *execProcess) Alive(ctx context.Context) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	exists, err := process.PidExistsWithContext(ctx, int32(p.PID()))
	if err != nil {
		return true
	}
	return exists
}
