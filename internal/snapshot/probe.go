// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

// Package snapshot captures the current player frame for heartbeats and
// prunes old captures.
package snapshot

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/playwarden/internal/config"
	"github.com/tomtom215/playwarden/internal/logging"
	"github.com/tomtom215/playwarden/internal/metrics"
)

// ErrNoSnapshot means the player wrote no new image before the timeout.
var ErrNoSnapshot = errors.New("no snapshot available")

const pollInterval = 100 * time.Millisecond

// Trigger asks the player to write a frame to the snapshot directory.
type Trigger interface {
	TriggerSnapshot(ctx context.Context) error
}

// Probe captures snapshots. Captures are serialized.
type Probe struct {
	cfg     config.SnapshotConfig
	trigger Trigger
	log     zerolog.Logger
	mu      sync.Mutex
}

// NewProbe creates a Probe writing into cfg.Dir.
func NewProbe(cfg config.SnapshotConfig, trigger Trigger) *Probe {
	return &Probe{
		cfg:     cfg,
		trigger: trigger,
		log:     logging.WithComponent("snapshot"),
	}
}

// Capture returns the canonical snapshot path, or a data URI when inline
// delivery is configured. It returns nil on any failure.
func (p *Probe) Capture(ctx context.Context) *string {
	ref, err := p.CaptureRef(ctx)
	if err != nil {
		p.log.Debug().Err(err).Msg("No snapshot")
		return nil
	}
	return &ref
}

// CaptureRef is Capture with the failure reason.
func (p *Probe) CaptureRef(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	path, err := p.capture(ctx)
	if err != nil {
		metrics.SnapshotCaptures.WithLabelValues(resultLabel(err)).Inc()
		return "", err
	}
	metrics.SnapshotCaptures.WithLabelValues("success").Inc()

	if !p.cfg.Inline {
		return path, nil
	}
	return encodeDataURI(path, p.cfg.Format)
}

// CanonicalPath is where the latest snapshot is kept.
func (p *Probe) CanonicalPath() string {
	return filepath.Join(p.cfg.Dir, p.cfg.CanonicalName)
}

func (p *Probe) capture(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	if err := os.MkdirAll(p.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("snapshot dir: %w", err)
	}

	since := time.Now().Add(-time.Second)
	if err := p.trigger.TriggerSnapshot(ctx); err != nil {
		return "", fmt.Errorf("trigger snapshot: %w", err)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		newest, err := p.newest(since)
		if err != nil {
			return "", err
		}
		if newest != "" {
			canonical := p.CanonicalPath()
			if err := os.Rename(newest, canonical); err != nil {
				return "", fmt.Errorf("rename snapshot: %w", err)
			}
			return canonical, nil
		}

		select {
		case <-ctx.Done():
			return "", ErrNoSnapshot
		case <-ticker.C:
		}
	}
}

// newest returns the most recently modified capture newer than since.
func (p *Probe) newest(since time.Time) (string, error) {
	files, err := listCaptures(p.cfg)
	if err != nil {
		return "", err
	}
	var (
		best    string
		bestMod time.Time
	)
	for _, f := range files {
		if f.mod.Before(since) {
			continue
		}
		if best == "" || f.mod.After(bestMod) {
			best, bestMod = f.path, f.mod
		}
	}
	return best, nil
}

type capture struct {
	path string
	mod  time.Time
}

// listCaptures returns image files the player wrote, excluding the
// canonical snapshot.
func listCaptures(cfg config.SnapshotConfig) ([]capture, error) {
	entries, err := os.ReadDir(cfg.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}

	ext := "." + strings.ToLower(cfg.Format)
	out := make([]capture, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == cfg.CanonicalName {
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), ext) {
			continue
		}
		if cfg.Prefix != "" && !strings.HasPrefix(name, cfg.Prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, capture{path: filepath.Join(cfg.Dir, name), mod: info.ModTime()})
	}
	return out, nil
}

func encodeDataURI(path, format string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read snapshot: %w", err)
	}
	mime := "image/jpeg"
	if strings.EqualFold(format, "png") {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrNoSnapshot):
		return "timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
