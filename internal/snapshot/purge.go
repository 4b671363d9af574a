// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package snapshot

import (
	"context"
	"errors"
	"os"
	"sort"
	"time"

	"github.com/tomtom215/playwarden/internal/config"
	"github.com/tomtom215/playwarden/internal/logging"
	"github.com/tomtom215/playwarden/internal/metrics"
)

// Purge deletes captures older than cfg.Retention and then the oldest
// captures beyond cfg.MaxFiles. Zero disables either limit. The canonical
// snapshot is never deleted.
func Purge(cfg config.SnapshotConfig, now time.Time) (int, error) {
	files, err := listCaptures(cfg)
	if err != nil {
		return 0, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod.After(files[j].mod) })

	var (
		removed int
		errs    []error
		kept    int
	)
	for _, f := range files {
		expired := cfg.Retention > 0 && now.Sub(f.mod) > cfg.Retention
		overflow := cfg.MaxFiles > 0 && kept >= cfg.MaxFiles
		if !expired && !overflow {
			kept++
			continue
		}
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	metrics.SnapshotsPurged.Add(float64(removed))
	return removed, errors.Join(errs...)
}

// Purger runs Purge on cfg.PurgeInterval.
type Purger struct {
	cfg config.SnapshotConfig
	now func() time.Time
}

// NewPurger creates a Purger.
func NewPurger(cfg config.SnapshotConfig) *Purger {
	return &Purger{cfg: cfg, now: time.Now}
}

// Run purges once immediately and then on every interval until ctx is done.
func (p *Purger) Run(ctx context.Context) error {
	log := logging.WithComponent("snapshot-purge")
	ticker := time.NewTicker(p.cfg.PurgeInterval)
	defer ticker.Stop()

	for {
		n, err := Purge(p.cfg, p.now())
		if err != nil {
			log.Warn().Err(err).Int("removed", n).Msg("Snapshot purge incomplete")
		} else if n > 0 {
			log.Info().Int("removed", n).Msg("Purged old snapshots")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
