// Package job provides background maintenance jobs.
package job

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"media-acquisition-service/pkg/locker"
)

// lockEpsilon keeps the cooldown lock TTL just under the sweep interval so
// the lock is free again by the time the next tick fires.
const lockEpsilon = 5 * time.Second

// Janitor periodically removes leaked scratch workspaces. Every acquisition
// cleans up after itself; the janitor catches what a crashed or killed
// process left behind. Distributed locking ensures only one instance sweeps
// at a time.
type Janitor struct {
	scratchDir string
	interval   time.Duration
	maxAge     time.Duration
	minAge     time.Duration
	logger     *zap.Logger
	locker     locker.DistributedLocker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// JanitorConfig holds janitor runtime settings.
type JanitorConfig struct {
	ScratchDir string
	Interval   time.Duration
	MaxAge     time.Duration

	// MinAge is the floor below which entries are never removed, regardless
	// of MaxAge. Wired to the pipeline timeout so a sweep cannot race a
	// still-running acquisition.
	MinAge time.Duration
}

// NewJanitor creates a new Janitor with distributed locking support.
//
// Parameters:
//   - cfg: Sweep settings including interval and age bounds
//   - logger: Structured logger for operational visibility
//   - locker: Distributed locker for cross-instance coordination
func NewJanitor(cfg JanitorConfig, logger *zap.Logger, locker locker.DistributedLocker) *Janitor {
	return &Janitor{
		scratchDir: cfg.ScratchDir,
		interval:   cfg.Interval,
		maxAge:     cfg.MaxAge,
		minAge:     cfg.MinAge,
		logger:     logger,
		locker:     locker,
	}
}

// Start begins the background sweep loop.
func (j *Janitor) Start(runOnStartup bool) {
	j.ctx, j.cancel = context.WithCancel(context.Background())

	j.logger.Info("starting scratch janitor",
		zap.String("scratch_dir", j.scratchDir),
		zap.Duration("interval", j.interval),
		zap.Duration("max_age", j.maxAge),
		zap.Bool("run_on_startup", runOnStartup),
	)

	j.wg.Add(1)
	go j.run(runOnStartup)
}

// Stop gracefully stops the janitor.
func (j *Janitor) Stop() {
	j.logger.Info("stopping scratch janitor")
	j.cancel()
	j.wg.Wait()
	j.logger.Info("scratch janitor stopped")
}

// run is the main loop of the janitor.
func (j *Janitor) run(runOnStartup bool) {
	defer j.wg.Done()

	// Run immediately if configured
	if runOnStartup {
		j.executeSweep()
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-ticker.C:
			j.executeSweep()
		}
	}
}

// executeSweep performs one sweep under the distributed lock.
//
// Locking behavior:
//   - Lock TTL = interval minus a small epsilon (cooldown model)
//   - Success: lock held for the cooldown to prevent duplicate sweeps
//   - Failure: lock released immediately to allow retry by another instance
func (j *Janitor) executeSweep() {
	const lockKey = "janitor:scratch:lock"

	ttl := j.interval - lockEpsilon
	if ttl <= 0 {
		ttl = j.interval
	}

	acquired, err := j.locker.Acquire(j.ctx, lockKey, ttl)
	if err != nil {
		j.logger.Error("failed to acquire distributed lock", zap.Error(err))

		return
	}
	if !acquired {
		j.logger.Debug("another instance is sweeping, skipping execution")

		return
	}

	removed, err := j.RunOnce(j.ctx)
	if err != nil {
		// Release lock immediately on error (allow immediate retry)
		if relErr := j.locker.Release(j.ctx, lockKey); relErr != nil {
			j.logger.Error("failed to release lock after sweep error", zap.Error(relErr))
		}
		j.logger.Warn("scratch sweep failed, lock released for retry",
			zap.Int("removed", removed),
			zap.Error(err),
		)

		return
	}

	// Lock expires naturally after the cooldown.
	j.logger.Info("scratch sweep completed, lock held for cooldown",
		zap.Int("removed", removed),
		zap.Duration("cooldown", ttl),
	)
}

// RunOnce sweeps the scratch directory once and returns the number of
// entries removed. Entries younger than the effective cutoff are left
// alone. Exposed for the admin trigger; takes no lock itself.
func (j *Janitor) RunOnce(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(j.scratchDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}

		return 0, fmt.Errorf("reading scratch dir: %w", err)
	}

	// A workspace younger than the pipeline timeout may belong to a run
	// that is still going.
	cutoff := j.maxAge
	if cutoff < j.minAge {
		cutoff = j.minAge
	}

	removed := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}

		info, err := entry.Info()
		if err != nil {
			// Entry disappeared between listing and stat: a pipeline run
			// finished and cleaned up. Not ours.
			continue
		}
		if time.Since(info.ModTime()) < cutoff {
			continue
		}

		path := filepath.Join(j.scratchDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			j.logger.Warn("failed to remove scratch entry",
				zap.String("path", path),
				zap.Error(err),
			)

			continue
		}

		j.logger.Debug("removed leaked scratch entry",
			zap.String("path", path),
			zap.Duration("age", time.Since(info.ModTime())),
		)
		removed++
	}

	return removed, nil
}
