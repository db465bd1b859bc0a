// Package workers contains background workers for guardrails.
package workers

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/artpar/guardrails/internal/shell/seed"
)

// SeedRefresherConfig configures the seed refresher worker.
type SeedRefresherConfig struct {
	// Path of the predefined seed file.
	Path string

	// Interval is the time between checks of the file.
	// Default: 60 seconds.
	Interval time.Duration
}

// SeedRefresher re-applies the predefined seed file whenever its
// modification time changes, so new PREDEFINED responses appear without a
// restart.
type SeedRefresher struct {
	store  seed.Upserter
	config SeedRefresherConfig
	logger *slog.Logger

	lastMod time.Time

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSeedRefresher creates a new seed refresher worker. applied is the
// modification time of the file already applied at startup; the zero time
// forces an apply on the first cycle.
func NewSeedRefresher(s seed.Upserter, config SeedRefresherConfig, applied time.Time, logger *slog.Logger) *SeedRefresher {
	if config.Interval == 0 {
		config.Interval = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SeedRefresher{
		store:   s,
		config:  config,
		logger:  logger.With("component", "seed_refresher"),
		lastMod: applied,
	}
}

// Start begins the refresher background goroutine.
func (r *SeedRefresher) Start() {
	r.ctx, r.cancel = context.WithCancel(context.Background())

	r.wg.Add(1)
	go r.run()

	r.logger.Info("seed refresher started",
		"path", r.config.Path,
		"interval", r.config.Interval,
	)
}

// Stop gracefully stops the refresher and waits for an in-progress apply.
func (r *SeedRefresher) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.logger.Info("seed refresher stopped")
}

func (r *SeedRefresher) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.runCycle()
		}
	}
}

// runCycle applies the file if it changed since the last successful apply.
func (r *SeedRefresher) runCycle() {
	info, err := os.Stat(r.config.Path)
	if err != nil {
		r.logger.Error("failed to stat seed file", "path", r.config.Path, "error", err)
		return
	}
	if info.ModTime().Equal(r.lastMod) {
		return
	}

	file, err := seed.Load(r.config.Path)
	if err != nil {
		r.logger.Error("failed to load seed file", "path", r.config.Path, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.config.Interval)
	defer cancel()

	if _, err := seed.Apply(ctx, r.store, file, r.logger); err != nil {
		r.logger.Error("failed to apply seed file", "path", r.config.Path, "error", err)
		return
	}
	r.lastMod = info.ModTime()
}
