// Package scheduler hosts the periodic jobs that run alongside the HTTP
// surface.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/creativehub/media/internal/model"
	"github.com/creativehub/media/internal/store"
	"github.com/creativehub/media/internal/worker"
)

// BoosterConfig tunes the synthetic progress ramp for remote jobs.
type BoosterConfig struct {
	// Floor and Ceiling bound the ramp: only jobs with progress in
	// [Floor, Ceiling) are advanced, and the ramp never reaches Ceiling's
	// value on its own. Real signals past the ceiling always win.
	Floor   int
	Ceiling int

	// Step is how far each sweep advances an eligible job.
	Step int

	// Interval is the sweep period.
	Interval time.Duration
}

// DefaultBoosterConfig mirrors the ramp used for long-running remote
// separations: 5 to 80, two points every five seconds.
func DefaultBoosterConfig() BoosterConfig {
	return BoosterConfig{
		Floor:    5,
		Ceiling:  80,
		Step:     2,
		Interval: 5 * time.Second,
	}
}

// ProgressBooster periodically advances remote jobs whose real progress
// signal is a single long blocking call, so callers see movement instead
// of a frozen bar.
type ProgressBooster struct {
	store *store.JobStore
	hub   worker.Notifier
	cfg   BoosterConfig
	cron  *cron.Cron
}

// NewProgressBooster creates a booster around the job store.
func NewProgressBooster(jobStore *store.JobStore, hub worker.Notifier, cfg BoosterConfig) *ProgressBooster {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultBoosterConfig().Interval
	}
	if cfg.Step <= 0 {
		cfg.Step = DefaultBoosterConfig().Step
	}
	return &ProgressBooster{
		store: jobStore,
		hub:   hub,
		cfg:   cfg,
		cron:  cron.New(),
	}
}

// Start schedules the sweep and begins running it.
func (b *ProgressBooster) Start() error {
	spec := fmt.Sprintf("@every %s", b.cfg.Interval)
	if _, err := b.cron.AddFunc(spec, b.sweep); err != nil {
		return fmt.Errorf("failed to schedule progress booster: %w", err)
	}
	b.cron.Start()
	log.Printf("Progress booster started (%s, band %d-%d, step %d)",
		b.cfg.Interval, b.cfg.Floor, b.cfg.Ceiling, b.cfg.Step)
	return nil
}

// Stop halts the sweep and waits for a running one to finish.
func (b *ProgressBooster) Stop() {
	ctx := b.cron.Stop()
	<-ctx.Done()
}

// sweep advances every eligible remote job by one step. The store-level
// guards re-check the band per update, so a job completed or pushed past
// the ceiling between the read and the write is left alone.
func (b *ProgressBooster) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.Interval)
	defer cancel()

	jobs, err := b.store.BoostCandidates(ctx, b.cfg.Floor, b.cfg.Ceiling)
	if err != nil {
		log.Printf("Progress booster sweep failed: %v", err)
		return
	}

	for _, job := range jobs {
		progress, boosted, err := b.store.BoostProgress(ctx, job.ID, b.cfg.Step, b.cfg.Floor, b.cfg.Ceiling)
		if err != nil {
			log.Printf("Failed to boost job %s: %v", job.ID, err)
			continue
		}
		if !boosted {
			// A real update or completion won the race since the read.
			continue
		}
		b.hub.BroadcastProgress(job.ID, progress, model.JobStatusProcessing, "Processing...")
	}
}
