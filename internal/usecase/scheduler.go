package usecase

import (
	"context"
	"time"

	"DeliberoScan/internal/ports"
)

// SyncScheduler binds the periodic driver to recurring sync sweeps.
type SyncScheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
}

// NewSyncScheduler returns a helper to start/stop recurring sweeps.
func NewSyncScheduler(driver ports.Scheduler, pipeline *Pipeline) *SyncScheduler {
	return &SyncScheduler{driver: driver, pipeline: pipeline}
}

// Start registers a default-parameter sweep with the driver. Failed
// sweeps are retried naturally on the next tick; reconciliation skips
// whatever the previous run already persisted.
func (s *SyncScheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(time.Time) {
		_, _ = s.pipeline.Sync(ctx, SyncRequest{})
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying driver.
func (s *SyncScheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}
