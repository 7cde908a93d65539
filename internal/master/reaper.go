package master

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/vizsched/vizsched/internal/allocator"
	"github.com/vizsched/vizsched/internal/registry"
)

// Reaper is the single long-lived fiber spec.md §4.5 describes: every
// CLEANUP_PERIOD it scans the registry and destroys+deletes every expired
// row. Modeled on the teacher's Scheduler wrapper around gocron.Scheduler —
// a DurationJob in place of the teacher's CronJob, since CLEANUP_PERIOD is
// a plain interval, not a cron expression.
type Reaper struct {
	cron      gocron.Scheduler
	registry  registry.Registry
	allocator allocator.Allocator
	logger    *zap.Logger
	metrics   *Metrics
}

// NewReaper constructs a Reaper that scans every period. Call Start to
// begin the background schedule.
func NewReaper(reg registry.Registry, alloc allocator.Allocator, logger *zap.Logger, metrics *Metrics, period time.Duration) (*Reaper, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("master: create reaper scheduler: %w", err)
	}

	r := &Reaper{
		cron:      s,
		registry:  reg,
		allocator: alloc,
		logger:    logger.Named("reaper"),
		metrics:   metrics,
	}

	_, err = s.NewJob(
		gocron.DurationJob(period),
		gocron.NewTask(r.tick),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("master: schedule reaper job: %w", err)
	}

	return r, nil
}

// Start begins the periodic scan. Non-blocking.
func (r *Reaper) Start() {
	r.cron.Start()
	r.logger.Info("reaper started")
}

// Stop shuts down the reaper, waiting for any in-flight tick to finish —
// cancellation mid-destroy is not forced (spec.md §5).
func (r *Reaper) Stop() error {
	if err := r.cron.Shutdown(); err != nil {
		return fmt.Errorf("master: reaper shutdown: %w", err)
	}
	r.logger.Info("reaper stopped")
	return nil
}

// tick scans every row and reaps the ones past their end_time. Per-row
// failures are logged and skipped — the loop never aborts on a single bad
// row (spec.md §4.5, §7).
func (r *Reaper) tick() {
	ctx := context.Background()

	rows, err := r.registry.ScanAll(ctx)
	if err != nil {
		r.logger.Error("reaper scan failed", zap.Error(err))
		return
	}

	now := time.Now().UTC()
	for _, row := range rows {
		if row.EndTime.After(now) {
			continue
		}

		if err := r.allocator.DestroyJob(ctx, row.ID); err != nil {
			r.logger.Warn("reaper destroy failed", zap.String("job_id", row.ID), zap.Error(err))
			continue
		}

		if err := r.registry.Delete(ctx, row.ID); err != nil && !errors.Is(err, registry.ErrNotFound) {
			r.logger.Warn("reaper delete failed", zap.String("job_id", row.ID), zap.Error(err))
			continue
		}

		r.metrics.jobsReaped.Inc()
		r.logger.Info("reaped expired job", zap.String("job_id", row.ID))
	}
}
