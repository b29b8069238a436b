// Package jobs holds the background schedules the shop service runs.
package jobs

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Reconciler finishes interrupted checkouts.
type Reconciler interface {
	Reconcile(ctx context.Context) error
}

// ReconcileJob periodically sweeps the cart for lines left behind by a
// checkout that crashed between writing the order and clearing the cart.
type ReconcileJob struct {
	reconciler Reconciler
	schedule   string
	cron       *cron.Cron
	logger     *slog.Logger
}

// NewReconcileJob creates the sweep job. Schedule is a six-field cron
// expression; every 30 seconds by default.
func NewReconcileJob(reconciler Reconciler, schedule string, logger *slog.Logger) *ReconcileJob {
	if schedule == "" {
		schedule = "*/30 * * * * *"
	}
	return &ReconcileJob{
		reconciler: reconciler,
		schedule:   schedule,
		cron:       cron.New(cron.WithSeconds()),
		logger:     logger.With("component", "reconcile_job"),
	}
}

// Start begins the sweep schedule.
func (j *ReconcileJob) Start() error {
	_, err := j.cron.AddFunc(j.schedule, func() {
		ctx := context.Background()
		if err := j.reconciler.Reconcile(ctx); err != nil {
			j.logger.ErrorContext(ctx, "cart reconcile sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	j.logger.InfoContext(context.Background(), "cart reconcile job started", "schedule", j.schedule)
	return nil
}

// Stop stops the sweep schedule.
func (j *ReconcileJob) Stop() {
	j.cron.Stop()
	j.logger.InfoContext(context.Background(), "cart reconcile job stopped")
}
