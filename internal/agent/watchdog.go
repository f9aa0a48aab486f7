package agent

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SweepResult counts what one watchdog pass did.
type SweepResult struct {
	Requeued  int
	Escalated int
}

// Sweeper re-requests or escalates comparisons the agent has not answered.
type Sweeper interface {
	SweepStaleComparisons(ctx context.Context) (SweepResult, error)
}

// Watchdog runs a Sweeper on a fixed interval.
type Watchdog struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *zap.Logger
}

// NewWatchdog creates a Watchdog.
func NewWatchdog(sweeper Sweeper, interval time.Duration, logger *zap.Logger) *Watchdog {
	return &Watchdog{sweeper: sweeper, interval: interval, logger: logger}
}

// Run sweeps until ctx is done.
func (w *Watchdog) Run(ctx context.Context) {
	w.logger.Info("Starting comparison watchdog", zap.Duration("interval", w.interval))
	runEvery(ctx, w.interval, func(ctx context.Context) {
		res, err := w.sweeper.SweepStaleComparisons(ctx)
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Error("Watchdog sweep failed", zap.Error(err))
			}
			return
		}
		if res.Requeued > 0 || res.Escalated > 0 {
			w.logger.Info("Watchdog sweep",
				zap.Int("requeued", res.Requeued),
				zap.Int("escalated", res.Escalated))
		}
	})
	w.logger.Info("Comparison watchdog shutting down")
}
