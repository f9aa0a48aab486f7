package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"roomcheck-backend/internal/store"
)

// Relay publishes committed outbox events in order.
type Relay struct {
	events    store.EventStore
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
	now       func() time.Time
}

// NewRelay creates a relay that polls every interval.
func NewRelay(events store.EventStore, publisher Publisher, interval time.Duration, batchSize int, logger *zap.Logger) *Relay {
	return &Relay{
		events:    events,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run relays events until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	r.logger.Info("Starting agent event relay", zap.Duration("interval", r.interval))
	runEvery(ctx, r.interval, func(ctx context.Context) {
		if _, err := r.RelayOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("Relay cycle failed", zap.Error(err))
		}
	})
	r.logger.Info("Agent event relay shutting down")
}

// RelayOnce publishes one batch of pending events. It stops at the first
// failure so the agent sees events in commit order; the failed event is
// retried on the next cycle.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	pending, err := r.events.PendingEvents(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, ev := range pending {
		if err := r.publisher.Publish(ctx, ev); err != nil {
			r.logger.Warn("Failed to publish agent event",
				zap.Int64("event_id", ev.ID),
				zap.String("kind", ev.Kind),
				zap.Error(err))
			if markErr := r.events.MarkEventFailed(ctx, ev.ID, err.Error()); markErr != nil {
				r.logger.Error("Failed to record publish failure", zap.Int64("event_id", ev.ID), zap.Error(markErr))
			}
			return published, nil
		}
		if err := r.events.MarkEventPublished(ctx, ev.ID, r.now()); err != nil {
			return published, err
		}
		published++
	}
	if published > 0 {
		r.logger.Debug("Relayed agent events", zap.Int("count", published))
	}
	return published, nil
}
