// Package agent delivers workflow events to the external agent and keeps
// stalled comparisons moving.
package agent

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"roomcheck-backend/config"
	"roomcheck-backend/internal/model"
)

// Publisher hands one outbox event to the agent.
type Publisher interface {
	Publish(ctx context.Context, ev model.AgentEvent) error
}

// RedisPublisher appends events to a Redis stream the agent consumes.
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisPublisher creates a publisher for the given stream. maxLen caps the
// stream approximately; zero leaves it unbounded.
func NewRedisPublisher(client *redis.Client, stream string, maxLen int64) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream, maxLen: maxLen}
}

// NewRedisClient opens the client described by the agent configuration.
func NewRedisClient(cfg config.AgentConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// Publish implements Publisher. The outbox id travels with the entry so the
// agent can drop duplicates after a relay retry.
func (p *RedisPublisher) Publish(ctx context.Context, ev model.AgentEvent) error {
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"event_id":    strconv.FormatInt(ev.ID, 10),
			"kind":        ev.Kind,
			"room_id":     ev.RoomID,
			"checkout_id": ev.CheckoutID,
			"payload":     string(ev.Payload),
			"created_at":  ev.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// LogPublisher logs events instead of sending them. It stands in for the
// agent when no Redis address is configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish implements Publisher.
func (p *LogPublisher) Publish(_ context.Context, ev model.AgentEvent) error {
	p.logger.Info("Agent event",
		zap.Int64("event_id", ev.ID),
		zap.String("kind", ev.Kind),
		zap.String("room_id", ev.RoomID),
		zap.String("checkout_id", ev.CheckoutID),
		zap.ByteString("payload", ev.Payload),
	)
	return nil
}
