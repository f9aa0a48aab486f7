package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"roomcheck-backend/internal/model"
)

// PendingEvents returns up to limit unpublished outbox rows in commit order.
func (s *gormStore) PendingEvents(ctx context.Context, limit int) ([]model.AgentEvent, error) {
	var events []model.AgentEvent
	err := s.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("id").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (s *gormStore) MarkEventPublished(ctx context.Context, id int64, now time.Time) error {
	return s.db.WithContext(ctx).Model(&model.AgentEvent{}).
		Where("id = ?", id).
		Update("published_at", now).Error
}

// MarkEventFailed records a failed publish; the row is retried on the next tick.
func (s *gormStore) MarkEventFailed(ctx context.Context, id int64, reason string) error {
	return s.db.WithContext(ctx).Model(&model.AgentEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": reason,
		}).Error
}
