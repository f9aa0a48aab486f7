package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"roomcheck-backend/internal/model"
)

// CreateUploadBatch stores a new exit-photo batch and moves a pending checkout
// to uploading.
func (s *gormStore) CreateUploadBatch(ctx context.Context, batch *model.UploadBatch) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := loadCheckout(tx, batch.CheckoutID)
		if err != nil {
			return err
		}
		if c.RoomID != batch.RoomID {
			return model.ErrCheckoutNotFound
		}
		if c.GuestID != batch.GuestID {
			return model.ErrNotCheckedIn
		}
		switch c.Status {
		case model.CheckoutStatusPending, model.CheckoutStatusUploading:
		case model.CheckoutStatusComplete:
			return model.ErrCheckoutFinalized
		default:
			return fmt.Errorf("%w: cannot upload photos while checkout is %s", model.ErrInvalidTransition, c.Status)
		}

		batch.Status = model.BatchStatusReadyToUpload
		batch.TotalCount = len(batch.Photos)
		if err := tx.Create(batch).Error; err != nil {
			return fmt.Errorf("failed to create upload batch: %w", err)
		}

		if c.Status == model.CheckoutStatusPending {
			res := tx.Model(&model.Checkout{}).
				Where("id = ? AND status = ?", c.ID, model.CheckoutStatusPending).
				Update("status", model.CheckoutStatusUploading)
			if res.Error != nil {
				return fmt.Errorf("failed to mark checkout %s uploading: %w", c.ID, res.Error)
			}
			if res.RowsAffected == 0 {
				return classifyCheckoutConflict(tx, c.ID)
			}
		}
		return nil
	})
}

func (s *gormStore) GetUploadBatch(ctx context.Context, batchID string) (*model.UploadBatch, error) {
	var batch model.UploadBatch
	if err := s.db.WithContext(ctx).First(&batch, "id = ?", batchID).Error; err != nil {
		return nil, notFound(err, model.ErrBatchNotFound)
	}
	return &batch, nil
}

// CompleteUploadBatch marks a batch uploaded, adds its photos to the checkout
// and asks the agent for a comparison.
func (s *gormStore) CompleteUploadBatch(ctx context.Context, batchID string, now time.Time) (*model.Checkout, error) {
	var checkout *model.Checkout
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var batch model.UploadBatch
		if err := tx.First(&batch, "id = ?", batchID).Error; err != nil {
			return notFound(err, model.ErrBatchNotFound)
		}

		res := tx.Model(&model.UploadBatch{}).
			Where("id = ? AND status = ?", batchID, model.BatchStatusReadyToUpload).
			Updates(map[string]any{"status": model.BatchStatusUploaded, "uploaded_at": now})
		if res.Error != nil {
			return fmt.Errorf("failed to mark batch %s uploaded: %w", batchID, res.Error)
		}
		if res.RowsAffected == 0 {
			if batch.Status == model.BatchStatusFailed {
				return model.ErrBatchExpired
			}
			return fmt.Errorf("%w: batch %s is already %s", model.ErrInvalidTransition, batchID, batch.Status)
		}

		res = tx.Model(&model.Checkout{}).
			Where("id = ? AND status IN ?", batch.CheckoutID, []model.CheckoutStatus{
				model.CheckoutStatusPending,
				model.CheckoutStatusUploading,
				model.CheckoutStatusProcessing,
			}).
			Updates(map[string]any{
				"status":                model.CheckoutStatusProcessing,
				"photos_uploaded":       true,
				"photo_count":           gorm.Expr("photo_count + ?", batch.TotalCount),
				"processing_started_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update checkout %s: %w", batch.CheckoutID, res.Error)
		}
		if res.RowsAffected == 0 {
			return classifyCheckoutConflict(tx, batch.CheckoutID)
		}

		c, err := loadCheckout(tx, batch.CheckoutID)
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(batch.Photos))
		for _, p := range batch.Photos {
			keys = append(keys, p.StorageKey)
		}
		if err := appendEvent(tx, model.EventCheckoutCompareRequested, c.RoomID, c.ID, compareRequestedPayload{
			PhotoCount: c.PhotoCount,
			Keys:       keys,
			Attempt:    c.AgentAttempts,
		}); err != nil {
			return err
		}
		checkout = c
		return nil
	})
	return checkout, err
}

// FailUploadBatch marks a batch that has not completed as failed. Failing an
// already failed batch is a no-op.
func (s *gormStore) FailUploadBatch(ctx context.Context, batchID, reason string) error {
	res := s.db.WithContext(ctx).Model(&model.UploadBatch{}).
		Where("id = ? AND status = ?", batchID, model.BatchStatusReadyToUpload).
		Updates(map[string]any{"status": model.BatchStatusFailed, "error": reason})
	if res.Error != nil {
		return fmt.Errorf("failed to mark batch %s failed: %w", batchID, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	batch, err := s.GetUploadBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if batch.Status == model.BatchStatusUploaded {
		return fmt.Errorf("%w: batch %s is already uploaded", model.ErrInvalidTransition, batchID)
	}
	return nil
}
