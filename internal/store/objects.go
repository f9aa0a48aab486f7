package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"roomcheck-backend/internal/model"
)

// ObjectPatch holds the host-editable fields of a detected object.
type ObjectPatch struct {
	Label    *string
	Verified *bool
}

type objectUpdatedPayload struct {
	ObjectID string `json:"objectId"`
	Label    string `json:"label"`
	Verified bool   `json:"verified"`
}

// ListObjects returns a room's detected objects ordered by label.
func (s *gormStore) ListObjects(ctx context.Context, roomID string) ([]model.DetectedObject, error) {
	var objects []model.DetectedObject
	err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("label").
		Find(&objects).Error
	return objects, err
}

// ReportDetections upserts the agent's detections for a room and refreshes the
// room's object count. Host edits to label and verification survive a
// re-detection.
func (s *gormStore) ReportDetections(ctx context.Context, roomID string, objects []model.DetectedObject) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadRoom(tx, roomID); err != nil {
			return err
		}

		if len(objects) > 0 {
			for i := range objects {
				if objects[i].ID == "" {
					objects[i].ID = uuid.NewString()
				}
				objects[i].RoomID = roomID
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"confidence", "crop_path", "updated_at"}),
			}).Create(&objects).Error; err != nil {
				return fmt.Errorf("failed to upsert detected objects: %w", err)
			}
		}

		if err := tx.Model(&model.DetectedObject{}).Where("room_id = ?", roomID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count objects for room %s: %w", roomID, err)
		}
		return tx.Model(&model.Room{}).Where("id = ?", roomID).Update("objects_count", count).Error
	})
	return int(count), err
}

// UpdateObject applies a host's label correction or verification toggle.
func (s *gormStore) UpdateObject(ctx context.Context, roomID, objectID string, patch ObjectPatch) (*model.DetectedObject, error) {
	updates := map[string]any{}
	if patch.Label != nil {
		updates["label"] = *patch.Label
	}
	if patch.Verified != nil {
		updates["verified"] = *patch.Verified
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("%w: nothing to update", model.ErrInvalidInput)
	}

	var obj model.DetectedObject
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.DetectedObject{}).
			Where("id = ? AND room_id = ?", objectID, roomID).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update object %s: %w", objectID, res.Error)
		}
		if res.RowsAffected == 0 {
			return model.ErrObjectNotFound
		}
		if err := tx.First(&obj, "id = ?", objectID).Error; err != nil {
			return err
		}
		return appendEvent(tx, model.EventObjectUpdated, roomID, "", objectUpdatedPayload{
			ObjectID: obj.ID,
			Label:    obj.Label,
			Verified: obj.Verified,
		})
	})
	if err != nil {
		return nil, err
	}
	return &obj, nil
}
