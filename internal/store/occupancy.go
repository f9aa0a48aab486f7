package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"roomcheck-backend/internal/model"
)

type checkedInPayload struct {
	GuestID   string    `json:"guestId"`
	GuestName string    `json:"guestName"`
	LockedAt  time.Time `json:"lockedAt"`
}

type unlockedPayload struct {
	Reason string `json:"reason"`
}

// CheckIn claims a room for a guest. The claim is a single conditional update
// on an unlocked, ready room; the unique index on locked_by_guest_id backs the
// one-room-per-guest rule when two check-ins by the same guest race.
func (s *gormStore) CheckIn(ctx context.Context, roomID, guestID, guestName string, now time.Time) (*model.Room, error) {
	var room *model.Room
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var held int64
		if err := tx.Model(&model.Room{}).Where("locked_by_guest_id = ?", guestID).Count(&held).Error; err != nil {
			return fmt.Errorf("failed to look up rooms held by guest %s: %w", guestID, err)
		}
		if held > 0 {
			return model.ErrAlreadyCheckedIn
		}

		res := tx.Model(&model.Room{}).
			Where("id = ? AND is_locked = ? AND status = ?", roomID, false, model.RoomStatusComplete).
			Updates(map[string]any{
				"is_locked":            true,
				"locked_by_guest_id":   guestID,
				"locked_by_guest_name": guestName,
				"locked_at":            now,
			})
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return model.ErrAlreadyCheckedIn
			}
			return fmt.Errorf("failed to lock room %s: %w", roomID, res.Error)
		}
		if res.RowsAffected == 0 {
			return classifyCheckInFailure(tx, roomID)
		}

		if err := appendEvent(tx, model.EventRoomCheckedIn, roomID, "", checkedInPayload{
			GuestID:   guestID,
			GuestName: guestName,
			LockedAt:  now,
		}); err != nil {
			return err
		}

		var err error
		room, err = loadRoom(tx, roomID)
		return err
	})
	return room, err
}

// classifyCheckInFailure explains why the conditional lock matched no row.
func classifyCheckInFailure(tx *gorm.DB, roomID string) error {
	current, err := loadRoom(tx, roomID)
	if err != nil {
		return err
	}
	switch {
	case current.IsLocked:
		return model.ErrRoomOccupied
	case current.Status != model.RoomStatusComplete:
		return model.ErrRoomNotReady
	default:
		// Free and ready on re-read: another claim committed and released in between.
		return model.ErrRoomOccupied
	}
}

// Unlock clears the occupancy lock. It reports whether a lock was released;
// unlocking a free room is a no-op.
func (s *gormStore) Unlock(ctx context.Context, roomID string) (bool, error) {
	var released bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := unlockRoom(tx, roomID, "")
		if err != nil {
			return err
		}
		if !ok {
			var count int64
			if err := tx.Model(&model.Room{}).Where("id = ?", roomID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to look up room %s: %w", roomID, err)
			}
			if count == 0 {
				return model.ErrRoomNotFound
			}
			return nil
		}
		released = true
		return appendEvent(tx, model.EventRoomUnlocked, roomID, "", unlockedPayload{Reason: "manual"})
	})
	return released, err
}

// unlockRoom clears the lock on tx. When guestID is set only that guest's lock
// is released.
func unlockRoom(tx *gorm.DB, roomID, guestID string) (bool, error) {
	q := tx.Model(&model.Room{}).Where("id = ? AND is_locked = ?", roomID, true)
	if guestID != "" {
		q = q.Where("locked_by_guest_id = ?", guestID)
	}
	res := q.Updates(unlockFields())
	if res.Error != nil {
		return false, fmt.Errorf("failed to unlock room %s: %w", roomID, res.Error)
	}
	return res.RowsAffected > 0, nil
}
