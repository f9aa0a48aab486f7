package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"roomcheck-backend/internal/model"
)

type roomCreatedPayload struct {
	HostID        string          `json:"hostId"`
	Name          string          `json:"name"`
	DepositAmount decimal.Decimal `json:"depositAmount"`
}

type statusChangedPayload struct {
	From        model.RoomStatus `json:"from"`
	To          model.RoomStatus `json:"to"`
	Actor       model.Actor      `json:"actor"`
	PhotosCount int              `json:"photosCount"`
}

// CreateRoom inserts a room together with its chat, seeded with the room's
// agent message.
func (s *gormStore) CreateRoom(ctx context.Context, room *model.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return fmt.Errorf("failed to create room: %w", err)
		}

		chat := model.Chat{
			ID:            uuid.NewString(),
			RoomID:        room.ID,
			HostID:        room.HostID,
			LastMessage:   room.AgentMessage,
			LastMessageAt: room.CreatedAt,
		}
		if room.AgentMessage != "" {
			chat.UnreadCount = 1
		}
		if err := tx.Create(&chat).Error; err != nil {
			return fmt.Errorf("failed to create chat for room %s: %w", room.ID, err)
		}
		if room.AgentMessage != "" {
			msg := model.ChatMessage{ID: uuid.NewString(), ChatID: chat.ID, Sender: model.SenderAgent, Text: room.AgentMessage}
			if err := tx.Create(&msg).Error; err != nil {
				return fmt.Errorf("failed to seed chat for room %s: %w", room.ID, err)
			}
		}

		return appendEvent(tx, model.EventRoomCreated, room.ID, "", roomCreatedPayload{
			HostID:        room.HostID,
			Name:          room.Name,
			DepositAmount: room.DepositAmount,
		})
	})
}

func (s *gormStore) GetRoom(ctx context.Context, roomID string) (*model.Room, error) {
	return loadRoom(s.db.WithContext(ctx), roomID)
}

// ListRoomsByHost returns the host's rooms, newest first.
func (s *gormStore) ListRoomsByHost(ctx context.Context, hostID string) ([]model.Room, error) {
	var rooms []model.Room
	err := s.db.WithContext(ctx).
		Where("host_id = ?", hostID).
		Order("created_at DESC").
		Find(&rooms).Error
	return rooms, err
}

// ListAvailableRooms returns rooms a guest could check into right now.
func (s *gormStore) ListAvailableRooms(ctx context.Context) ([]model.Room, error) {
	var rooms []model.Room
	err := s.db.WithContext(ctx).
		Where("status = ? AND is_locked = ?", model.RoomStatusComplete, false).
		Order("name").
		Find(&rooms).Error
	return rooms, err
}

// RoomForGuest returns the room currently locked by guestID, or nil when the
// guest holds no room.
func (s *gormStore) RoomForGuest(ctx context.Context, guestID string) (*model.Room, error) {
	var rooms []model.Room
	if err := s.db.WithContext(ctx).Where("locked_by_guest_id = ?", guestID).Limit(1).Find(&rooms).Error; err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return nil, nil
	}
	return &rooms[0], nil
}

// TransitionRoom moves a room to a new status on behalf of actor. The update is
// keyed on the status that was validated, so a concurrent transition makes
// this one fail instead of overwriting it.
func (s *gormStore) TransitionRoom(ctx context.Context, roomID string, actor model.Actor, to model.RoomStatus, message string) (*model.Room, error) {
	var room *model.Room
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := loadRoom(tx, roomID)
		if err != nil {
			return err
		}
		if !model.CanTransition(actor, current.Status, to) {
			return fmt.Errorf("%w: %s cannot move room from %s to %s", model.ErrInvalidTransition, actor, current.Status, to)
		}

		updates := map[string]any{"status": to}
		if message != "" {
			updates["agent_message"] = message
		}
		res := tx.Model(&model.Room{}).
			Where("id = ? AND status = ?", roomID, current.Status).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update room %s status: %w", roomID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: room %s changed concurrently", model.ErrInvalidTransition, roomID)
		}

		if err := appendEvent(tx, model.EventRoomStatusChanged, roomID, "", statusChangedPayload{
			From:        current.Status,
			To:          to,
			Actor:       actor,
			PhotosCount: current.PhotosCount,
		}); err != nil {
			return err
		}

		room, err = loadRoom(tx, roomID)
		return err
	})
	return room, err
}

// UpdateDeposit changes the room's deposit. Existing checkouts keep their
// snapshot.
func (s *gormStore) UpdateDeposit(ctx context.Context, roomID string, amount decimal.Decimal) (*model.Room, error) {
	res := s.db.WithContext(ctx).Model(&model.Room{}).
		Where("id = ?", roomID).
		Update("deposit_amount", amount)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update deposit for room %s: %w", roomID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, model.ErrRoomNotFound
	}
	return s.GetRoom(ctx, roomID)
}

// AddBaselinePhotos counts n new baseline photos and moves the room to
// uploading.
func (s *gormStore) AddBaselinePhotos(ctx context.Context, roomID string, n int) (*model.Room, error) {
	var room *model.Room
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := loadRoom(tx, roomID)
		if err != nil {
			return err
		}
		if !model.CanTransition(model.ActorHost, current.Status, model.RoomStatusUploading) {
			return fmt.Errorf("%w: cannot upload baseline photos while room is %s", model.ErrInvalidTransition, current.Status)
		}

		res := tx.Model(&model.Room{}).
			Where("id = ? AND status = ?", roomID, current.Status).
			Updates(map[string]any{
				"status":       model.RoomStatusUploading,
				"photos_count": gorm.Expr("photos_count + ?", n),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to record baseline photos for room %s: %w", roomID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: room %s changed concurrently", model.ErrInvalidTransition, roomID)
		}

		if err := appendEvent(tx, model.EventRoomStatusChanged, roomID, "", statusChangedPayload{
			From:        current.Status,
			To:          model.RoomStatusUploading,
			Actor:       model.ActorHost,
			PhotosCount: current.PhotosCount + n,
		}); err != nil {
			return err
		}

		room, err = loadRoom(tx, roomID)
		return err
	})
	return room, err
}

// PurgeRoom hard-deletes a room marked for deletion along with its children.
// Outbox rows are kept.
func (s *gormStore) PurgeRoom(ctx context.Context, roomID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := loadRoom(tx, roomID)
		if err != nil {
			return err
		}
		if room.Status != model.RoomStatusDeleting {
			return fmt.Errorf("%w: room %s is %s, not deleting", model.ErrInvalidTransition, roomID, room.Status)
		}

		chatIDs := tx.Model(&model.Chat{}).Select("id").Where("room_id = ?", roomID)
		steps := []struct {
			what  string
			query *gorm.DB
			model any
		}{
			{"chat messages", tx.Where("chat_id IN (?)", chatIDs), &model.ChatMessage{}},
			{"chats", tx.Where("room_id = ?", roomID), &model.Chat{}},
			{"objects", tx.Where("room_id = ?", roomID), &model.DetectedObject{}},
			{"upload batches", tx.Where("room_id = ?", roomID), &model.UploadBatch{}},
			{"checkouts", tx.Where("room_id = ?", roomID), &model.Checkout{}},
			{"room", tx.Where("id = ?", roomID), &model.Room{}},
		}
		for _, step := range steps {
			if err := step.query.Delete(step.model).Error; err != nil {
				return fmt.Errorf("failed to delete %s for room %s: %w", step.what, roomID, err)
			}
		}
		return nil
	})
}
