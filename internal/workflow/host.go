package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"roomcheck-backend/internal/model"
	"roomcheck-backend/internal/notification"
	"roomcheck-backend/internal/storage"
	"roomcheck-backend/internal/store"
)

// CreateRoom adds a room to the host's directory. A nil deposit uses the
// default.
func (s *Service) CreateRoom(ctx context.Context, hostID, name string, deposit *decimal.Decimal) (*model.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: room name is required", model.ErrInvalidInput)
	}
	amount := model.DefaultDeposit
	if deposit != nil {
		if deposit.IsNegative() {
			return nil, fmt.Errorf("%w: deposit cannot be negative", model.ErrInvalidInput)
		}
		amount = *deposit
	}

	room := &model.Room{
		HostID:        hostID,
		Name:          name,
		Status:        model.RoomStatusCreated,
		DepositAmount: amount,
		AgentMessage:  model.WelcomeMessage,
	}
	if err := s.retry.Do(ctx, "create room", func(ctx context.Context) error {
		return s.store.CreateRoom(ctx, room)
	}); err != nil {
		return nil, err
	}
	s.logger.Info("Room created", zap.String("room_id", room.ID), zap.String("host_id", hostID))
	return room, nil
}

// ListRooms lists the host's rooms.
func (s *Service) ListRooms(ctx context.Context, hostID string) ([]model.Room, error) {
	return call(ctx, s, "list rooms", func(ctx context.Context) ([]model.Room, error) {
		return s.store.ListRoomsByHost(ctx, hostID)
	})
}

// GetRoom returns one of the host's rooms.
func (s *Service) GetRoom(ctx context.Context, hostID, roomID string) (*model.Room, error) {
	return s.ownedRoom(ctx, hostID, roomID)
}

// UpdateDeposit changes the deposit snapshotted by future checkouts.
func (s *Service) UpdateDeposit(ctx context.Context, hostID, roomID string, amount decimal.Decimal) (*model.Room, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: deposit cannot be negative", model.ErrInvalidInput)
	}
	if _, err := s.ownedRoom(ctx, hostID, roomID); err != nil {
		return nil, err
	}
	return call(ctx, s, "update deposit", func(ctx context.Context) (*model.Room, error) {
		return s.store.UpdateDeposit(ctx, roomID, amount)
	})
}

// AddBaselinePhotos issues upload URLs for baseline photos and moves the room
// to uploading.
func (s *Service) AddBaselinePhotos(ctx context.Context, hostID, roomID string, photos []PhotoInfo) (*BaselineUpload, error) {
	if err := validatePhotos(photos); err != nil {
		return nil, err
	}
	if _, err := s.ownedRoom(ctx, hostID, roomID); err != nil {
		return nil, err
	}

	uploads := make([]storage.PresignedURL, 0, len(photos))
	for _, p := range photos {
		u, err := s.blobs.PresignUpload(ctx, storage.BaselinePhotoKey(hostID, roomID, p.Filename), p.ContentType)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	room, err := call(ctx, s, "add baseline photos", func(ctx context.Context) (*model.Room, error) {
		return s.store.AddBaselinePhotos(ctx, roomID, len(photos))
	})
	if err != nil {
		return nil, err
	}
	return &BaselineUpload{Room: room, Uploads: uploads}, nil
}

// transitionOwned moves one of the host's rooms to the given status.
func (s *Service) transitionOwned(ctx context.Context, hostID, roomID string, to model.RoomStatus) (*model.Room, error) {
	if _, err := s.ownedRoom(ctx, hostID, roomID); err != nil {
		return nil, err
	}
	return call(ctx, s, "transition room", func(ctx context.Context) (*model.Room, error) {
		return s.store.TransitionRoom(ctx, roomID, model.ActorHost, to, "")
	})
}

// RequestProcessing asks the agent to detect objects in the baseline photos.
func (s *Service) RequestProcessing(ctx context.Context, hostID, roomID string) (*model.Room, error) {
	return s.transitionOwned(ctx, hostID, roomID, model.RoomStatusProcessing)
}

// ApproveReview accepts the agent's detections and opens the room to guests.
func (s *Service) ApproveReview(ctx context.Context, hostID, roomID string) (*model.Room, error) {
	return s.transitionOwned(ctx, hostID, roomID, model.RoomStatusComplete)
}

// DeleteRoom asks the agent to tear the room down. The room is purged when
// the agent reports it is done.
func (s *Service) DeleteRoom(ctx context.Context, hostID, roomID string) (*model.Room, error) {
	return s.transitionOwned(ctx, hostID, roomID, model.RoomStatusDeleting)
}

// UnlockRoom releases a room regardless of who holds it.
func (s *Service) UnlockRoom(ctx context.Context, hostID, roomID string) (bool, error) {
	room, err := s.ownedRoom(ctx, hostID, roomID)
	if err != nil {
		return false, err
	}
	released, err := call(ctx, s, "unlock room", func(ctx context.Context) (bool, error) {
		return s.store.Unlock(ctx, roomID)
	})
	if err != nil || !released {
		return released, err
	}
	s.logger.Info("Room unlocked by host", zap.String("room_id", roomID))
	var guestID string
	if room.LockedByGuestID != nil {
		guestID = *room.LockedByGuestID
	}
	s.announce(ctx, roomID, "The host unlocked the room.", notification.Notice{
		UserID: guestID,
		Title:  room.Name,
		Body:   "Your stay was ended by the host.",
	})
	return true, nil
}

// ListObjects returns the room's detected objects with crop links.
func (s *Service) ListObjects(ctx context.Context, hostID, roomID string) ([]ObjectView, error) {
	if _, err := s.ownedRoom(ctx, hostID, roomID); err != nil {
		return nil, err
	}
	objects, err := call(ctx, s, "list objects", func(ctx context.Context) ([]model.DetectedObject, error) {
		return s.store.ListObjects(ctx, roomID)
	})
	if err != nil {
		return nil, err
	}
	views := make([]ObjectView, 0, len(objects))
	for _, o := range objects {
		v := ObjectView{DetectedObject: o}
		if o.CropPath != "" {
			u, err := s.blobs.PresignDownload(ctx, o.CropPath)
			if err != nil {
				s.logger.Warn("Failed to sign crop link", zap.String("key", o.CropPath), zap.Error(err))
			} else {
				v.CropURL = u.URL
			}
		}
		views = append(views, v)
	}
	return views, nil
}

// UpdateObject relabels or verifies a detected object.
func (s *Service) UpdateObject(ctx context.Context, hostID, roomID, objectID string, patch store.ObjectPatch) (*model.DetectedObject, error) {
	if patch.Label != nil && strings.TrimSpace(*patch.Label) == "" {
		return nil, fmt.Errorf("%w: label cannot be empty", model.ErrInvalidInput)
	}
	if _, err := s.ownedRoom(ctx, hostID, roomID); err != nil {
		return nil, err
	}
	return call(ctx, s, "update object", func(ctx context.Context) (*model.DetectedObject, error) {
		return s.store.UpdateObject(ctx, roomID, objectID, patch)
	})
}

// ListCheckouts returns the room's checkout history.
func (s *Service) ListCheckouts(ctx context.Context, hostID, roomID string) ([]model.Checkout, error) {
	if _, err := s.ownedRoom(ctx, hostID, roomID); err != nil {
		return nil, err
	}
	return call(ctx, s, "list checkouts", func(ctx context.Context) ([]model.Checkout, error) {
		return s.store.ListCheckouts(ctx, roomID)
	})
}

// SettleManualRefund finalizes a checkout the guest skipped photos for or the
// agent never compared.
func (s *Service) SettleManualRefund(ctx context.Context, hostID, roomID, checkoutID string, deduction decimal.Decimal) (*RefundView, error) {
	if deduction.IsNegative() {
		return nil, fmt.Errorf("%w: deduction cannot be negative", model.ErrInvalidInput)
	}
	if _, err := s.ownedRoom(ctx, hostID, roomID); err != nil {
		return nil, err
	}
	now := s.Now()
	c, err := call(ctx, s, "settle refund", func(ctx context.Context) (*model.Checkout, error) {
		return s.store.SettleManualRefund(ctx, roomID, checkoutID, deduction, now)
	})
	if err != nil {
		return nil, err
	}
	v := s.refundView(ctx, c)
	s.announce(ctx, roomID, "", notification.Notice{
		UserID: c.GuestID,
		Title:  "Refund settled",
		Body:   fmt.Sprintf("Your refund of $%s has been settled.", v.RefundAmount.StringFixed(2)),
	})
	return v, nil
}
