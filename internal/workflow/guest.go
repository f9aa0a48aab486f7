package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"roomcheck-backend/internal/auth"
	"roomcheck-backend/internal/model"
	"roomcheck-backend/internal/notification"
	"roomcheck-backend/internal/storage"
	"roomcheck-backend/internal/upload"
)

// AvailableRooms lists rooms a guest can check into.
func (s *Service) AvailableRooms(ctx context.Context) ([]model.Room, error) {
	return call(ctx, s, "list available rooms", func(ctx context.Context) ([]model.Room, error) {
		return s.store.ListAvailableRooms(ctx)
	})
}

// CurrentStay returns the room the guest holds, or nil when they hold none.
func (s *Service) CurrentStay(ctx context.Context, guestID string) (*CurrentStay, error) {
	room, err := call(ctx, s, "room for guest", func(ctx context.Context) (*model.Room, error) {
		return s.store.RoomForGuest(ctx, guestID)
	})
	if err != nil || room == nil {
		return nil, err
	}
	checkout, err := call(ctx, s, "active checkout", func(ctx context.Context) (*model.Checkout, error) {
		return s.store.ActiveCheckout(ctx, room.ID, guestID)
	})
	if err != nil {
		return nil, err
	}
	return &CurrentStay{Room: room, Checkout: checkout}, nil
}

// CheckIn locks a room for the guest.
func (s *Service) CheckIn(ctx context.Context, guest auth.Principal, roomID string) (*model.Room, error) {
	now := s.Now()
	room, err := call(ctx, s, "check in", func(ctx context.Context) (*model.Room, error) {
		return s.store.CheckIn(ctx, roomID, guest.ID, guest.Name, now)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Guest checked in", zap.String("room_id", roomID), zap.String("guest_id", guest.ID))
	s.announce(ctx, room.ID, fmt.Sprintf("%s checked in.", displayName(guest)), notification.Notice{
		UserID: room.HostID,
		Title:  room.Name,
		Body:   fmt.Sprintf("%s checked in.", displayName(guest)),
	})
	return room, nil
}

// StartCheckout opens a checkout for the guest's room. A guest who skips
// photos forfeits the automatic refund and the room is released immediately.
func (s *Service) StartCheckout(ctx context.Context, guest auth.Principal, roomID string, willUploadPhotos bool) (*model.Checkout, error) {
	checkout, err := call(ctx, s, "start checkout", func(ctx context.Context) (*model.Checkout, error) {
		return s.store.StartCheckout(ctx, roomID, guest.ID, willUploadPhotos)
	})
	if err != nil {
		return nil, err
	}

	text := fmt.Sprintf("%s started checkout.", displayName(guest))
	if checkout.SkippedPhotos {
		text = fmt.Sprintf("%s checked out without photos. The refund needs manual review.", displayName(guest))
	}
	s.logger.Info("Checkout started",
		zap.String("room_id", roomID),
		zap.String("checkout_id", checkout.ID),
		zap.Bool("skipped_photos", checkout.SkippedPhotos))
	s.announce(ctx, roomID, text, notification.Notice{UserID: checkout.HostID, Title: "Checkout", Body: text})
	return checkout, nil
}

// guestCheckout loads a checkout and checks it belongs to the guest and room.
func (s *Service) guestCheckout(ctx context.Context, guestID, roomID, checkoutID string) (*model.Checkout, error) {
	c, err := call(ctx, s, "get checkout", func(ctx context.Context) (*model.Checkout, error) {
		return s.store.GetCheckout(ctx, checkoutID)
	})
	if err != nil {
		return nil, err
	}
	if c.RoomID != roomID {
		return nil, model.ErrCheckoutNotFound
	}
	if c.GuestID != guestID {
		return nil, model.ErrNotCheckedIn
	}
	return c, nil
}

// BeginPhotoUpload issues upload URLs for a batch of exit photos.
func (s *Service) BeginPhotoUpload(ctx context.Context, guestID, roomID, checkoutID string, photos []PhotoInfo) (*BatchTicket, error) {
	if err := validatePhotos(photos); err != nil {
		return nil, err
	}
	c, err := s.guestCheckout(ctx, guestID, roomID, checkoutID)
	if err != nil {
		return nil, err
	}

	batch := &model.UploadBatch{
		ID:         uuid.NewString(),
		RoomID:     roomID,
		CheckoutID: checkoutID,
		GuestID:    guestID,
	}
	uploads := make([]storage.PresignedURL, 0, len(photos))
	keys := make([]string, 0, len(photos))
	for _, p := range photos {
		key := storage.CheckoutPhotoKey(c.HostID, roomID, checkoutID, batch.ID+"-"+p.Filename)
		u, err := s.blobs.PresignUpload(ctx, key, p.ContentType)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
		keys = append(keys, key)
		batch.Photos = append(batch.Photos, model.BatchPhoto{
			Filename:    p.Filename,
			ContentType: p.ContentType,
			Size:        p.Size,
			StorageKey:  key,
		})
	}

	if err := s.retry.Do(ctx, "create upload batch", func(ctx context.Context) error {
		return s.store.CreateUploadBatch(ctx, batch)
	}); err != nil {
		return nil, err
	}
	s.uploads.Register(upload.Pending{
		BatchID:    batch.ID,
		RoomID:     roomID,
		CheckoutID: checkoutID,
		GuestID:    guestID,
		Keys:       keys,
		CreatedAt:  s.Now(),
	})
	return &BatchTicket{Batch: batch, Uploads: uploads, ExpiresAt: s.Now().Add(s.blobs.Expiration())}, nil
}

// CompletePhotoUpload verifies that every photo in the batch reached the blob
// store and hands the checkout to the agent for comparison.
func (s *Service) CompletePhotoUpload(ctx context.Context, guestID, roomID, checkoutID, batchID string) (*model.Checkout, error) {
	pending, ok := s.uploads.Lookup(batchID)
	if !ok {
		return nil, s.unknownBatch(ctx, guestID, roomID, checkoutID, batchID)
	}
	if pending.GuestID != guestID || pending.RoomID != roomID || pending.CheckoutID != checkoutID {
		return nil, model.ErrBatchNotFound
	}

	for _, key := range pending.Keys {
		exists, err := s.blobs.Exists(ctx, key)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: photo %s has not been uploaded", model.ErrInvalidInput, key[strings.LastIndex(key, "/")+1:])
		}
	}

	checkout, err := call(ctx, s, "complete upload batch", func(ctx context.Context) (*model.Checkout, error) {
		return s.store.CompleteUploadBatch(ctx, batchID, s.Now())
	})
	if err != nil {
		return nil, err
	}
	s.uploads.Settle(batchID)
	s.logger.Info("Exit photos uploaded",
		zap.String("checkout_id", checkoutID),
		zap.Int("photos", len(pending.Keys)))
	return checkout, nil
}

// unknownBatch explains why a batch is not in the registry.
func (s *Service) unknownBatch(ctx context.Context, guestID, roomID, checkoutID, batchID string) error {
	batch, err := call(ctx, s, "get upload batch", func(ctx context.Context) (*model.UploadBatch, error) {
		return s.store.GetUploadBatch(ctx, batchID)
	})
	if err != nil {
		return err
	}
	if batch.GuestID != guestID || batch.RoomID != roomID || batch.CheckoutID != checkoutID {
		return model.ErrBatchNotFound
	}
	switch batch.Status {
	case model.BatchStatusUploaded:
		return fmt.Errorf("%w: batch %s is already uploaded", model.ErrInvalidTransition, batchID)
	case model.BatchStatusReadyToUpload:
		if err := s.retry.Do(ctx, "expire upload batch", func(ctx context.Context) error {
			return s.store.FailUploadBatch(ctx, batchID, "upload links expired")
		}); err != nil {
			return err
		}
	}
	return model.ErrBatchExpired
}

// FailPhotoUpload abandons a batch the client could not finish.
func (s *Service) FailPhotoUpload(ctx context.Context, guestID, roomID, checkoutID, batchID, reason string) error {
	batch, err := call(ctx, s, "get upload batch", func(ctx context.Context) (*model.UploadBatch, error) {
		return s.store.GetUploadBatch(ctx, batchID)
	})
	if err != nil {
		return err
	}
	if batch.GuestID != guestID || batch.RoomID != roomID || batch.CheckoutID != checkoutID {
		return model.ErrBatchNotFound
	}
	if reason == "" {
		reason = "upload abandoned by client"
	}
	if err := s.retry.Do(ctx, "fail upload batch", func(ctx context.Context) error {
		return s.store.FailUploadBatch(ctx, batchID, reason)
	}); err != nil {
		return err
	}
	s.uploads.Settle(batchID)
	return nil
}

// expireBatch fails a batch whose upload URLs expired before completion.
func (s *Service) expireBatch(p upload.Pending) {
	err := s.retry.Do(context.Background(), "expire upload batch", func(ctx context.Context) error {
		return s.store.FailUploadBatch(ctx, p.BatchID, "upload links expired")
	})
	if errors.Is(err, model.ErrInvalidTransition) {
		return
	}
	if err != nil {
		s.logger.Warn("Failed to expire upload batch", zap.String("batch_id", p.BatchID), zap.Error(err))
		return
	}
	s.logger.Info("Upload batch expired", zap.String("batch_id", p.BatchID), zap.String("checkout_id", p.CheckoutID))
}

// RefundSummary returns the refund breakdown with links to the evidence
// photos of every missing object.
func (s *Service) RefundSummary(ctx context.Context, guestID, roomID, checkoutID string) (*RefundView, error) {
	c, err := s.guestCheckout(ctx, guestID, roomID, checkoutID)
	if err != nil {
		return nil, err
	}
	return s.refundView(ctx, c), nil
}

func (s *Service) refundView(ctx context.Context, c *model.Checkout) *RefundView {
	v := newRefundView(c)
	for i, m := range v.MissingObjects {
		if m.EvidenceRef == "" {
			continue
		}
		u, err := s.blobs.PresignDownload(ctx, m.EvidenceRef)
		if err != nil {
			s.logger.Warn("Failed to sign evidence link", zap.String("key", m.EvidenceRef), zap.Error(err))
			continue
		}
		v.MissingObjects[i].EvidenceURL = u.URL
	}
	return v
}

// ConfirmRefund accepts the refund summary, completes the checkout and
// releases the room.
func (s *Service) ConfirmRefund(ctx context.Context, guest auth.Principal, roomID, checkoutID string) (*RefundView, error) {
	now := s.Now()
	c, err := call(ctx, s, "confirm refund", func(ctx context.Context) (*model.Checkout, error) {
		return s.store.ConfirmRefund(ctx, roomID, checkoutID, guest.ID, now)
	})
	if err != nil {
		return nil, err
	}
	v := s.refundView(ctx, c)
	text := fmt.Sprintf("%s confirmed checkout. Refund: $%s.", displayName(guest), v.RefundAmount.StringFixed(2))
	s.logger.Info("Checkout completed", zap.String("checkout_id", c.ID), zap.String("refund", v.RefundAmount.String()))
	s.announce(ctx, roomID, text, notification.Notice{UserID: c.HostID, Title: "Checkout complete", Body: text})
	return v, nil
}

func displayName(p auth.Principal) string {
	if p.Name != "" {
		return p.Name
	}
	return "A guest"
}
