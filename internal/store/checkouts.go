package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"roomcheck-backend/internal/model"
	"roomcheck-backend/internal/refund"
)

// resultStatuses are the checkout states that accept a comparison result.
var resultStatuses = []model.CheckoutStatus{
	model.CheckoutStatusPending,
	model.CheckoutStatusUploading,
	model.CheckoutStatusProcessing,
}

type checkoutStartedPayload struct {
	GuestID          string          `json:"guestId"`
	WillUploadPhotos bool            `json:"willUploadPhotos"`
	DepositAmount    decimal.Decimal `json:"depositAmount"`
}

type resultsReadyPayload struct {
	MissingCount    int             `json:"missingCount"`
	RefundDeduction decimal.Decimal `json:"refundDeduction"`
}

type checkoutCompletedPayload struct {
	RefundDeduction decimal.Decimal `json:"refundDeduction"`
	RefundAmount    decimal.Decimal `json:"refundAmount"`
	Manual          bool            `json:"manual"`
}

type compareRequestedPayload struct {
	PhotoCount int      `json:"photoCount"`
	Keys       []string `json:"keys,omitempty"`
	Attempt    int      `json:"attempt"`
}

type escalatedPayload struct {
	Attempts int `json:"attempts"`
}

// StartCheckout creates a checkout for the guest holding the room's lock. When
// the guest skips photos the room is unlocked in the same transaction.
func (s *gormStore) StartCheckout(ctx context.Context, roomID, guestID string, willUploadPhotos bool) (*model.Checkout, error) {
	var checkout *model.Checkout
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room model.Room
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&room, "id = ?", roomID).Error; err != nil {
			return notFound(err, model.ErrRoomNotFound)
		}
		if !room.HeldBy(guestID) {
			return model.ErrNotCheckedIn
		}

		var active int64
		if err := tx.Model(&model.Checkout{}).
			Where("room_id = ? AND guest_id = ? AND status IN ?", roomID, guestID, model.ActiveCheckoutStatuses).
			Count(&active).Error; err != nil {
			return fmt.Errorf("failed to look up active checkouts: %w", err)
		}
		if active > 0 {
			return model.ErrCheckoutInProgress
		}

		c := &model.Checkout{
			ID:              uuid.NewString(),
			RoomID:          roomID,
			GuestID:         guestID,
			HostID:          room.HostID,
			Status:          model.CheckoutStatusPending,
			MissingObjects:  datatypes.JSONSlice[model.MissingObject]{},
			RefundDeduction: decimal.Zero,
			DepositAmount:   room.DepositAmount,
		}
		if room.LockedByGuestName != nil {
			c.GuestName = *room.LockedByGuestName
		}
		if !willUploadPhotos {
			c.Status = model.CheckoutStatusSkippedPhotos
			c.SkippedPhotos = true
		}
		if err := tx.Create(c).Error; err != nil {
			return fmt.Errorf("failed to create checkout: %w", err)
		}

		kind := model.EventCheckoutStarted
		if !willUploadPhotos {
			kind = model.EventCheckoutSkipped
			released, err := unlockRoom(tx, roomID, guestID)
			if err != nil {
				return err
			}
			if !released {
				return model.ErrNotCheckedIn
			}
			if err := appendEvent(tx, model.EventRoomUnlocked, roomID, c.ID, unlockedPayload{Reason: "skipped_photos"}); err != nil {
				return err
			}
		}
		if err := appendEvent(tx, kind, roomID, c.ID, checkoutStartedPayload{
			GuestID:          guestID,
			WillUploadPhotos: willUploadPhotos,
			DepositAmount:    c.DepositAmount,
		}); err != nil {
			return err
		}

		checkout = c
		return nil
	})
	return checkout, err
}

func (s *gormStore) GetCheckout(ctx context.Context, checkoutID string) (*model.Checkout, error) {
	return loadCheckout(s.db.WithContext(ctx), checkoutID)
}

// ActiveCheckout returns the guest's non-terminal checkout for the room, or
// nil when there is none.
func (s *gormStore) ActiveCheckout(ctx context.Context, roomID, guestID string) (*model.Checkout, error) {
	var checkouts []model.Checkout
	err := s.db.WithContext(ctx).
		Where("room_id = ? AND guest_id = ? AND status IN ?", roomID, guestID, model.ActiveCheckoutStatuses).
		Order("created_at DESC").
		Limit(1).
		Find(&checkouts).Error
	if err != nil {
		return nil, err
	}
	if len(checkouts) == 0 {
		return nil, nil
	}
	return &checkouts[0], nil
}

// ListCheckouts returns every checkout of a room, newest first.
func (s *gormStore) ListCheckouts(ctx context.Context, roomID string) ([]model.Checkout, error) {
	var checkouts []model.Checkout
	err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Find(&checkouts).Error
	return checkouts, err
}

// RecordComparison stores the agent's missing-object list and moves the
// checkout to awaiting_confirmation. The deduction is always derived from the
// list, never taken from the caller.
func (s *gormStore) RecordComparison(ctx context.Context, checkoutID string, missing []model.MissingObject) (*model.Checkout, error) {
	if missing == nil {
		missing = []model.MissingObject{}
	}
	deduction := refund.Deduction(len(missing))

	var checkout *model.Checkout
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Checkout{}).
			Where("id = ? AND status IN ?", checkoutID, resultStatuses).
			Updates(map[string]any{
				"status":           model.CheckoutStatusAwaitingConfirmation,
				"missing_objects":  datatypes.JSONSlice[model.MissingObject](missing),
				"refund_deduction": deduction,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to record comparison for checkout %s: %w", checkoutID, res.Error)
		}
		if res.RowsAffected == 0 {
			return classifyCheckoutConflict(tx, checkoutID)
		}

		c, err := loadCheckout(tx, checkoutID)
		if err != nil {
			return err
		}
		if err := appendEvent(tx, model.EventCheckoutResultsReady, c.RoomID, c.ID, resultsReadyPayload{
			MissingCount:    len(missing),
			RefundDeduction: deduction,
		}); err != nil {
			return err
		}
		checkout = c
		return nil
	})
	return checkout, err
}

// ConfirmRefund completes a checkout awaiting confirmation and releases the
// guest's lock on the room.
func (s *gormStore) ConfirmRefund(ctx context.Context, roomID, checkoutID, guestID string, now time.Time) (*model.Checkout, error) {
	var checkout *model.Checkout
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := loadCheckout(tx, checkoutID)
		if err != nil {
			return err
		}
		if c.RoomID != roomID {
			return model.ErrCheckoutNotFound
		}
		if c.GuestID != guestID {
			return model.ErrNotCheckedIn
		}

		res := tx.Model(&model.Checkout{}).
			Where("id = ? AND status = ?", checkoutID, model.CheckoutStatusAwaitingConfirmation).
			Updates(map[string]any{
				"status":             model.CheckoutStatusComplete,
				"confirmed_by_guest": true,
				"completed_at":       now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to confirm checkout %s: %w", checkoutID, res.Error)
		}
		if res.RowsAffected == 0 {
			return model.ErrNotAwaitingConfirmation
		}

		released, err := unlockRoom(tx, roomID, guestID)
		if err != nil {
			return err
		}
		if released {
			if err := appendEvent(tx, model.EventRoomUnlocked, roomID, checkoutID, unlockedPayload{Reason: "checkout_confirmed"}); err != nil {
				return err
			}
		}

		if checkout, err = loadCheckout(tx, checkoutID); err != nil {
			return err
		}
		return appendEvent(tx, model.EventCheckoutCompleted, roomID, checkoutID, checkoutCompletedPayload{
			RefundDeduction: checkout.RefundDeduction,
			RefundAmount:    refund.Apply(checkout.DepositAmount, checkout.RefundDeduction),
		})
	})
	return checkout, err
}

// SettleManualRefund closes a skipped_photos or escalated checkout with a
// deduction decided by the host. Settling an escalated checkout also releases
// the guest's lock.
func (s *gormStore) SettleManualRefund(ctx context.Context, roomID, checkoutID string, deduction decimal.Decimal, now time.Time) (*model.Checkout, error) {
	var checkout *model.Checkout
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := loadCheckout(tx, checkoutID)
		if err != nil {
			return err
		}
		if c.RoomID != roomID {
			return model.ErrCheckoutNotFound
		}
		if deduction.IsNegative() || deduction.GreaterThan(c.DepositAmount) {
			return fmt.Errorf("%w: deduction must be between 0 and the deposit", model.ErrInvalidInput)
		}

		res := tx.Model(&model.Checkout{}).
			Where("id = ?", checkoutID).
			Where(tx.Where("status = ?", model.CheckoutStatusSkippedPhotos).
				Or("escalated = ? AND status IN ?", true, model.ComparingStatuses)).
			Updates(map[string]any{
				"status":           model.CheckoutStatusComplete,
				"refund_deduction": deduction,
				"completed_at":     now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to settle checkout %s: %w", checkoutID, res.Error)
		}
		if res.RowsAffected == 0 {
			return classifyCheckoutConflict(tx, checkoutID)
		}

		if c.Escalated {
			released, err := unlockRoom(tx, roomID, c.GuestID)
			if err != nil {
				return err
			}
			if released {
				if err := appendEvent(tx, model.EventRoomUnlocked, roomID, checkoutID, unlockedPayload{Reason: "manual_settlement"}); err != nil {
					return err
				}
			}
		}

		if checkout, err = loadCheckout(tx, checkoutID); err != nil {
			return err
		}
		return appendEvent(tx, model.EventCheckoutCompleted, roomID, checkoutID, checkoutCompletedPayload{
			RefundDeduction: deduction,
			RefundAmount:    refund.Apply(checkout.DepositAmount, deduction),
			Manual:          true,
		})
	})
	return checkout, err
}

// classifyCheckoutConflict explains why a conditional checkout update matched
// no row.
func classifyCheckoutConflict(tx *gorm.DB, checkoutID string) error {
	c, err := loadCheckout(tx, checkoutID)
	if err != nil {
		return err
	}
	if c.Status == model.CheckoutStatusComplete {
		return model.ErrCheckoutFinalized
	}
	return fmt.Errorf("%w: checkout %s is %s", model.ErrInvalidTransition, checkoutID, c.Status)
}

// StaleCheckouts returns unescalated checkouts that have waited on the agent
// since before cutoff.
func (s *gormStore) StaleCheckouts(ctx context.Context, cutoff time.Time) ([]model.Checkout, error) {
	var checkouts []model.Checkout
	err := s.db.WithContext(ctx).
		Where("status IN ? AND escalated = ?", model.ComparingStatuses, false).
		Where("COALESCE(processing_started_at, updated_at) < ?", cutoff).
		Order("updated_at").
		Find(&checkouts).Error
	return checkouts, err
}

// RequeueComparison asks the agent again for a stalled comparison.
func (s *gormStore) RequeueComparison(ctx context.Context, checkoutID string, now time.Time) (*model.Checkout, error) {
	var checkout *model.Checkout
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Checkout{}).
			Where("id = ? AND status IN ? AND escalated = ?", checkoutID, model.ComparingStatuses, false).
			Updates(map[string]any{
				"agent_attempts":        gorm.Expr("agent_attempts + 1"),
				"processing_started_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to requeue checkout %s: %w", checkoutID, res.Error)
		}
		if res.RowsAffected == 0 {
			return classifyCheckoutConflict(tx, checkoutID)
		}

		c, err := loadCheckout(tx, checkoutID)
		if err != nil {
			return err
		}
		if err := appendEvent(tx, model.EventCheckoutCompareRequested, c.RoomID, c.ID, compareRequestedPayload{
			PhotoCount: c.PhotoCount,
			Attempt:    c.AgentAttempts,
		}); err != nil {
			return err
		}
		checkout = c
		return nil
	})
	return checkout, err
}

// EscalateCheckout flags a checkout the agent never answered.
func (s *gormStore) EscalateCheckout(ctx context.Context, checkoutID string) (*model.Checkout, error) {
	var checkout *model.Checkout
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Checkout{}).
			Where("id = ? AND status IN ? AND escalated = ?", checkoutID, model.ComparingStatuses, false).
			Update("escalated", true)
		if res.Error != nil {
			return fmt.Errorf("failed to escalate checkout %s: %w", checkoutID, res.Error)
		}
		if res.RowsAffected == 0 {
			return classifyCheckoutConflict(tx, checkoutID)
		}

		c, err := loadCheckout(tx, checkoutID)
		if err != nil {
			return err
		}
		if err := appendEvent(tx, model.EventCheckoutEscalated, c.RoomID, c.ID, escalatedPayload{Attempts: c.AgentAttempts}); err != nil {
			return err
		}
		checkout = c
		return nil
	})
	return checkout, err
}
