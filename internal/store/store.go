package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"roomcheck-backend/internal/model"
)

// RoomStore manages the room directory.
type RoomStore interface {
	CreateRoom(ctx context.Context, room *model.Room) error
	GetRoom(ctx context.Context, roomID string) (*model.Room, error)
	ListRoomsByHost(ctx context.Context, hostID string) ([]model.Room, error)
	ListAvailableRooms(ctx context.Context) ([]model.Room, error)
	RoomForGuest(ctx context.Context, guestID string) (*model.Room, error)
	TransitionRoom(ctx context.Context, roomID string, actor model.Actor, to model.RoomStatus, message string) (*model.Room, error)
	UpdateDeposit(ctx context.Context, roomID string, amount decimal.Decimal) (*model.Room, error)
	AddBaselinePhotos(ctx context.Context, roomID string, n int) (*model.Room, error)
	PurgeRoom(ctx context.Context, roomID string) error
}

// OccupancyStore owns the per-room occupancy lock.
type OccupancyStore interface {
	CheckIn(ctx context.Context, roomID, guestID, guestName string, now time.Time) (*model.Room, error)
	Unlock(ctx context.Context, roomID string) (bool, error)
}

// CheckoutStore manages checkouts and their photo batches.
type CheckoutStore interface {
	StartCheckout(ctx context.Context, roomID, guestID string, willUploadPhotos bool) (*model.Checkout, error)
	GetCheckout(ctx context.Context, checkoutID string) (*model.Checkout, error)
	ActiveCheckout(ctx context.Context, roomID, guestID string) (*model.Checkout, error)
	ListCheckouts(ctx context.Context, roomID string) ([]model.Checkout, error)
	RecordComparison(ctx context.Context, checkoutID string, missing []model.MissingObject) (*model.Checkout, error)
	ConfirmRefund(ctx context.Context, roomID, checkoutID, guestID string, now time.Time) (*model.Checkout, error)
	SettleManualRefund(ctx context.Context, roomID, checkoutID string, deduction decimal.Decimal, now time.Time) (*model.Checkout, error)
	StaleCheckouts(ctx context.Context, cutoff time.Time) ([]model.Checkout, error)
	RequeueComparison(ctx context.Context, checkoutID string, now time.Time) (*model.Checkout, error)
	EscalateCheckout(ctx context.Context, checkoutID string) (*model.Checkout, error)

	CreateUploadBatch(ctx context.Context, batch *model.UploadBatch) error
	GetUploadBatch(ctx context.Context, batchID string) (*model.UploadBatch, error)
	CompleteUploadBatch(ctx context.Context, batchID string, now time.Time) (*model.Checkout, error)
	FailUploadBatch(ctx context.Context, batchID, reason string) error
}

// ObjectStore manages detected objects.
type ObjectStore interface {
	ListObjects(ctx context.Context, roomID string) ([]model.DetectedObject, error)
	ReportDetections(ctx context.Context, roomID string, objects []model.DetectedObject) (int, error)
	UpdateObject(ctx context.Context, roomID, objectID string, patch ObjectPatch) (*model.DetectedObject, error)
}

// ChatStore manages the per-room chats.
type ChatStore interface {
	AppendMessage(ctx context.Context, roomID string, sender model.Sender, text string) (*model.ChatMessage, error)
	PostAgentMessage(ctx context.Context, roomID, text string) (*model.ChatMessage, error)
	ListMessages(ctx context.Context, roomID string, limit int) ([]model.ChatMessage, error)
	MarkRead(ctx context.Context, roomID string) error
}

// EventStore exposes the agent event outbox to the relay.
type EventStore interface {
	PendingEvents(ctx context.Context, limit int) ([]model.AgentEvent, error)
	MarkEventPublished(ctx context.Context, id int64, now time.Time) error
	MarkEventFailed(ctx context.Context, id int64, reason string) error
}

// SubscriptionStore manages push subscriptions.
type SubscriptionStore interface {
	SaveSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsForUser(ctx context.Context, userID string) ([]model.PushSubscription, error)
}

// Store defines the interface for all database operations.
type Store interface {
	RoomStore
	OccupancyStore
	CheckoutStore
	ObjectStore
	ChatStore
	EventStore
	SubscriptionStore

	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// appendEvent writes an outbox row on tx so it commits or rolls back with the
// change it describes.
func appendEvent(tx *gorm.DB, kind, roomID, checkoutID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", kind, err)
	}
	ev := model.AgentEvent{
		Kind:       kind,
		RoomID:     roomID,
		CheckoutID: checkoutID,
		Payload:    datatypes.JSON(raw),
	}
	if err := tx.Create(&ev).Error; err != nil {
		return fmt.Errorf("failed to append %s event: %w", kind, err)
	}
	return nil
}

// notFound maps gorm.ErrRecordNotFound to the given domain error.
func notFound(err error, domainErr *model.DomainError) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domainErr
	}
	return err
}

func loadRoom(tx *gorm.DB, roomID string) (*model.Room, error) {
	var room model.Room
	if err := tx.First(&room, "id = ?", roomID).Error; err != nil {
		return nil, notFound(err, model.ErrRoomNotFound)
	}
	return &room, nil
}

func loadCheckout(tx *gorm.DB, checkoutID string) (*model.Checkout, error) {
	var c model.Checkout
	if err := tx.First(&c, "id = ?", checkoutID).Error; err != nil {
		return nil, notFound(err, model.ErrCheckoutNotFound)
	}
	return &c, nil
}

// unlockFields clears every occupancy column.
func unlockFields() map[string]any {
	return map[string]any{
		"is_locked":            false,
		"locked_by_guest_id":   nil,
		"locked_by_guest_name": nil,
		"locked_at":            nil,
	}
}
