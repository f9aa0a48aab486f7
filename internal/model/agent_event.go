package model

import (
	"time"

	"gorm.io/datatypes"
)

// Event kinds relayed to the external agent.
const (
	EventRoomCreated              = "room.created"
	EventRoomStatusChanged        = "room.status_changed"
	EventRoomCheckedIn            = "room.checked_in"
	EventRoomUnlocked             = "room.unlocked"
	EventCheckoutStarted          = "checkout.started"
	EventCheckoutSkipped          = "checkout.skipped"
	EventCheckoutCompareRequested = "checkout.compare_requested"
	EventCheckoutResultsReady     = "checkout.results_ready"
	EventCheckoutCompleted        = "checkout.completed"
	EventCheckoutEscalated        = "checkout.escalated"
	EventObjectUpdated            = "object.updated"
)

// AgentEvent is an outbox row written in the same transaction as the change it
// describes. The relay publishes rows with a nil PublishedAt.
type AgentEvent struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind        string         `gorm:"size:64;index;not null" json:"kind"`
	RoomID      string         `gorm:"size:36;index" json:"roomId"`
	CheckoutID  string         `gorm:"size:36" json:"checkoutId,omitempty"`
	Payload     datatypes.JSON `json:"payload"`
	CreatedAt   time.Time      `gorm:"not null" json:"createdAt"`
	PublishedAt *time.Time     `gorm:"index" json:"publishedAt"`
	Attempts    int            `gorm:"not null;default:0" json:"attempts"`
	LastError   string         `gorm:"size:1024" json:"lastError,omitempty"`
}
