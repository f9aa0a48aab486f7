package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoomStatus is the lifecycle state of a room.
type RoomStatus string

const (
	RoomStatusCreated        RoomStatus = "created"
	RoomStatusAwaitingPhotos RoomStatus = "awaiting_photos"
	RoomStatusUploading      RoomStatus = "uploading"
	RoomStatusReadyToProcess RoomStatus = "ready_to_process"
	RoomStatusProcessing     RoomStatus = "processing"
	RoomStatusReview         RoomStatus = "review"
	RoomStatusComplete       RoomStatus = "complete"
	RoomStatusDeleting       RoomStatus = "deleting"
)

// Actor identifies who requests a room transition.
type Actor string

const (
	ActorHost  Actor = "host"
	ActorAgent Actor = "agent"
)

// DefaultDeposit is applied when a host creates a room without a deposit.
var DefaultDeposit = decimal.NewFromInt(100)

// WelcomeMessage seeds the agent message and the room chat.
const WelcomeMessage = "Welcome! Please upload photos of your room."

// Room is a rentable space managed by a host. The occupancy fields are only
// written by check-in, unlock and the skip-photos checkout path.
type Room struct {
	ID                string          `gorm:"primaryKey;size:36" json:"id"`
	HostID            string          `gorm:"index;size:128;not null" json:"hostId"`
	Name              string          `gorm:"size:256;not null" json:"name"`
	Status            RoomStatus      `gorm:"size:32;index;not null" json:"status"`
	DepositAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"depositAmount"`
	IsLocked          bool            `gorm:"not null;default:false" json:"isLocked"`
	LockedByGuestID   *string         `gorm:"uniqueIndex;size:128" json:"lockedByGuestId"`
	LockedByGuestName *string         `gorm:"size:256" json:"lockedByGuestName"`
	LockedAt          *time.Time      `json:"lockedAt"`
	PhotosCount       int             `gorm:"not null;default:0" json:"photosCount"`
	ObjectsCount      int             `gorm:"not null;default:0" json:"objectsCount"`
	AgentMessage      string          `gorm:"size:1024" json:"agentMessage"`
	CreatedAt         time.Time       `gorm:"not null" json:"createdAt"`
	UpdatedAt         time.Time       `gorm:"not null" json:"updatedAt"`
}

// HeldBy reports whether guestID currently holds the occupancy lock.
func (r *Room) HeldBy(guestID string) bool {
	return r.IsLocked && r.LockedByGuestID != nil && *r.LockedByGuestID == guestID
}

// Available reports whether a guest could check in right now.
func (r *Room) Available() bool {
	return r.Status == RoomStatusComplete && !r.IsLocked
}

type roomTransition struct {
	from RoomStatus
	to   RoomStatus
}

var roomTransitions = map[Actor]map[roomTransition]bool{
	ActorHost: {
		{RoomStatusAwaitingPhotos, RoomStatusUploading}:  true,
		{RoomStatusUploading, RoomStatusUploading}:       true,
		{RoomStatusReadyToProcess, RoomStatusUploading}:  true,
		{RoomStatusReadyToProcess, RoomStatusProcessing}: true,
		{RoomStatusReview, RoomStatusComplete}:           true,
	},
	ActorAgent: {
		{RoomStatusCreated, RoomStatusAwaitingPhotos}:   true,
		{RoomStatusUploading, RoomStatusReadyToProcess}: true,
		{RoomStatusProcessing, RoomStatusReview}:        true,
		{RoomStatusProcessing, RoomStatusComplete}:      true,
		{RoomStatusReview, RoomStatusComplete}:          true,
	},
}

// CanTransition reports whether actor may move a room from one status to another.
// Deleting is reachable from every state and is absorbing.
func CanTransition(actor Actor, from, to RoomStatus) bool {
	if from == RoomStatusDeleting {
		return false
	}
	if to == RoomStatusDeleting {
		return actor == ActorHost
	}
	return roomTransitions[actor][roomTransition{from, to}]
}
