package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// CheckoutStatus is the state of one guest's checkout attempt.
type CheckoutStatus string

const (
	CheckoutStatusPending              CheckoutStatus = "pending"
	CheckoutStatusUploading            CheckoutStatus = "uploading"
	CheckoutStatusProcessing           CheckoutStatus = "processing"
	CheckoutStatusAwaitingConfirmation CheckoutStatus = "awaiting_confirmation"
	CheckoutStatusComplete             CheckoutStatus = "complete"
	CheckoutStatusSkippedPhotos        CheckoutStatus = "skipped_photos"
)

// ActiveCheckoutStatuses are the non-terminal states; at most one checkout per
// (room, guest) may be in one of them.
var ActiveCheckoutStatuses = []CheckoutStatus{
	CheckoutStatusPending,
	CheckoutStatusUploading,
	CheckoutStatusProcessing,
	CheckoutStatusAwaitingConfirmation,
}

// ComparingStatuses are the states in which the agent owes a comparison result.
var ComparingStatuses = []CheckoutStatus{
	CheckoutStatusUploading,
	CheckoutStatusProcessing,
}

// IsActive reports whether s is a non-terminal checkout state.
func (s CheckoutStatus) IsActive() bool {
	for _, a := range ActiveCheckoutStatuses {
		if s == a {
			return true
		}
	}
	return false
}

// MissingObject is a baseline item not found in the exit photos.
type MissingObject struct {
	ObjectID    string `json:"objectId,omitempty"`
	Label       string `json:"label"`
	EvidenceRef string `json:"evidenceRef,omitempty"`
}

// Checkout records a guest's attempt to end their stay, through refund confirmation.
type Checkout struct {
	ID                  string                             `gorm:"primaryKey;size:36" json:"id"`
	RoomID              string                             `gorm:"index;size:36;not null" json:"roomId"`
	GuestID             string                             `gorm:"index;size:128;not null" json:"guestId"`
	GuestName           string                             `gorm:"size:256" json:"guestName"`
	HostID              string                             `gorm:"size:128;not null" json:"hostId"`
	Status              CheckoutStatus                     `gorm:"size:32;index;not null" json:"status"`
	PhotosUploaded      bool                               `gorm:"not null;default:false" json:"photosUploaded"`
	SkippedPhotos       bool                               `gorm:"not null;default:false" json:"skippedPhotos"`
	PhotoCount          int                                `gorm:"not null;default:0" json:"photoCount"`
	MissingObjects      datatypes.JSONSlice[MissingObject] `json:"missingObjects"`
	RefundDeduction     decimal.Decimal                    `gorm:"type:decimal(12,2);not null" json:"refundDeduction"`
	DepositAmount       decimal.Decimal                    `gorm:"type:decimal(12,2);not null" json:"depositAmount"`
	ConfirmedByGuest    bool                               `gorm:"not null;default:false" json:"confirmedByGuest"`
	AgentAttempts       int                                `gorm:"not null;default:0" json:"agentAttempts"`
	Escalated           bool                               `gorm:"not null;default:false" json:"escalated"`
	ProcessingStartedAt *time.Time                         `json:"processingStartedAt"`
	CreatedAt           time.Time                          `gorm:"not null" json:"createdAt"`
	UpdatedAt           time.Time                          `gorm:"not null" json:"updatedAt"`
	CompletedAt         *time.Time                         `json:"completedAt"`
}
