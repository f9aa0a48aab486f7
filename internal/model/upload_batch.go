package model

import (
	"time"

	"gorm.io/datatypes"
)

// BatchStatus tracks an exit-photo upload batch.
type BatchStatus string

const (
	BatchStatusReadyToUpload BatchStatus = "ready_to_upload"
	BatchStatusUploaded      BatchStatus = "uploaded"
	BatchStatusFailed        BatchStatus = "failed"
)

// BatchPhoto is one file inside an upload batch.
type BatchPhoto struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	StorageKey  string `json:"storageKey"`
}

// UploadBatch groups the exit photos a guest submits for a checkout.
type UploadBatch struct {
	ID         string                          `gorm:"primaryKey;size:36" json:"id"`
	RoomID     string                          `gorm:"index;size:36;not null" json:"roomId"`
	CheckoutID string                          `gorm:"index;size:36;not null" json:"checkoutId"`
	GuestID    string                          `gorm:"size:128;not null" json:"guestId"`
	Status     BatchStatus                     `gorm:"size:32;not null" json:"status"`
	Photos     datatypes.JSONSlice[BatchPhoto] `json:"photos"`
	TotalCount int                             `gorm:"not null" json:"totalCount"`
	Error      string                          `gorm:"size:1024" json:"error,omitempty"`
	CreatedAt  time.Time                       `gorm:"not null" json:"createdAt"`
	UploadedAt *time.Time                      `json:"uploadedAt"`
}
