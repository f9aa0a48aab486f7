package model

import "time"

// DetectedObject is an item found by the agent's detection pass over the
// baseline photos. Hosts may correct its label and toggle verification.
type DetectedObject struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	RoomID     string    `gorm:"index;size:36;not null" json:"roomId"`
	Label      string    `gorm:"size:256;not null" json:"label"`
	Confidence float64   `gorm:"not null;default:0" json:"confidence"`
	CropPath   string    `gorm:"size:1024" json:"cropPath"`
	Verified   bool      `gorm:"not null;default:false" json:"verified"`
	CreatedAt  time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"not null" json:"updatedAt"`
}
