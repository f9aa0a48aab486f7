package model

import "time"

// Sender identifies the author of a chat message.
type Sender string

const (
	SenderAgent  Sender = "agent"
	SenderHost   Sender = "host"
	SenderGuest  Sender = "guest"
	SenderSystem Sender = "system"
)

// Chat is the per-room conversation between the agent, the host and guests.
type Chat struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	RoomID        string    `gorm:"uniqueIndex;size:36;not null" json:"roomId"`
	HostID        string    `gorm:"index;size:128;not null" json:"hostId"`
	UnreadCount   int       `gorm:"not null;default:0" json:"unreadCount"`
	LastMessage   string    `gorm:"size:1024" json:"lastMessage"`
	LastMessageAt time.Time `json:"lastMessageAt"`
}

// ChatMessage is a single message within a chat.
type ChatMessage struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	ChatID    string    `gorm:"index;size:36;not null" json:"chatId"`
	Sender    Sender    `gorm:"size:16;not null" json:"sender"`
	Text      string    `gorm:"not null" json:"text"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `gorm:"index;not null" json:"timestamp"`
}
