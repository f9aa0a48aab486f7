package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"roomcheck-backend/internal/model"
)

// AppendMessage posts a message to a room's chat.
func (s *gormStore) AppendMessage(ctx context.Context, roomID string, sender model.Sender, text string) (*model.ChatMessage, error) {
	var msg *model.ChatMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		msg, err = appendMessage(tx, roomID, sender, text)
		return err
	})
	return msg, err
}

// PostAgentMessage relays an agent message to the chat and mirrors it on the
// room's agentMessage field.
func (s *gormStore) PostAgentMessage(ctx context.Context, roomID, text string) (*model.ChatMessage, error) {
	var msg *model.ChatMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Room{}).Where("id = ?", roomID).Update("agent_message", text)
		if res.Error != nil {
			return fmt.Errorf("failed to update agent message for room %s: %w", roomID, res.Error)
		}
		if res.RowsAffected == 0 {
			return model.ErrRoomNotFound
		}
		var err error
		msg, err = appendMessage(tx, roomID, model.SenderAgent, text)
		return err
	})
	return msg, err
}

func appendMessage(tx *gorm.DB, roomID string, sender model.Sender, text string) (*model.ChatMessage, error) {
	var chat model.Chat
	if err := tx.First(&chat, "room_id = ?", roomID).Error; err != nil {
		return nil, notFound(err, model.ErrRoomNotFound)
	}

	msg := &model.ChatMessage{
		ID:     uuid.NewString(),
		ChatID: chat.ID,
		Sender: sender,
		Text:   text,
		Read:   sender == model.SenderHost,
	}
	if err := tx.Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to append chat message: %w", err)
	}

	updates := map[string]any{
		"last_message":    text,
		"last_message_at": msg.CreatedAt,
	}
	if !msg.Read {
		updates["unread_count"] = gorm.Expr("unread_count + 1")
	}
	if err := tx.Model(&model.Chat{}).Where("id = ?", chat.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update chat %s: %w", chat.ID, err)
	}
	return msg, nil
}

// ListMessages returns up to limit of the most recent messages, oldest first.
func (s *gormStore) ListMessages(ctx context.Context, roomID string, limit int) ([]model.ChatMessage, error) {
	var chat model.Chat
	if err := s.db.WithContext(ctx).First(&chat, "room_id = ?", roomID).Error; err != nil {
		return nil, notFound(err, model.ErrRoomNotFound)
	}

	var messages []model.ChatMessage
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", chat.ID).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MarkRead marks every message in the room's chat as read.
func (s *gormStore) MarkRead(ctx context.Context, roomID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chat model.Chat
		if err := tx.First(&chat, "room_id = ?", roomID).Error; err != nil {
			return notFound(err, model.ErrRoomNotFound)
		}
		if err := tx.Model(&model.ChatMessage{}).
			Where("chat_id = ? AND read = ?", chat.ID, false).
			Update("read", true).Error; err != nil {
			return fmt.Errorf("failed to mark messages read: %w", err)
		}
		return tx.Model(&model.Chat{}).Where("id = ?", chat.ID).Update("unread_count", 0).Error
	})
}
