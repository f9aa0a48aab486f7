package workflow

import (
	"context"
	"fmt"
	"strings"

	"roomcheck-backend/internal/auth"
	"roomcheck-backend/internal/model"
	"roomcheck-backend/internal/notification"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 200
	maxMessageLength    = 4000
)

// ListMessages returns the most recent messages in a room's chat, oldest
// first.
func (s *Service) ListMessages(ctx context.Context, p auth.Principal, roomID string, limit int) ([]model.ChatMessage, error) {
	if _, err := s.authorizeRoom(ctx, p, roomID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}
	return call(ctx, s, "list messages", func(ctx context.Context) ([]model.ChatMessage, error) {
		return s.store.ListMessages(ctx, roomID, limit)
	})
}

// PostMessage appends a message from p to a room's chat.
func (s *Service) PostMessage(ctx context.Context, p auth.Principal, roomID, text string) (*model.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" || len(text) > maxMessageLength {
		return nil, fmt.Errorf("%w: message must be between 1 and %d characters", model.ErrInvalidInput, maxMessageLength)
	}
	room, err := s.authorizeRoom(ctx, p, roomID)
	if err != nil {
		return nil, err
	}

	sender := model.SenderGuest
	switch p.Role {
	case auth.RoleHost:
		sender = model.SenderHost
	case auth.RoleAgent:
		sender = model.SenderAgent
	}
	msg, err := call(ctx, s, "append message", func(ctx context.Context) (*model.ChatMessage, error) {
		return s.store.AppendMessage(ctx, roomID, sender, text)
	})
	if err != nil {
		return nil, err
	}
	if sender != model.SenderHost {
		s.announce(ctx, roomID, "", notification.Notice{UserID: room.HostID, Title: room.Name, Body: text})
	}
	return msg, nil
}

// MarkRead clears the unread count of a room's chat.
func (s *Service) MarkRead(ctx context.Context, p auth.Principal, roomID string) error {
	if _, err := s.authorizeRoom(ctx, p, roomID); err != nil {
		return err
	}
	return s.retry.Do(ctx, "mark read", func(ctx context.Context) error {
		return s.store.MarkRead(ctx, roomID)
	})
}

// SaveSubscription registers a browser for push notices.
func (s *Service) SaveSubscription(ctx context.Context, userID string, sub *model.PushSubscription) error {
	if sub.Endpoint == "" || sub.P256DH == "" || sub.Auth == "" {
		return fmt.Errorf("%w: endpoint and keys are required", model.ErrInvalidInput)
	}
	sub.UserID = userID
	sub.CreatedAt = s.Now()
	return s.retry.Do(ctx, "save subscription", func(ctx context.Context) error {
		return s.store.SaveSubscription(ctx, sub)
	})
}

// DeleteSubscription stops push notices to an endpoint.
func (s *Service) DeleteSubscription(ctx context.Context, endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", model.ErrInvalidInput)
	}
	return s.retry.Do(ctx, "delete subscription", func(ctx context.Context) error {
		return s.store.DeleteSubscription(ctx, endpoint)
	})
}
