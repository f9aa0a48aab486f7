package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"roomcheck-backend/internal/agent"
	"roomcheck-backend/internal/model"
	"roomcheck-backend/internal/notification"
)

// AdvanceRoom applies a status change reported by the agent.
func (s *Service) AdvanceRoom(ctx context.Context, roomID string, to model.RoomStatus, message string) (*model.Room, error) {
	room, err := call(ctx, s, "advance room", func(ctx context.Context) (*model.Room, error) {
		return s.store.TransitionRoom(ctx, roomID, model.ActorAgent, to, message)
	})
	if err != nil {
		return nil, err
	}
	switch to {
	case model.RoomStatusReview:
		s.announce(ctx, roomID, "", notification.Notice{UserID: room.HostID, Title: room.Name, Body: "Detected objects are ready for your review."})
	case model.RoomStatusComplete:
		s.announce(ctx, roomID, "", notification.Notice{UserID: room.HostID, Title: room.Name, Body: "The room is ready for guests."})
	}
	return room, nil
}

// ReportDetections stores the objects the agent found in a room's baseline
// photos.
func (s *Service) ReportDetections(ctx context.Context, roomID string, detections []DetectionInput) (int, error) {
	objects := make([]model.DetectedObject, 0, len(detections))
	for _, d := range detections {
		if strings.TrimSpace(d.Label) == "" {
			return 0, fmt.Errorf("%w: every detection needs a label", model.ErrInvalidInput)
		}
		if d.Confidence < 0 || d.Confidence > 1 {
			return 0, fmt.Errorf("%w: confidence must be between 0 and 1", model.ErrInvalidInput)
		}
		id := d.ID
		if id == "" {
			id = uuid.NewString()
		}
		objects = append(objects, model.DetectedObject{
			ID:         id,
			RoomID:     roomID,
			Label:      d.Label,
			Confidence: d.Confidence,
			CropPath:   d.CropPath,
		})
	}
	return call(ctx, s, "report detections", func(ctx context.Context) (int, error) {
		return s.store.ReportDetections(ctx, roomID, objects)
	})
}

// RecordComparison stores the agent's verdict on a checkout's exit photos.
func (s *Service) RecordComparison(ctx context.Context, checkoutID string, missing []model.MissingObject) (*RefundView, error) {
	for _, m := range missing {
		if strings.TrimSpace(m.Label) == "" {
			return nil, fmt.Errorf("%w: every missing object needs a label", model.ErrInvalidInput)
		}
	}
	c, err := call(ctx, s, "record comparison", func(ctx context.Context) (*model.Checkout, error) {
		return s.store.RecordComparison(ctx, checkoutID, missing)
	})
	if err != nil {
		return nil, err
	}
	v := s.refundView(ctx, c)
	s.logger.Info("Comparison recorded",
		zap.String("checkout_id", c.ID),
		zap.Int("missing", len(missing)),
		zap.String("refund", v.RefundAmount.String()))
	s.announce(ctx, c.RoomID, "", notification.Notice{
		UserID: c.GuestID,
		Title:  "Refund summary ready",
		Body:   fmt.Sprintf("Your refund is $%s. Please review and confirm.", v.RefundAmount.StringFixed(2)),
	})
	return v, nil
}

// PurgeRoom removes a room the agent has finished tearing down.
func (s *Service) PurgeRoom(ctx context.Context, roomID string) error {
	if err := s.retry.Do(ctx, "purge room", func(ctx context.Context) error {
		return s.store.PurgeRoom(ctx, roomID)
	}); err != nil {
		return err
	}
	s.logger.Info("Room purged", zap.String("room_id", roomID))
	return nil
}

// PostAgentMessage posts to a room's chat as the agent.
func (s *Service) PostAgentMessage(ctx context.Context, roomID, text string) (*model.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message text is required", model.ErrInvalidInput)
	}
	return call(ctx, s, "post agent message", func(ctx context.Context) (*model.ChatMessage, error) {
		return s.store.PostAgentMessage(ctx, roomID, text)
	})
}

// SweepStaleComparisons re-requests comparisons the agent has not answered
// within the timeout and escalates those that ran out of attempts.
func (s *Service) SweepStaleComparisons(ctx context.Context) (agent.SweepResult, error) {
	var result agent.SweepResult
	now := s.Now()
	stale, err := call(ctx, s, "stale checkouts", func(ctx context.Context) ([]model.Checkout, error) {
		return s.store.StaleCheckouts(ctx, now.Add(-s.policy.Timeout))
	})
	if err != nil {
		return result, err
	}

	for _, c := range stale {
		if c.AgentAttempts < s.policy.MaxAttempts {
			_, err := call(ctx, s, "requeue comparison", func(ctx context.Context) (*model.Checkout, error) {
				return s.store.RequeueComparison(ctx, c.ID, now)
			})
			if err != nil {
				if errors.Is(err, model.ErrInvalidTransition) || errors.Is(err, model.ErrCheckoutFinalized) {
					continue
				}
				return result, err
			}
			result.Requeued++
			continue
		}

		escalated, err := call(ctx, s, "escalate checkout", func(ctx context.Context) (*model.Checkout, error) {
			return s.store.EscalateCheckout(ctx, c.ID)
		})
		if err != nil {
			if errors.Is(err, model.ErrInvalidTransition) || errors.Is(err, model.ErrCheckoutFinalized) {
				continue
			}
			return result, err
		}
		result.Escalated++
		s.logger.Warn("Comparison escalated",
			zap.String("checkout_id", c.ID),
			zap.Int("attempts", escalated.AgentAttempts))
		text := fmt.Sprintf("Photo comparison for %s's checkout timed out. Please settle the refund manually.", guestLabel(escalated))
		s.announce(ctx, c.RoomID, text,
			notification.Notice{UserID: escalated.HostID, Title: "Checkout needs attention", Body: text},
			notification.Notice{UserID: escalated.GuestID, Title: "Checkout delayed", Body: "Your host will finish your checkout manually."},
		)
	}
	return result, nil
}

func guestLabel(c *model.Checkout) string {
	if c.GuestName != "" {
		return c.GuestName
	}
	return "a guest"
}
