// Package workflow implements guest occupancy, checkout and refund on top of
// the store, the blob store and the external agent.
package workflow

import (
	"context"
	"time"

	"go.uber.org/zap"

	"roomcheck-backend/internal/auth"
	"roomcheck-backend/internal/model"
	"roomcheck-backend/internal/notification"
	"roomcheck-backend/internal/retry"
	"roomcheck-backend/internal/storage"
	"roomcheck-backend/internal/store"
	"roomcheck-backend/internal/upload"
)

// Notifier delivers best-effort push notices.
type Notifier interface {
	Dispatch(n notification.Notice)
}

type nopNotifier struct{}

func (nopNotifier) Dispatch(notification.Notice) {}

// ComparisonPolicy bounds how long the agent may take to compare exit photos.
type ComparisonPolicy struct {
	Timeout     time.Duration
	MaxAttempts int
}

// Service is the entry point for every workflow operation.
type Service struct {
	store    store.Store
	blobs    storage.BlobStore
	uploads  *upload.Registry
	retry    *retry.Retrier
	notifier Notifier
	policy   ComparisonPolicy
	logger   *zap.Logger

	// Now is the clock used for lock, completion and watchdog timestamps.
	Now func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the push notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithComparisonPolicy sets the watchdog policy.
func WithComparisonPolicy(p ComparisonPolicy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.Now = now
	}
}

// New creates a Service. Upload batches are tracked for as long as the blob
// store's URLs stay valid.
func New(st store.Store, blobs storage.BlobStore, retrier *retry.Retrier, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:    st,
		blobs:    blobs,
		retry:    retrier,
		notifier: nopNotifier{},
		policy:   ComparisonPolicy{Timeout: 15 * time.Minute, MaxAttempts: 3},
		logger:   logger,
		Now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.uploads = upload.NewRegistry(blobs.Expiration(), time.Minute, s.expireBatch)
	return s
}

// Shutdown fails every upload batch still in flight.
func (s *Service) Shutdown() {
	s.uploads.Flush()
}

// call runs a store operation under the retry policy.
func call[T any](ctx context.Context, s *Service, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := s.retry.Do(ctx, name, func(ctx context.Context) error {
		var err error
		out, err = op(ctx)
		return err
	})
	return out, err
}

// announce posts a system chat message and queues push notices. Failures are
// logged and never reach the caller.
func (s *Service) announce(ctx context.Context, roomID, text string, notices ...notification.Notice) {
	if text != "" {
		if _, err := call(ctx, s, "post system message", func(ctx context.Context) (*model.ChatMessage, error) {
			return s.store.AppendMessage(ctx, roomID, model.SenderSystem, text)
		}); err != nil {
			s.logger.Warn("Failed to post system message", zap.String("room_id", roomID), zap.Error(err))
		}
	}
	for _, n := range notices {
		if n.UserID == "" {
			continue
		}
		n.RoomID = roomID
		s.notifier.Dispatch(n)
	}
}

// ownedRoom loads a room and checks that hostID owns it.
func (s *Service) ownedRoom(ctx context.Context, hostID, roomID string) (*model.Room, error) {
	room, err := call(ctx, s, "get room", func(ctx context.Context) (*model.Room, error) {
		return s.store.GetRoom(ctx, roomID)
	})
	if err != nil {
		return nil, err
	}
	if room.HostID != hostID {
		return nil, model.ErrNotRoomOwner
	}
	return room, nil
}

// authorizeRoom checks that p may see a room's chat: its host, the guest
// holding it, or the agent.
func (s *Service) authorizeRoom(ctx context.Context, p auth.Principal, roomID string) (*model.Room, error) {
	room, err := call(ctx, s, "get room", func(ctx context.Context) (*model.Room, error) {
		return s.store.GetRoom(ctx, roomID)
	})
	if err != nil {
		return nil, err
	}
	switch p.Role {
	case auth.RoleAgent:
		return room, nil
	case auth.RoleHost:
		if room.HostID != p.ID {
			return nil, model.ErrNotRoomOwner
		}
		return room, nil
	default:
		if !room.HeldBy(p.ID) {
			return nil, model.ErrNotCheckedIn
		}
		return room, nil
	}
}
