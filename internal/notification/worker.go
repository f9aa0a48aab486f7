package notification

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"roomcheck-backend/internal/model"
	"roomcheck-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Notice is a push message for every device of one user.
type Notice struct {
	UserID string `json:"-"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	RoomID string `json:"roomId,omitempty"`
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Notice
	subs    store.SubscriptionStore
	webpush *webpush.Options
	sender  NotificationSender
	logger  *zap.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, subs store.SubscriptionStore, webpushOptions *webpush.Options, logger *zap.Logger) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Notice, size*16),
		subs:    subs,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		logger:  logger,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log := wp.logger.With(zap.Int("worker", id))
	log.Debug("Worker started")
	for {
		select {
		case notice := <-wp.jobs:
			wp.sendNotice(ctx, log, notice)
		case <-ctx.Done():
			log.Debug("Worker shutting down")
			return
		}
	}
}

// Dispatch queues a notice. Notices are dropped when the queue is full so
// callers never wait on push delivery.
func (wp *WorkerPool) Dispatch(n Notice) {
	select {
	case wp.jobs <- n:
	default:
		wp.logger.Warn("Notification queue full, dropping notice",
			zap.String("user_id", n.UserID),
			zap.String("title", n.Title))
	}
}

// sendNotice delivers n to every subscription of its user.
func (wp *WorkerPool) sendNotice(ctx context.Context, log *zap.Logger, n Notice) {
	subscriptions, err := wp.subs.SubscriptionsForUser(ctx, n.UserID)
	if err != nil {
		log.Error("Failed to fetch subscriptions", zap.String("user_id", n.UserID), zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(n)
	if err != nil {
		log.Error("Failed to encode notice", zap.Error(err))
		return
	}

	log.Debug("Sending notifications", zap.String("user_id", n.UserID), zap.Int("count", len(subscriptions)))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, log, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, log *zap.Logger, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Warn("Failed to send notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Info("Subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.subs.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Error("Failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
