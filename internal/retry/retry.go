// Package retry applies bounded exponential backoff to infrastructure calls.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"roomcheck-backend/config"
	"roomcheck-backend/internal/model"
)

// Policy bounds how often and how long an operation is retried.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// FromConfig builds a Policy from the retry configuration.
func FromConfig(cfg config.RetryConfig) Policy {
	return Policy{
		MaxAttempts:     cfg.MaxAttempts,
		InitialInterval: cfg.InitialInterval,
		MaxInterval:     cfg.MaxInterval,
	}
}

// Retrier runs operations under a Policy.
type Retrier struct {
	policy Policy
	logger *zap.Logger
}

// New creates a Retrier.
func New(policy Policy, logger *zap.Logger) *Retrier {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Retrier{policy: policy, logger: logger}
}

// Do runs op until it succeeds, fails permanently, the attempts run out or ctx
// is done. Business-rule errors and missing records are never retried.
func (r *Retrier) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialInterval
	b.MaxInterval = r.policy.MaxInterval
	b.MaxElapsedTime = 0

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := op(ctx)
		if err == nil || IsPermanent(err) {
			if err != nil {
				return backoff.Permanent(err)
			}
			return nil
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.policy.MaxAttempts-1)), ctx),
		func(err error, wait time.Duration) {
			r.logger.Warn("Retrying after transient failure",
				zap.String("op", name),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		})
}

// IsPermanent reports whether err must not be retried.
func IsPermanent(err error) bool {
	var domainErr *model.DomainError
	switch {
	case errors.As(err, &domainErr):
		return true
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, gorm.ErrDuplicatedKey):
		return true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}
