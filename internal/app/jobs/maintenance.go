package jobs

import (
	"context"
	"time"
)

// ResetTokenPurger removes expired or used password reset tokens
type ResetTokenPurger interface {
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// BlobRetrier retries queued blob deletions
type BlobRetrier interface {
	RetryDeletions(ctx context.Context, limit, maxAttempts int) (int, error)
}

// PaymentExpirer fails abandoned pending orders
type PaymentExpirer interface {
	ExpireStale(ctx context.Context) (int64, error)
}

// Config holds the schedules of the maintenance jobs
type Config struct {
	TokenCleanupSpec     string
	BlobRetrySpec        string
	PaymentExpirySpec    string
	BlobRetryBatch       int
	BlobRetryMaxAttempts int
}

// Maintenance bundles the dependencies of the built-in jobs
type Maintenance struct {
	Tokens   ResetTokenPurger
	Blobs    BlobRetrier
	Payments PaymentExpirer
	Now      func() time.Time
}

// RegisterMaintenance adds the built-in jobs to s
func RegisterMaintenance(s *Scheduler, cfg Config, m Maintenance) error {
	now := m.Now
	if now == nil {
		now = time.Now
	}

	if err := s.Register(JobResetTokenCleanup, cfg.TokenCleanupSpec, func(ctx context.Context) (int64, error) {
		return m.Tokens.DeleteExpiredTokens(ctx, now())
	}); err != nil {
		return err
	}

	if err := s.Register(JobBlobRetry, cfg.BlobRetrySpec, func(ctx context.Context) (int64, error) {
		n, err := m.Blobs.RetryDeletions(ctx, cfg.BlobRetryBatch, cfg.BlobRetryMaxAttempts)
		return int64(n), err
	}); err != nil {
		return err
	}

	return s.Register(JobPaymentExpiry, cfg.PaymentExpirySpec, m.Payments.ExpireStale)
}
