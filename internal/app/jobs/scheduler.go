// Package jobs runs periodic maintenance: reset-token cleanup, blob deletion
// retries and expiry of abandoned payment orders.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/00Thor/CCPUR-sub000/internal/pkg/metrics"
)

// Job names, also used as metric labels
const (
	JobResetTokenCleanup = "reset_token_cleanup"
	JobBlobRetry         = "blob_deletion_retry"
	JobPaymentExpiry     = "payment_expiry"
)

// jobTimeout bounds a single run
const jobTimeout = 2 * time.Minute

// Func performs one run and reports how many rows it touched
type Func func(ctx context.Context) (int64, error)

// Scheduler wraps a cron runner. A run that is still going when its next tick
// fires is skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
	jobs   map[string]Func
}

// NewScheduler creates an empty scheduler
func NewScheduler(logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{logger}),
			cron.SkipIfStillRunning(cronLogger{logger}),
		)),
		logger: logger,
		jobs:   make(map[string]Func),
	}
}

// Register schedules fn under name with a standard cron spec or a descriptor like "@every 5m"
func (s *Scheduler) Register(name, spec string, fn Func) error {
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}
	if _, err := s.cron.AddFunc(spec, func() { s.run(context.Background(), name, fn) }); err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, name, err)
	}
	s.jobs[name] = fn
	return nil
}

// RunNow executes a registered job immediately, outside the schedule
func (s *Scheduler) RunNow(ctx context.Context, name string) (int64, error) {
	fn, ok := s.jobs[name]
	if !ok {
		return 0, fmt.Errorf("unknown job %s", name)
	}
	return s.run(ctx, name, fn)
}

// Start begins firing jobs in the background
func (s *Scheduler) Start() {
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Job scheduler started")
	s.cron.Start()
}

// Stop prevents new runs and waits for running ones, up to ctx's deadline
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info().Msg("Job scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn().Msg("Job scheduler stop timed out")
	}
}

func (s *Scheduler) run(ctx context.Context, name string, fn Func) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	n, err := fn(ctx)
	elapsed := time.Since(start)
	metrics.RecordJobRun(name, elapsed, err == nil)

	if err != nil {
		s.logger.Error().Err(err).Str("job", name).Dur("duration", elapsed).Msg("Job failed")
		return n, err
	}
	event := s.logger.Debug()
	if n > 0 {
		event = s.logger.Info()
	}
	event.Str("job", name).Int64("affected", n).Dur("duration", elapsed).Msg("Job finished")
	return n, nil
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
