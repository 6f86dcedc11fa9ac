package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/00Thor/CCPUR-sub000/internal/bootstrap"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/logger"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/metrics"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/notify"
)

// The worker delivers email queued by the API when notifications.mode is "queue".
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, lgr, err := bootstrap.LoadConfigAndSetupLogger("worker")
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	sender := bootstrap.NewEmailSender(cfg, lgr)
	if !sender.Configured() {
		lgr.Warn().Msg("SMTP is not configured; queued email will only be logged")
	}
	processor := notify.NewProcessor(sender, lgr.With().Str("component", "notify").Logger())

	server := asynq.NewServer(bootstrap.QueueRedisOpt(cfg), asynq.Config{
		Concurrency: cfg.Notifications.Concurrency,
		Queues:      map[string]int{"notifications": 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			metrics.RecordNotificationFailure(task.Type())
			lgr.Error().Err(err).Str("task", task.Type()).Msg("Task failed")
		}),
	})

	go func() {
		<-ctx.Done()
		lgr.Info().Msg("Shutting down worker...")
		server.Shutdown()
	}()

	lgr.Info().Int("concurrency", cfg.Notifications.Concurrency).Msg("Worker started")
	if err := server.Run(processor.Handler()); err != nil {
		lgr.Error().Err(err).Msg("Worker stopped")
		os.Exit(1)
	}
}
