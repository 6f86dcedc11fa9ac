package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/00Thor/CCPUR-sub000/internal/pkg/email"
)

// TaskSendEmail is the queue task type for outgoing email
const TaskSendEmail = "email:send"

// Dispatcher hands a composed message to a delivery path
type Dispatcher interface {
	Dispatch(ctx context.Context, msg email.Message) error
}

// DirectDispatcher sends inline on the caller's goroutine
type DirectDispatcher struct {
	sender email.Sender
}

// NewDirectDispatcher creates a dispatcher that sends immediately
func NewDirectDispatcher(sender email.Sender) *DirectDispatcher {
	return &DirectDispatcher{sender: sender}
}

// Dispatch implements Dispatcher
func (d *DirectDispatcher) Dispatch(ctx context.Context, msg email.Message) error {
	return d.sender.Send(ctx, msg)
}

// Enqueuer is the part of *asynq.Client used for queueing
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueDispatcher enqueues messages for cmd/worker
type QueueDispatcher struct {
	client   Enqueuer
	maxRetry int
}

// NewQueueDispatcher creates a dispatcher backed by an asynq client
func NewQueueDispatcher(client Enqueuer, maxRetry int) *QueueDispatcher {
	return &QueueDispatcher{client: client, maxRetry: maxRetry}
}

// Dispatch implements Dispatcher
func (d *QueueDispatcher) Dispatch(ctx context.Context, msg email.Message) error {
	task, err := NewSendEmailTask(msg)
	if err != nil {
		return err
	}
	if _, err := d.client.EnqueueContext(ctx, task, asynq.MaxRetry(d.maxRetry), asynq.Queue("notifications")); err != nil {
		return fmt.Errorf("enqueue email task: %w", err)
	}
	return nil
}

// NewSendEmailTask serializes msg into a queue task
func NewSendEmailTask(msg email.Message) (*asynq.Task, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal email payload: %w", err)
	}
	return asynq.NewTask(TaskSendEmail, data), nil
}

// Processor delivers queued email in the worker process
type Processor struct {
	sender email.Sender
	logger zerolog.Logger
}

// NewProcessor constructs a worker processor
func NewProcessor(sender email.Sender, logger zerolog.Logger) *Processor {
	return &Processor{sender: sender, logger: logger}
}

// Handler registers the task handlers
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskSendEmail, p.HandleSendEmail)
	return mux
}

// HandleSendEmail decodes and sends one queued message
func (p *Processor) HandleSendEmail(ctx context.Context, task *asynq.Task) error {
	var msg email.Message
	if err := json.Unmarshal(task.Payload(), &msg); err != nil {
		// a payload that cannot be decoded will never succeed
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := p.sender.Send(ctx, msg); err != nil {
		p.logger.Warn().Err(err).Str("to", msg.To).Str("subject", msg.Subject).Msg("Queued email delivery failed")
		return err
	}
	p.logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("Queued email delivered")
	return nil
}
