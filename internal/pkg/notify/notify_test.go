package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/00Thor/CCPUR-sub000/internal/pkg/email"
)

type recordingSender struct {
	sent []email.Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg email.Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func TestNotifier_ApplicationApproved_Direct(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(NewDirectDispatcher(sender), "https://portal.example", "")

	require.NoError(t, n.ApplicationApproved(context.Background(), "asha@example.com", "Asha <Devi>", 7, 31))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "asha@example.com", msg.To)
	assert.Contains(t, msg.HTML, "#7")
	assert.Contains(t, msg.HTML, "31")
	assert.Contains(t, msg.HTML, "Asha &lt;Devi&gt;")
}

func TestNotifier_PasswordResetLink(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(NewDirectDispatcher(sender), "https://portal.example", "Portal")

	require.NoError(t, n.PasswordReset(context.Background(), "a@b.c", "A", "tok en"))
	assert.Contains(t, sender.sent[0].HTML, "https://portal.example/reset-password?token=tok+en")
}

func TestNotifier_RegistrationCode(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(NewDirectDispatcher(sender), "", "")

	require.NoError(t, n.RegistrationCode(context.Background(), "a@b.c", "A", "123456", 10*time.Minute))
	assert.Contains(t, sender.sent[0].HTML, "123456")
	assert.Contains(t, sender.sent[0].HTML, "10 minutes")
}

func TestQueueDispatcher_EnqueuesTask(t *testing.T) {
	q := &fakeEnqueuer{}
	d := NewQueueDispatcher(q, 3)
	msg := email.Message{To: "a@b.c", Subject: "s", HTML: "<p>x</p>"}

	require.NoError(t, d.Dispatch(context.Background(), msg))
	require.Len(t, q.tasks, 1)
	assert.Equal(t, TaskSendEmail, q.tasks[0].Type())

	var decoded email.Message
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &decoded))
	assert.Equal(t, msg, decoded)
}

func TestQueueDispatcher_EnqueueError(t *testing.T) {
	d := NewQueueDispatcher(&fakeEnqueuer{err: errors.New("redis down")}, 3)
	err := d.Dispatch(context.Background(), email.Message{To: "a@b.c"})
	assert.ErrorContains(t, err, "redis down")
}

func TestProcessor_HandleSendEmail(t *testing.T) {
	sender := &recordingSender{}
	p := NewProcessor(sender, zerolog.Nop())

	task, err := NewSendEmailTask(email.Message{To: "a@b.c", Subject: "hi"})
	require.NoError(t, err)
	require.NoError(t, p.HandleSendEmail(context.Background(), task))
	assert.Len(t, sender.sent, 1)

	bad := asynq.NewTask(TaskSendEmail, []byte("{not json"))
	err = p.HandleSendEmail(context.Background(), bad)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	sender.err = errors.New("smtp down")
	assert.Error(t, p.HandleSendEmail(context.Background(), task))
}
