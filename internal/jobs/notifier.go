package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/dtroode/observer-server/internal/logger"
	"github.com/dtroode/observer-server/internal/model"
)

// Enqueuer is the part of asynq.Client the notifier needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Notifier hands verification and reset messages to the mail worker.
type Notifier struct {
	client Enqueuer
	logger *logger.Logger
}

var _ model.Notifier = (*Notifier)(nil)

func NewNotifier(client Enqueuer, logger *logger.Logger) *Notifier {
	return &Notifier{client: client, logger: logger}
}

func (n *Notifier) SendVerification(ctx context.Context, msg model.VerificationMessage) error {
	task, err := NewVerificationTask(msg)
	if err != nil {
		return err
	}
	return n.enqueue(ctx, task, msg)
}

func (n *Notifier) SendPasswordReset(ctx context.Context, msg model.VerificationMessage) error {
	task, err := NewPasswordResetTask(msg)
	if err != nil {
		return err
	}
	return n.enqueue(ctx, task, msg)
}

func (n *Notifier) enqueue(ctx context.Context, task *asynq.Task, msg model.VerificationMessage) error {
	info, err := n.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s mail: %w", task.Type(), err)
	}

	n.logger.Debug("Notifier: mail enqueued",
		"type", task.Type(),
		"principal_id", msg.PrincipalID.String(),
		"task_id", info.ID,
		"queue", info.Queue)

	return nil
}
