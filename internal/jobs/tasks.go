// Package jobs moves verification and password reset mail, and token
// cleanup, out of the request path onto asynq queues.
package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dtroode/observer-server/internal/model"
)

const (
	QueueDefault = "default"
	// QueueCritical carries mail a user is actively waiting for.
	QueueCritical = "critical"

	TaskTypeSendVerification  = "email:verification"
	TaskTypeSendPasswordReset = "email:password_reset"
	TaskTypeCleanupTokens     = "tokens:cleanup"
)

// CleanupPayload selects how old expired session state must be before it
// is removed.
type CleanupPayload struct {
	Days   int  `json:"days"`
	DryRun bool `json:"dry_run"`
}

func (p CleanupPayload) Age() time.Duration {
	return time.Duration(p.Days) * 24 * time.Hour
}

func NewVerificationTask(msg model.VerificationMessage) (*asynq.Task, error) {
	return newMailTask(TaskTypeSendVerification, msg)
}

func NewPasswordResetTask(msg model.VerificationMessage) (*asynq.Task, error) {
	return newMailTask(TaskTypeSendPasswordReset, msg)
}

func newMailTask(taskType string, msg model.VerificationMessage) (*asynq.Task, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", taskType, err)
	}
	opts := []asynq.Option{
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(5),
		asynq.Timeout(30 * time.Second),
	}
	// A link is useless once the token expires.
	if !msg.ExpiresAt.IsZero() {
		opts = append(opts, asynq.Deadline(msg.ExpiresAt))
	}
	return asynq.NewTask(taskType, data, opts...), nil
}

func NewCleanupTask(payload CleanupPayload) (*asynq.Task, error) {
	if payload.Days < 0 {
		return nil, fmt.Errorf("cleanup days must not be negative")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cleanup payload: %w", err)
	}
	return asynq.NewTask(TaskTypeCleanupTokens, data,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(3),
	), nil
}
