package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dtroode/observer-server/internal/logger"
)

// DefaultCleanupCron runs token cleanup once a day.
const DefaultCleanupCron = "@daily"

// Worker wraps the asynq server and its scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *logger.Logger
}

type WorkerConfig struct {
	RedisOpts     asynq.RedisClientOpt
	Concurrency   int
	Verification  *VerificationHandler
	PasswordReset *VerificationHandler
	Cleanup       *CleanupHandler
	// CleanupCron schedules the cleanup task; empty disables scheduling.
	CleanupCron string
	CleanupDays int
	Logger      *logger.Logger
}

func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Verification == nil || cfg.PasswordReset == nil || cfg.Cleanup == nil {
		return nil, errors.New("worker: verification, password reset and cleanup handlers are required")
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}

	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueCritical: 6,
			QueueDefault:  3,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			cfg.Logger.Error("Worker: task failed",
				"type", task.Type(),
				"retried", retried,
				"error", err.Error())
		}),
	})

	mux := asynq.NewServeMux()
	mux.Handle(TaskTypeSendVerification, cfg.Verification)
	mux.Handle(TaskTypeSendPasswordReset, cfg.PasswordReset)
	mux.Handle(TaskTypeCleanupTokens, cfg.Cleanup)

	var scheduler *asynq.Scheduler
	if cfg.CleanupCron != "" {
		task, err := NewCleanupTask(CleanupPayload{Days: cfg.CleanupDays})
		if err != nil {
			return nil, err
		}
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
		if _, err := scheduler.Register(cfg.CleanupCron, task); err != nil {
			return nil, fmt.Errorf("failed to schedule cleanup: %w", err)
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: cfg.Logger}, nil
}

// Handler exposes the task router, mainly for tests.
func (w *Worker) Handler() asynq.Handler {
	return w.mux
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}
	if err := w.server.Start(w.mux); err != nil {
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return fmt.Errorf("failed to start worker: %w", err)
	}
	w.logger.Info("Worker: processing tasks")

	<-ctx.Done()
	w.logger.Info("Worker: shutting down")
	if w.scheduler != nil {
		w.scheduler.Shutdown()
	}
	w.server.Shutdown()
	return nil
}
