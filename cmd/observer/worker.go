package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dtroode/observer-server/internal/jobs"
	"github.com/dtroode/observer-server/internal/repository/postgres"
	"github.com/dtroode/observer-server/internal/service"
)

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Process background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker()
		},
	}
}

func runWorker() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	cfg, logger := loadConfig()

	topo, err := openTopology(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer topo.stores.Close()

	identity := topo.identity()
	cleanup := service.NewCleanup(
		postgres.NewRefreshFamilyRepository(identity),
		postgres.NewRegistrationRepository(identity),
		logger,
	)

	var mailer jobs.Mailer
	if cfg.Mail.SMTPAddr != "" {
		mailer = jobs.NewSMTPMailer(cfg.Mail.SMTPAddr, cfg.Mail.From, cfg.Mail.Username, cfg.Mail.Password)
	} else {
		logger.Warn("MAIL_SMTP_ADDR is empty, account mail is only logged")
		mailer = jobs.NewLogMailer(logger)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:     redisOpts(cfg),
		Concurrency:   cfg.Worker.Concurrency,
		Verification:  jobs.NewVerificationHandler(mailer, cfg.Registration.VerifyURL, logger),
		PasswordReset: jobs.NewPasswordResetHandler(mailer, cfg.Reset.URL, logger),
		Cleanup:       jobs.NewCleanupHandler(cleanup, logger),
		CleanupCron:   cfg.Worker.CleanupCron,
		CleanupDays:   cfg.Worker.CleanupDays,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	return worker.Run(ctx)
}
