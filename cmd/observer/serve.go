package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/dtroode/observer-server/internal/access"
	httpctx "github.com/dtroode/observer-server/internal/api/http/context"
	"github.com/dtroode/observer-server/internal/api/http/handler"
	httprouter "github.com/dtroode/observer-server/internal/api/http/router"
	"github.com/dtroode/observer-server/internal/event"
	"github.com/dtroode/observer-server/internal/jobs"
	"github.com/dtroode/observer-server/internal/model"
	"github.com/dtroode/observer-server/internal/ratelimit"
	"github.com/dtroode/observer-server/internal/repository/postgres"
	"github.com/dtroode/observer-server/internal/server"
	"github.com/dtroode/observer-server/internal/service"
	"github.com/dtroode/observer-server/internal/token"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, logger := loadConfig()

	topo, err := openTopology(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer topo.stores.Close()

	if cfg.Database.AutoMigrate {
		if err := topo.migrate(ctx, logger); err != nil {
			return err
		}
	}

	identity := topo.identity()
	principals := postgres.NewPrincipalRepository(identity)
	tiers := postgres.NewTierRepository(identity)
	profiles := postgres.NewProfileRepository(identity)
	families := postgres.NewRefreshFamilyRepository(identity)
	registrations := postgres.NewRegistrationRepository(identity)
	resets := postgres.NewPasswordResetRepository(identity)

	redisClient := newRedisClient(cfg)
	defer redisClient.Close()
	limiter := ratelimit.NewRedisLimiter(redisClient, cfg.Login.MaxAttempts, cfg.Login.Window)

	queue := asynq.NewClient(redisOpts(cfg))
	defer queue.Close()
	notifier := jobs.NewNotifier(queue, logger)

	bus := event.NewBus(logger)
	bus.SubscribeActivated(service.NewProvisioner(profiles, tiers, cfg.Registration.DefaultTierLevel, logger))

	credentials := service.NewCredentials(cfg.Registration.BcryptCost)
	tokenService := service.NewTokenService(token.NewJWT(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL), families, logger)
	sessionService := service.NewSession(principals, limiter, credentials, tokenService, logger)
	registrationService := service.NewRegistration(registrations, principals, notifier, bus, credentials, cfg.Registration.TokenTTL, logger)
	passwordService := service.NewPassword(principals, resets, notifier, credentials, tokenService, cfg.Reset.TokenTTL, logger)

	assembler, err := access.NewAssembler(access.Config{
		Verifier:   sessionService,
		Principals: principals,
		Profiles:   profiles,
		Tiers:      tiers,
		Engine:     topo.engine,
		Stores:     topo.resourceStores(),
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("failed to assemble access layer: %w", err)
	}

	h := httprouter.New(httprouter.Params{
		Sessions:       sessionService,
		Registrations:  registrationService,
		Passwords:      passwordService,
		Resolver:       assembler,
		Reader:         assembler,
		Pinger:         topo.stores,
		ContextManager: httpctx.NewManager(),
		Cookies: handler.CookieConfig{
			Secure:    !cfg.IsDevelopment(),
			Domain:    cfg.Cookie.Domain,
			AccessTTL: cfg.JWT.AccessTTL,
		},
		Logger:         logger,
		Production:     !cfg.IsDevelopment(),
		RequestTimeout: cfg.HTTP.RequestTimeout,
		AuthRateLimit:  cfg.HTTP.AuthRateLimit,
	})

	httpServer := server.NewHTTPServer(h, fmt.Sprintf(":%s", cfg.HTTP.Port))

	var sl model.SecurityLayer
	if cfg.HTTP.EnableHTTPS {
		sl = server.NewTLSListener(cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	serveErr := make(chan error, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address())
		if err := s.Start(sl); err != nil {
			logger.Error("failed to start server", "error", err)
			serveErr <- err
		}
	}(httpServer)

	logAppVersion()

	select {
	case <-ctx.Done():
		logger.Info("received interruption signal, shutting down")
	case err := <-serveErr:
		wg.Wait()
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", httpServer.Address())
	}

	wg.Wait()
	logger.Info("shutdown complete")
	return nil
}
