package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budgetbook/internal/auth"
	"budgetbook/internal/cache"
	"budgetbook/internal/cli"
	"budgetbook/internal/config"
	apphttp "budgetbook/internal/http"
	"budgetbook/internal/log"
	"budgetbook/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)

	res := cli.OpenBackend(context.Background(), logger, cfg, false)

	var identity auth.Identity = auth.ContextIdentity{}
	if cfg.JWTSecret == "" {
		if cfg.DevUser != "" {
			identity = auth.Static(cfg.DevUser)
			logger.Warn("JWT_SECRET not set, every request acts as DEV_USER", log.FieldOwner, cfg.DevUser)
		} else {
			logger.Warn("Neither JWT_SECRET nor DEV_USER set, ledger routes will answer 401")
		}
	}

	svc := services.NewLedgerService(res.Store, identity, services.Options{
		TransactionLimit: cfg.TransactionLimit,
		SnapshotTTL:      cfg.SnapshotTTL,
		Events:           res.Events(),
		Logger:           logger,
	})

	caches := cache.NewManager(logger)
	caches.Register("snapshots", svc.SnapshotCache())
	caches.StartCleanup(time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		JWTSecret:          cfg.JWTSecret,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		// closes the store and the broker
		if err := svc.Close(); err != nil {
			logger.Error("Ledger service close error", log.FieldError, err)
		}
	})

	logger.Info("Starting budgetbook server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", res.Broker != nil,
		"auth", cfg.JWTSecret != "")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
