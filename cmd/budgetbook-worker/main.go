package main

import (
	"context"
	"errors"
	"os"
	"time"

	"budgetbook/internal/cli"
	"budgetbook/internal/config"
	"budgetbook/internal/log"
	gsheet "budgetbook/internal/sheets/google"
	"budgetbook/internal/worker"

	"golang.org/x/sync/errgroup"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting budgetbook-worker")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)
	res := cli.OpenBackend(context.Background(), logger, cfg, true)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	}()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	sheetsClient, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	if err := sheetsClient.EnsureHeader(ctx); err != nil {
		logger.Error("Failed to prepare mirror sheet", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	mirror := worker.NewSheetsMirror(res.Store, sheetsClient, cfg.TransactionLimit, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return res.Broker.Consume(gctx, mirror.Handle)
	})
	if len(cfg.ReconcileOwners) > 0 {
		g.Go(func() error {
			reconcileLoop(gctx, logger, mirror, cfg.ReconcileOwners, cfg.ReconcileInterval)
			return nil
		})
	} else {
		logger.Info("RECONCILE_OWNERS empty, skipping reconcile")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		res.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}

// reconcileLoop backfills missed rows at start-up and then every interval.
// A zero interval reconciles once.
func reconcileLoop(ctx context.Context, logger *log.Logger, mirror *worker.SheetsMirror, owners []string, interval time.Duration) {
	run := func() {
		for _, owner := range owners {
			if _, err := mirror.Reconcile(ctx, owner); err != nil {
				logger.ErrorContext(ctx, "Reconcile failed", log.FieldOwner, owner, log.FieldError, err)
			}
		}
	}

	run()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
