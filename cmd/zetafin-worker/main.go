package main

import (
	"context"
	"errors"
	"os"
	"time"

	"zetafin/internal/amqp"
	"zetafin/internal/backend"
	"zetafin/internal/cli"
	"zetafin/internal/config"
	"zetafin/internal/core"
	"zetafin/internal/kvstore"
	"zetafin/internal/log"
	gsheet "zetafin/internal/sheets/google"
	"zetafin/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting zetafin-worker")

	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel, shutdown := cli.GracefulShutdown(logger, 5*time.Second, nil)
	defer cancel()

	mirror, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		UserID:             cfg.RemoteUserID,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		Logger:             logger,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirrorWorker := worker.NewMirrorWorker(mirror, logger)

	// Catch up from the local store on startup; events missed while the
	// worker was down are otherwise only mirrored on their next change.
	if cfg.LocalStore == string(backend.SQLiteStore) {
		if err := resyncFromLocal(ctx, cfg, mirrorWorker, logger); err != nil {
			logger.Error("Startup resync failed", log.FieldError, err)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := amqpClient.ConsumeChanges(ctx, mirrorWorker.HandleChange); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
		}
		cancel()
	}()

	<-shutdown
	logger.Info("Shutting down worker...")

	// Give the in-flight delivery time to finish
	select {
	case <-done:
		logger.Info("Worker shutdown complete")
	case <-time.After(5 * time.Second):
		logger.Warn("Shutdown timeout reached")
	}
	st := mirrorWorker.Stats()
	logger.Info("Worker stats", "applied", st.Applied, "skipped", st.Skipped, "failed", st.Failed)
}

func resyncFromLocal(ctx context.Context, cfg *config.Config, w *worker.MirrorWorker, logger *log.Logger) error {
	store, cleanup, err := backend.CreateLocal(backend.Config{
		LocalStore:      backend.SQLiteStore,
		SQLiteDBPath:    cfg.SQLiteDBPath,
		LocalQuotaBytes: cfg.LocalQuotaBytes,
	}, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	txs := kvstore.LoadCollection[core.Transaction](store, kvstore.KeyTransactions, logger)
	if len(txs) == 0 {
		logger.Info("No local transactions to resync")
		return nil
	}
	return w.Resync(ctx, txs)
}
