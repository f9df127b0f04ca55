package main

import (
	"context"
	"errors"
	"os"
	"time"

	"duka/internal/cli"
	applog "duka/internal/log"
	"duka/internal/services"
	"duka/internal/sheets"
	gsheet "duka/internal/sheets/google"
	sheetsmem "duka/internal/sheets/memory"
	"duka/internal/storage"
	"duka/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(applog.ComponentWorker)

	logger.Info("Starting duka-worker")
	if cfg.DataBackend != "sqlite" {
		logger.Warn("DATA_BACKEND is not sqlite; the worker only syncs the SQLite database", "backend", cfg.DataBackend)
	}

	// The worker reads unsynced transactions straight from SQLite.
	sqliteRepo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer sqliteRepo.Close()

	ctx, stop := cli.SignalContext(logger.Slog())
	defer stop()

	var writer sheets.LedgerWriter
	if cfg.SheetsEnabled() {
		client, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		writer = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		// Rows are kept in memory so the sync bookkeeping still runs.
		writer = sheetsmem.New()
		logger.Warn("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, using in-memory ledger")
	}

	processor := services.NewSyncProcessor(sqliteRepo, writer, services.SyncProcessorConfig{
		PollInterval: cfg.SyncInterval,
		BatchSize:    cfg.SyncBatchSize,
	})
	syncWorker := worker.NewSyncWorker(processor, 0)

	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	// The ticker catches anything a lost message left behind.
	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", "error", err)
		os.Exit(1)
	}

	if amqpClient := cli.InitAMQP(logger.Slog(), cfg); amqpClient != nil {
		defer amqpClient.Close()
		go func() {
			err := amqpClient.ConsumeEvents(ctx, syncWorker.HandleEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Event consumption failed", "error", err)
				stop()
			}
		}()
	} else {
		logger.Info("AMQP not configured - relying on periodic sync", "interval", cfg.SyncInterval)
	}

	<-ctx.Done()
	logger.Info("Shutting down duka-worker")

	stopCtx, cancel := cli.ShutdownContext(shutdownTimeout)
	defer cancel()
	if err := processor.Stop(stopCtx); err != nil {
		logger.Error("Sync processor did not stop cleanly", "error", err)
	}
	logger.Info("duka-worker stopped")
}
