package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"duka/internal/backend"
	"duka/internal/cache"
	"duka/internal/cli"
	"duka/internal/config"
	"duka/internal/core"
	"duka/internal/guard"
	apphttp "duka/internal/http"
	applog "duka/internal/log"
	"duka/internal/services"
	gsheet "duka/internal/sheets/google"
	"duka/internal/state"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel)

	ctx, stop := cli.SignalContext(logger.Slog())
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("duka stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server exited")
}

func run(ctx context.Context, cfg *config.Config, logger *applog.Logger) error {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Slog()).CreateBackend(ctx, bcfg)
	if err != nil {
		return err
	}

	views := cache.NewLRUCache[[]core.Transaction](cfg.ViewCacheSize, cfg.ViewCacheTTL)
	st := state.New(res.Store,
		state.WithLogger(logger.WithComponent(applog.ComponentState).Slog()),
		state.WithViewCache(views))
	if err := st.Reload(ctx); err != nil {
		// Reads retry on the next request; the server still starts.
		logger.Warn("Initial data load failed", "error", err, "backend", bcfg.Type)
	}

	opts := []services.Option{services.WithLogger(logger.WithComponent(applog.ComponentLedger).Slog())}
	if client := cli.InitAMQP(logger.Slog(), cfg); client != nil {
		opts = append(opts, services.WithEvents(client))
	}
	ledger := services.NewLedgerService(res.Store, st, guard.New(), opts...)
	defer func() {
		if err := ledger.Close(); err != nil {
			logger.Error("Failed to close ledger", "error", err)
		}
	}()

	srv := apphttp.NewServer(":"+cfg.Port, ledger, st,
		apphttp.WithLogger(logger.WithComponent(applog.ComponentHTTP)),
		apphttp.WithRateLimit(cfg.RateLimitPerMinute),
		apphttp.WithCacheStats(views.Stats))

	manager := cache.NewManager(logger.WithComponent(applog.ComponentCache).Slog())
	manager.Register(views)

	g, gctx := errgroup.WithContext(ctx)

	// Without a broker nobody else copies sqlite transactions to Sheets.
	if res.SQLite != nil && cfg.SheetsEnabled() && cfg.AMQPURL == "" {
		writer, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			return fmt.Errorf("sheets client: %w", err)
		}
		processor := services.NewSyncProcessor(res.SQLite, writer, services.SyncProcessorConfig{
			PollInterval: cfg.SyncInterval,
			BatchSize:    cfg.SyncBatchSize,
		})
		if err := processor.Start(gctx); err != nil {
			return err
		}
		logger.Info("In-process Sheets sync enabled", "interval", cfg.SyncInterval)
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, cancel := cli.ShutdownContext(shutdownTimeout)
			defer cancel()
			return processor.Stop(stopCtx)
		})
	}

	g.Go(func() error {
		manager.Run(gctx, cfg.ViewCacheTTL)
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting duka server",
			"addr", srv.Addr,
			"backend", bcfg.Type,
			"amqp", cfg.AMQPURL != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := cli.ShutdownContext(shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
