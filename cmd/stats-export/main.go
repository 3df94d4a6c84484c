// stats-export mirrors the per-month stats ledger into a Google Sheet. It
// runs its own feed subscription, so it can live on a different host from
// the session daemon.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"expensesync/internal/backend"
	"expensesync/internal/config"
	"expensesync/internal/core"
	"expensesync/internal/export"
	"expensesync/internal/log"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(log.Config{Component: log.ComponentExport})
	log.SetDefault(logger)

	logger.Info("starting stats-export")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exporter, err := export.NewSheetsFromEnv(ctx)
	if err != nil {
		logger.Error("failed to initialize sheets exporter", "error", err)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger.Logger)
	result, err := factory.Create(ctx, backend.Config{
		Type:         backend.Type(cfg.FeedBackend),
		UserID:       cfg.UserID,
		SeedPath:     cfg.SeedFile,
		SQLiteDBPath: cfg.SQLiteDBPath,
		PostgresURL:  cfg.PostgresURL,
	})
	if err != nil {
		logger.Error("failed to create feed backend", "error", err, "backend", cfg.FeedBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Error("backend cleanup failed", "error", err)
			}
		}()
	}

	statsCh, stopStats, err := result.Adapter.SubscribeStats(ctx, cfg.UserID)
	if err != nil {
		logger.Error("failed to subscribe to stats", "error", err)
		os.Exit(1)
	}
	defer stopStats()

	// Periodic re-export covers pushes missed while the sheet was
	// unreachable.
	ticker := time.NewTicker(cfg.ExportInterval)
	defer ticker.Stop()

	var latest []core.MonthlyStat
	for {
		select {
		case <-ctx.Done():
			logger.Info("stats-export stopped gracefully")
			return
		case snap, ok := <-statsCh:
			if !ok {
				logger.Info("stats subscription closed")
				return
			}
			latest = snap
			if err := exporter.ExportStats(ctx, latest); err != nil {
				logger.Warn("stats export failed, will retry on next tick", "error", err)
			}
		case <-ticker.C:
			if latest == nil {
				continue
			}
			if err := exporter.ExportStats(ctx, latest); err != nil {
				logger.Warn("stats export failed", "error", err)
			}
		}
	}
}
