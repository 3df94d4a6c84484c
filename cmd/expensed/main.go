package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"expensesync/internal/amqp"
	"expensesync/internal/backend"
	"expensesync/internal/config"
	"expensesync/internal/log"
	"expensesync/internal/repository"
	"expensesync/internal/widget"
)

func main() {
	// Load .env for local development (ignore errors in production)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	logger.Info("starting expensed")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	slots := []widget.Slot{widget.NewFileSlot(cfg.WidgetSlotDir, cfg.UserID)}
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid redis URL", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opt)
		defer client.Close()
		slots = append(slots, widget.NewRedisSlot(client, cfg.UserID))
		logger.Info("redis widget slot enabled")
	}

	var notifier widget.Notifier
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, "")
		if err != nil {
			logger.Warn("failed to initialize AMQP client, continuing without refresh hints", "error", err)
		} else {
			defer amqpClient.Close()
			notifier = amqpClient
			logger.Info("widget refresh hints enabled", "exchange", cfg.AMQPExchange)
		}
	}

	publisher := widget.NewPublisher(cfg.UserID, notifier, slots...)
	repo := repository.New(result.Adapter, publisher)

	if err := repo.Start(ctx, cfg.UserID); err != nil {
		logger.Error("failed to start session", "error", err)
		os.Exit(1)
	}

	logger.Info("session started",
		"user_id", cfg.UserID,
		"backend", cfg.FeedBackend,
		"detached", result.Detached)

	<-ctx.Done()
	logger.Info("shutdown signal received")
	repo.Stop()
	logger.Info("session stopped gracefully")
}
