// widgetd is the out-of-process widget reader. It never touches the feed:
// it loads the last-written snapshot from the shared slot on its own poll
// schedule, and immediately when a refresh hint arrives over AMQP.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"expensesync/internal/amqp"
	"expensesync/internal/config"
	"expensesync/internal/core"
	"expensesync/internal/log"
	"expensesync/internal/widget"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(log.Config{Component: log.ComponentWidget})
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var slot widget.Slot
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid redis URL", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opt)
		defer client.Close()
		slot = widget.NewRedisSlot(client, cfg.UserID)
	} else {
		slot = widget.NewFileSlot(cfg.WidgetSlotDir, cfg.UserID)
	}

	show := func(ctx context.Context) {
		snap, ok, err := slot.Load(ctx)
		if err != nil {
			logger.Warn("failed to load widget slot", "error", err)
			return
		}
		if !ok {
			snap = core.EmptyWidgetSnapshot()
		}
		logger.Info("widget summary",
			"month", snap.MonthLabel,
			"total_cents", snap.TotalCents,
			"points", len(snap.DailyCumulativeCents),
			"as_of", snap.LastUpdated.Format(time.RFC3339),
			"written", ok)
	}

	show(ctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(cfg.WidgetPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				show(ctx)
			}
		}
	})

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("failed to initialize AMQP client, polling only", "error", err)
		} else {
			defer amqpClient.Close()
			g.Go(func() error {
				return amqpClient.ConsumeRefresh(ctx, func(ctx context.Context, hint *amqp.RefreshHint) error {
					if hint.UserID == cfg.UserID {
						show(ctx)
					}
					return nil
				})
			})
			logger.Info("listening for refresh hints", "queue", cfg.AMQPQueue)
		}
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("widget reader stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("widget reader stopped gracefully")
}
