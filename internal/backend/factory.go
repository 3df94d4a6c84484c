package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"expensesync/internal/feed/memory"
	"expensesync/internal/feed/postgres"
	"expensesync/internal/feed/sqlite"
)

// Factory creates feed adapters from configuration.
type Factory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// Create builds the configured adapter. An unreachable remote store is not
// fatal: the session degrades to the detached memory adapter instead of
// terminating.
func (f *Factory) Create(ctx context.Context, config Config) (*Result, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	switch config.Type {
	case SQLite:
		store, err := sqlite.Open(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite feed: %w", err)
		}
		f.logger.Info("initialized sqlite feed", "db_path", config.SQLiteDBPath)
		return &Result{Adapter: store, Cleanup: store.Close}, nil

	case Postgres:
		store, err := postgres.Open(ctx, config.PostgresURL)
		if err != nil {
			f.logger.Warn("remote store unreachable, degrading to detached mode", "error", err)
			return f.detached(config), nil
		}
		f.logger.Info("initialized postgres feed")
		return &Result{
			Adapter: store,
			Cleanup: func() error { store.Close(); return nil },
		}, nil

	default:
		return f.detached(config), nil
	}
}

func (f *Factory) detached(config Config) *Result {
	if config.SeedPath != "" {
		data, err := os.ReadFile(config.SeedPath)
		if err == nil {
			store, serr := memory.NewFromSeed(config.UserID, data)
			if serr == nil {
				f.logger.Info("initialized detached memory feed from seed",
					"user_id", config.UserID, "seed_path", config.SeedPath)
				return &Result{Adapter: store, Detached: true}
			}
			err = serr
		}
		f.logger.Warn("seed file unusable, using example data", "error", err, "seed_path", config.SeedPath)
	}
	store := memory.NewDetached(config.UserID)
	f.logger.Info("initialized detached memory feed", "user_id", config.UserID)
	return &Result{Adapter: store, Detached: true}
}
