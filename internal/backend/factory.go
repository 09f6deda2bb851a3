// Package backend selects and opens the configured Ledger Store.
package backend

import (
	"fmt"
	"log/slog"

	"pocketmoney/internal/config"
	"pocketmoney/internal/ledger"
	"pocketmoney/internal/storage"
	"pocketmoney/internal/worker"
)

// Store is the full backend contract: ledger operations plus the mirror
// bookkeeping the worker uses.
type Store interface {
	ledger.Store
	worker.MirrorStore
	Close() error
}

// Open creates the repository named by the configuration. Both backends run
// their embedded migrations on open; a migration failure aborts startup.
func Open(cfg *config.Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.DataBackend {
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite backend: %w", err)
		}
		logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		return repo, nil

	case "postgres":
		repo, err := storage.NewPostgresRepository(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("initialize postgres backend: %w", err)
		}
		logger.Info("Initialized Postgres backend")
		return repo, nil

	default:
		return nil, fmt.Errorf("unsupported data backend: %s", cfg.DataBackend)
	}
}
