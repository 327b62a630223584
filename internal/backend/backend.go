// Package backend selects and constructs the persistence collaborator from
// configuration.
package backend

import (
	"fmt"

	"tally/internal/config"
	"tally/internal/log"
	"tally/internal/storage"
	"tally/internal/store"
	"tally/internal/store/memory"
)

type Type string

const (
	Memory Type = "memory"
	SQLite Type = "sqlite"
)

func (t Type) IsValid() bool {
	return t == Memory || t == SQLite
}

// Result holds the constructed store. Repository is non-nil only for the
// sqlite backend, where the export worker needs its bookkeeping methods.
type Result struct {
	Store      store.Store
	Repository *storage.Repository
}

func New(cfg *config.Config, logger *log.Logger) (*Result, error) {
	t := Type(cfg.DataBackend)
	if !t.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", cfg.DataBackend)
	}

	switch t {
	case SQLite:
		if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		repo, err := storage.NewRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite repository: %w", err)
		}
		logger.Info("initialized sqlite backend", "db_path", cfg.SQLiteDBPath)
		return &Result{Store: repo, Repository: repo}, nil

	default:
		logger.Info("initialized memory backend")
		return &Result{Store: memory.New()}, nil
	}
}
