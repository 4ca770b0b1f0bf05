package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/decoy-alerts/internal/adapters/store"
	"github.com/mikey/decoy-alerts/internal/config"
	"github.com/mikey/decoy-alerts/internal/ports"
	"go.uber.org/zap"
)

// StoreFactory creates the decoy registry and event log based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateStore opens the store selected by database.type
func (f *StoreFactory) CreateStore() (ports.Store, error) {
	db := f.cfg.GetDatabase()

	switch db.Type {
	case "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(db.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return store.NewSQLiteStore(db.SQLitePath, f.logger)
	case "mysql":
		if db.MySQLDSN == "" {
			return nil, fmt.Errorf("database.mysql_dsn is required for the mysql store")
		}
		return store.NewMySQLStore(db.MySQLDSN, db.MaxOpenConns, f.logger)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", db.Type)
	}
}
