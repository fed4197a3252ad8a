package repository

import (
	"database/sql"
	"fmt"

	"github.com/Dan9191/microsave/internal/config"
	"github.com/sirupsen/logrus"
)

// Open returns the ledger store selected by cfg.DBDriver
func Open(cfg *config.Config, log *logrus.Logger) (Store, error) {
	switch cfg.DBDriver {
	case config.DriverMemory:
		log.Warn("Using in-memory ledger store, balances are lost on restart")
		return NewMemoryStore(), nil
	case config.DriverSQLite:
		return OpenSQLite(cfg.DBConn, log)
	case config.DriverPostgres:
		db, err := sql.Open("postgres", cfg.DBConn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		repo, err := NewRepository(db, log)
		if err != nil {
			db.Close()
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown ledger store driver %q", cfg.DBDriver)
	}
}
