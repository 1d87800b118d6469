package sqlstore

import (
	"fmt"

	"github.com/IlyasAtabaev731/sweet-shop/internal/config"
	"github.com/IlyasAtabaev731/sweet-shop/internal/storage/postgres"
	"github.com/IlyasAtabaev731/sweet-shop/internal/storage/sqlite"
)

// Open connects to the configured driver and returns a ready Storage.
func Open(cfg config.Storage) (*Storage, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return New(db, sqlite.Dialect{}), nil
	case "postgres":
		db, err := postgres.New(cfg.Postgres.URL(), postgres.Options{
			MaxOpenConns: cfg.MaxOpenConns,
			MaxIdleConns: cfg.MaxIdleConns,
		})
		if err != nil {
			return nil, err
		}
		return New(db, postgres.Dialect{}), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
