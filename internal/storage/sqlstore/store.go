// Package sqlstore implements the credential store, the catalog store and the
// purchase transaction on top of sqlx. Queries are written with '?' placeholders
// and rebound for the driver in use.
package sqlstore

import (
	"context"
	"time"

	"github.com/IlyasAtabaev731/sweet-shop/internal/storage"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Storage struct {
	db      *sqlx.DB
	dialect storage.Dialect
	now     func() time.Time
}

func New(db *sqlx.DB, dialect storage.Dialect) *Storage {
	return &Storage{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) Stop() error {
	return s.db.Close()
}

func (s *Storage) Dialect() storage.Dialect {
	return s.dialect
}

// validID filters out ids that cannot exist. PostgreSQL rejects malformed UUID
// literals with an error, which would otherwise surface as an internal failure.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
