package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/IlyasAtabaev731/sweet-shop/internal/storage"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = pq.ErrorCode("23505")

type Options struct {
	MaxOpenConns int
	MaxIdleConns int
}

func New(dbUrl string, opts Options) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dbUrl)
	if err != nil {
		return nil, fmt.Errorf("database connection error %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect database error %w", err)
	}

	return db, nil
}

type Dialect struct{}

var _ storage.Dialect = Dialect{}

func (Dialect) Name() string { return "postgres" }

func (Dialect) LockSuffix() string { return " FOR UPDATE" }

func (Dialect) IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
