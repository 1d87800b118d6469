package storage

import "errors"

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrEmailExists   = errors.New("email already registered")
	ErrSweetNotFound = errors.New("sweet not found")
	ErrOutOfStock    = errors.New("insufficient stock")
	ErrStockLimit    = errors.New("stock limit exceeded")
)

// Dialect hides the few places where PostgreSQL and SQLite differ.
type Dialect interface {
	Name() string
	// LockSuffix is appended to a SELECT that must lock the rows it reads.
	LockSuffix() string
	IsUniqueViolation(err error) bool
}
