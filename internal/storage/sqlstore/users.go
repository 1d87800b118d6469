package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/IlyasAtabaev731/sweet-shop/internal/domain/models"
	"github.com/IlyasAtabaev731/sweet-shop/internal/storage"
	"github.com/google/uuid"
)

const userColumns = `id, email, password_hash, name, role, created_at, updated_at`

// SaveUser inserts u, filling in its id and timestamps.
func (s *Storage) SaveUser(ctx context.Context, u *models.User) error {
	const op = "storage.sqlstore.SaveUser"

	now := s.now()
	u.ID = uuid.NewString()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.Role == "" {
		u.Role = models.RoleUser
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return storage.ErrEmailExists
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.sqlstore.UserByEmail"

	var u models.User
	err := s.db.GetContext(ctx, &u, s.db.Rebind(
		`SELECT `+userColumns+` FROM users WHERE email = ?`), email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &u, nil
}

func (s *Storage) UserByID(ctx context.Context, id string) (*models.User, error) {
	const op = "storage.sqlstore.UserByID"

	if !validID(id) {
		return nil, storage.ErrUserNotFound
	}

	var u models.User
	err := s.db.GetContext(ctx, &u, s.db.Rebind(
		`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &u, nil
}

// SetUserRole changes a user's role. It is not reachable through the HTTP API.
func (s *Storage) SetUserRole(ctx context.Context, email string, role models.Role) error {
	const op = "storage.sqlstore.SetUserRole"

	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE users SET role = ?, updated_at = ? WHERE email = ?`),
		role, s.now(), email,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}
