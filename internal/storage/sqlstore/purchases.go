package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/IlyasAtabaev731/sweet-shop/internal/domain/models"
	"github.com/IlyasAtabaev731/sweet-shop/internal/storage"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PurchaseSweet atomically checks stock, decrements it by qty and records the
// purchase at the current unit price. It returns the new purchase and the stock
// left afterwards. Failures are storage.ErrSweetNotFound, storage.ErrOutOfStock
// or a wrapped driver error; in every failure case nothing is written.
func (s *Storage) PurchaseSweet(ctx context.Context, sweetID, userID string, qty int) (*models.Purchase, int, error) {
	const op = "storage.sqlstore.PurchaseSweet"

	if qty <= 0 {
		return nil, 0, fmt.Errorf("%s: quantity must be positive, got %d", op, qty)
	}
	if !validID(sweetID) {
		return nil, 0, storage.ErrSweetNotFound
	}

	var (
		purchase  *models.Purchase
		remaining int
	)
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var sw models.Sweet
		err := tx.GetContext(ctx, &sw, tx.Rebind(
			`SELECT `+sweetColumns+` FROM sweets WHERE id = ?`+s.dialect.LockSuffix()), sweetID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrSweetNotFound
			}
			return err
		}

		if qty > sw.Quantity {
			return storage.ErrOutOfStock
		}

		now := s.now()

		// The guard makes the decrement safe even without a row lock.
		res, err := tx.ExecContext(ctx, tx.Rebind(
			`UPDATE sweets SET quantity = quantity - ?, updated_at = ? WHERE id = ? AND quantity >= ?`),
			qty, now, sweetID, qty,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return storage.ErrOutOfStock
		}

		p := models.Purchase{
			ID:        uuid.NewString(),
			UserID:    userID,
			SweetID:   sweetID,
			Quantity:  qty,
			Price:     sw.Price,
			CreatedAt: now,
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO purchases (id, user_id, sweet_id, quantity, price, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
			p.ID, p.UserID, p.SweetID, p.Quantity, p.Price, p.CreatedAt,
		)
		if err != nil {
			return err
		}

		if err := tx.GetContext(ctx, &remaining, tx.Rebind(`SELECT quantity FROM sweets WHERE id = ?`), sweetID); err != nil {
			return err
		}

		purchase = &p
		return nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrSweetNotFound) || errors.Is(err, storage.ErrOutOfStock) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	return purchase, remaining, nil
}

// inTx runs fn in a transaction, committing on nil and rolling back otherwise.
func (s *Storage) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}
