package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/IlyasAtabaev731/sweet-shop/internal/domain/models"
	"github.com/IlyasAtabaev731/sweet-shop/internal/storage"
	"github.com/google/uuid"
)

const sweetColumns = `id, name, category, description, price, quantity, image_url, created_at, updated_at`

var sortColumns = map[models.SortField]string{
	models.SortByName:      "name",
	models.SortByPrice:     "price",
	models.SortByCreatedAt: "created_at",
}

// SaveSweet inserts sw, filling in its id and timestamps.
func (s *Storage) SaveSweet(ctx context.Context, sw *models.Sweet) error {
	const op = "storage.sqlstore.SaveSweet"

	now := s.now()
	sw.ID = uuid.NewString()
	sw.CreatedAt = now
	sw.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO sweets (`+sweetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		sw.ID, sw.Name, sw.Category, sw.Description, sw.Price, sw.Quantity, sw.ImageURL, sw.CreatedAt, sw.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) GetSweet(ctx context.Context, id string) (*models.Sweet, error) {
	const op = "storage.sqlstore.GetSweet"

	if !validID(id) {
		return nil, storage.ErrSweetNotFound
	}

	var sw models.Sweet
	err := s.db.GetContext(ctx, &sw, s.db.Rebind(
		`SELECT `+sweetColumns+` FROM sweets WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrSweetNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &sw, nil
}

// ListSweets returns one page of the catalog and the total number of matching rows.
func (s *Storage) ListSweets(ctx context.Context, q models.ListQuery) ([]models.Sweet, int, error) {
	const op = "storage.sqlstore.ListSweets"

	column, ok := sortColumns[q.SortBy]
	if !ok {
		column = sortColumns[models.SortByCreatedAt]
	}
	direction := "DESC"
	if q.SortOrder == models.SortAsc {
		direction = "ASC"
	}

	var (
		where string
		args  []any
	)
	if q.Category != "" {
		where = ` WHERE category = ?`
		args = append(args, q.Category)
	}

	total, err := s.count(ctx, where, args)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT ` + sweetColumns + ` FROM sweets` + where +
		` ORDER BY ` + column + ` ` + direction + `, id ASC LIMIT ? OFFSET ?`

	sweets := make([]models.Sweet, 0, q.Limit)
	err = s.db.SelectContext(ctx, &sweets, s.db.Rebind(query),
		append(args, q.Limit, models.Offset(q.Page, q.Limit))...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	return sweets, total, nil
}

// SearchSweets matches q case-insensitively against name, description and category.
func (s *Storage) SearchSweets(ctx context.Context, q models.SearchQuery) ([]models.Sweet, int, error) {
	const op = "storage.sqlstore.SearchSweets"

	var (
		conds []string
		args  []any
	)
	if q.Q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q.Q)) + "%"
		conds = append(conds, `(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(COALESCE(description, '')) LIKE ? ESCAPE '\' OR LOWER(category) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}
	if q.Category != "" {
		conds = append(conds, `category = ?`)
		args = append(args, q.Category)
	}
	if q.MinPrice != nil {
		conds = append(conds, `price >= ?`)
		args = append(args, *q.MinPrice)
	}
	if q.MaxPrice != nil {
		conds = append(conds, `price <= ?`)
		args = append(args, *q.MaxPrice)
	}

	var where string
	if len(conds) > 0 {
		where = ` WHERE ` + strings.Join(conds, ` AND `)
	}

	total, err := s.count(ctx, where, args)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT ` + sweetColumns + ` FROM sweets` + where + ` ORDER BY name ASC, id ASC LIMIT ? OFFSET ?`

	results := make([]models.Sweet, 0, q.Limit)
	err = s.db.SelectContext(ctx, &results, s.db.Rebind(query),
		append(args, q.Limit, models.Offset(q.Page, q.Limit))...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	return results, total, nil
}

// UpdateSweet writes only the fields set in patch, so a concurrent purchase
// is not overwritten unless the patch itself sets the quantity.
func (s *Storage) UpdateSweet(ctx context.Context, id string, patch models.SweetPatch) (*models.Sweet, error) {
	const op = "storage.sqlstore.UpdateSweet"

	if !validID(id) {
		return nil, storage.ErrSweetNotFound
	}
	if patch.Empty() {
		return s.GetSweet(ctx, id)
	}

	var (
		sets []string
		args []any
	)
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *patch.Category)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Price != nil {
		sets = append(sets, "price = ?")
		args = append(args, *patch.Price)
	}
	if patch.Quantity != nil {
		sets = append(sets, "quantity = ?")
		args = append(args, *patch.Quantity)
	}
	if patch.ImageURL != nil {
		sets = append(sets, "image_url = ?")
		args = append(args, *patch.ImageURL)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, s.now(), id)

	query := `UPDATE sweets SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`

	if err := s.execOne(ctx, query, args...); err != nil {
		if errors.Is(err, storage.ErrSweetNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.GetSweet(ctx, id)
}

// DeleteSweet removes a sweet together with its purchases.
func (s *Storage) DeleteSweet(ctx context.Context, id string) error {
	const op = "storage.sqlstore.DeleteSweet"

	if !validID(id) {
		return storage.ErrSweetNotFound
	}

	if err := s.execOne(ctx, `DELETE FROM sweets WHERE id = ?`, id); err != nil {
		if errors.Is(err, storage.ErrSweetNotFound) {
			return err
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RestockSweet adds qty to the current stock with a single relative update.
// The update is guarded so stock never passes models.MaxQuantity.
func (s *Storage) RestockSweet(ctx context.Context, id string, qty int) (*models.Sweet, error) {
	const op = "storage.sqlstore.RestockSweet"

	if !validID(id) {
		return nil, storage.ErrSweetNotFound
	}
	if qty > models.MaxQuantity {
		return nil, storage.ErrStockLimit
	}

	err := s.execOne(ctx, `UPDATE sweets SET quantity = quantity + ?, updated_at = ? WHERE id = ? AND quantity <= ?`,
		qty, s.now(), id, models.MaxQuantity-qty)
	if err != nil {
		if !errors.Is(err, storage.ErrSweetNotFound) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		// no row matched: either the sweet is gone or the guard refused
		if _, getErr := s.GetSweet(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, storage.ErrStockLimit
	}

	return s.GetSweet(ctx, id)
}

// LowStockSweets returns sweets whose quantity is at or below threshold, emptiest first.
func (s *Storage) LowStockSweets(ctx context.Context, threshold int) ([]models.Sweet, error) {
	const op = "storage.sqlstore.LowStockSweets"

	var sweets []models.Sweet
	err := s.db.SelectContext(ctx, &sweets, s.db.Rebind(
		`SELECT `+sweetColumns+` FROM sweets WHERE quantity <= ? ORDER BY quantity ASC, name ASC`), threshold)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sweets, nil
}

func (s *Storage) count(ctx context.Context, where string, args []any) (int, error) {
	var total int
	err := s.db.GetContext(ctx, &total, s.db.Rebind(`SELECT COUNT(*) FROM sweets`+where), args...)
	return total, err
}

// execOne runs a statement that must touch exactly one sweet.
func (s *Storage) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrSweetNotFound
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
