package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/IlyasAtabaev731/sweet-shop/internal/config"
	"github.com/IlyasAtabaev731/sweet-shop/internal/domain/models"
	"github.com/IlyasAtabaev731/sweet-shop/internal/storage"
	"github.com/IlyasAtabaev731/sweet-shop/internal/storage/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Storage {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	s := New(db, sqlite.Dialect{})
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func saveUser(t *testing.T, s *Storage, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, PasswordHash: "hash", Name: "Test User"}
	require.NoError(t, s.SaveUser(context.Background(), u))
	return u
}

func saveSweet(t *testing.T, s *Storage, name, category, price string, qty int) *models.Sweet {
	t.Helper()
	sw := &models.Sweet{
		Name:     name,
		Category: category,
		Price:    decimal.RequireFromString(price),
		Quantity: qty,
	}
	require.NoError(t, s.SaveSweet(context.Background(), sw))
	return sw
}

func countPurchases(t *testing.T, s *Storage, sweetID string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.Get(&n, s.db.Rebind(`SELECT COUNT(*) FROM purchases WHERE sweet_id = ?`), sweetID))
	return n
}

// ============================================================================
// Users
// ============================================================================

func TestSaveUserAndLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := saveUser(t, s, "alice@example.com")
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, models.RoleUser, u.Role)

	got, err := s.UserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.Equal(t, models.RoleUser, got.Role)

	got, err = s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)

	_, err = s.UserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
	_, err = s.UserByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestSaveUserDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	saveUser(t, s, "dup@example.com")

	err := s.SaveUser(ctx, &models.User{Email: "dup@example.com", PasswordHash: "x", Name: "Other"})
	assert.ErrorIs(t, err, storage.ErrEmailExists)

	var n int
	require.NoError(t, s.db.Get(&n, `SELECT COUNT(*) FROM users`))
	assert.Equal(t, 1, n)
}

func TestSetUserRole(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	saveUser(t, s, "boss@example.com")
	require.NoError(t, s.SetUserRole(ctx, "boss@example.com", models.RoleAdmin))

	got, err := s.UserByEmail(ctx, "boss@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)

	err = s.SetUserRole(ctx, "ghost@example.com", models.RoleAdmin)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

// ============================================================================
// Catalog
// ============================================================================

func TestSweetCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	desc := "Rich dark chocolate"
	sw := &models.Sweet{
		Name:        "Chocolate Truffle",
		Category:    "Chocolate",
		Description: &desc,
		Price:       decimal.RequireFromString("2.99"),
		Quantity:    100,
	}
	require.NoError(t, s.SaveSweet(ctx, sw))

	got, err := s.GetSweet(ctx, sw.ID)
	require.NoError(t, err)
	assert.Equal(t, "Chocolate Truffle", got.Name)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("2.99")), "price = %s", got.Price)
	require.NotNil(t, got.Description)
	assert.Equal(t, desc, *got.Description)
	assert.Nil(t, got.ImageURL)

	name := "Dark Truffle"
	price := decimal.RequireFromString("3.49")
	updated, err := s.UpdateSweet(ctx, sw.ID, models.SweetPatch{Name: &name, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "Dark Truffle", updated.Name)
	assert.Equal(t, "Chocolate", updated.Category)
	assert.Equal(t, 100, updated.Quantity)
	assert.True(t, updated.Price.Equal(price))

	same, err := s.UpdateSweet(ctx, sw.ID, models.SweetPatch{})
	require.NoError(t, err)
	assert.Equal(t, "Dark Truffle", same.Name)

	require.NoError(t, s.DeleteSweet(ctx, sw.ID))
	_, err = s.GetSweet(ctx, sw.ID)
	assert.ErrorIs(t, err, storage.ErrSweetNotFound)
	assert.ErrorIs(t, s.DeleteSweet(ctx, sw.ID), storage.ErrSweetNotFound)

	_, err = s.UpdateSweet(ctx, uuid.NewString(), models.SweetPatch{Name: &name})
	assert.ErrorIs(t, err, storage.ErrSweetNotFound)
	_, err = s.GetSweet(ctx, "nonexistent")
	assert.ErrorIs(t, err, storage.ErrSweetNotFound)
}

func TestDeleteSweetCascadesPurchases(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := saveUser(t, s, "buyer@example.com")
	sw := saveSweet(t, s, "Lemon Drop", "Hard Candy", "0.99", 10)

	_, _, err := s.PurchaseSweet(ctx, sw.ID, u.ID, 2)
	require.NoError(t, err)
	require.Equal(t, 1, countPurchases(t, s, sw.ID))

	require.NoError(t, s.DeleteSweet(ctx, sw.ID))
	assert.Equal(t, 0, countPurchases(t, s, sw.ID))
}

func TestListSweets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	saveSweet(t, s, "Caramel Chew", "Caramel", "1.99", 150)
	saveSweet(t, s, "Mint Chocolate", "Chocolate", "2.79", 120)
	saveSweet(t, s, "Peanut Butter Cup", "Chocolate", "3.99", 80)
	saveSweet(t, s, "Lemon Drop", "Hard Candy", "0.99", 300)
	saveSweet(t, s, "Butterscotch Disc", "Hard Candy", "1.29", 250)

	sweets, total, err := s.ListSweets(ctx, models.ListQuery{
		Page: 1, Limit: 2, SortBy: models.SortByPrice, SortOrder: models.SortAsc,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, sweets, 2)
	assert.Equal(t, "Lemon Drop", sweets[0].Name)
	assert.Equal(t, "Butterscotch Disc", sweets[1].Name)

	sweets, _, err = s.ListSweets(ctx, models.ListQuery{
		Page: 3, Limit: 2, SortBy: models.SortByPrice, SortOrder: models.SortAsc,
	})
	require.NoError(t, err)
	require.Len(t, sweets, 1)
	assert.Equal(t, "Peanut Butter Cup", sweets[0].Name)

	sweets, total, err = s.ListSweets(ctx, models.ListQuery{
		Page: 1, Limit: 10, Category: "Chocolate", SortBy: models.SortByName, SortOrder: models.SortDesc,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, sweets, 2)
	assert.Equal(t, "Peanut Butter Cup", sweets[0].Name)
	assert.Equal(t, "Mint Chocolate", sweets[1].Name)

	sweets, total, err = s.ListSweets(ctx, models.ListQuery{Page: 9, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, sweets)
}

func TestSearchSweets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	desc := "Chocolate cup filled with creamy peanut butter"
	require.NoError(t, s.SaveSweet(ctx, &models.Sweet{
		Name: "Peanut Butter Cup", Category: "Candy", Description: &desc,
		Price: decimal.RequireFromString("3.99"), Quantity: 80,
	}))
	saveSweet(t, s, "Mint Chocolate", "Chocolate", "2.79", 120)
	saveSweet(t, s, "Coconut Cluster", "Chocolate", "3.29", 60)
	saveSweet(t, s, "Lemon Drop", "Hard Candy", "0.99", 300)
	saveSweet(t, s, "100% Fudge", "Fudge", "4.50", 10)

	min := decimal.RequireFromString("3.00")
	max := decimal.RequireFromString("3.50")

	tests := []struct {
		name  string
		query models.SearchQuery
		want  []string
	}{
		{"name, description and category", models.SearchQuery{Q: "CHOCOLATE"},
			[]string{"Coconut Cluster", "Mint Chocolate", "Peanut Butter Cup"}},
		{"category filter", models.SearchQuery{Q: "o", Category: "Hard Candy"},
			[]string{"Lemon Drop"}},
		{"price range", models.SearchQuery{Q: "c", MinPrice: &min, MaxPrice: &max},
			[]string{"Coconut Cluster"}},
		{"min only", models.SearchQuery{Q: "c", MinPrice: &min},
			[]string{"Coconut Cluster", "Peanut Butter Cup"}},
		{"literal percent", models.SearchQuery{Q: "%"},
			[]string{"100% Fudge"}},
		{"no match", models.SearchQuery{Q: "licorice"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.query
			q.Page, q.Limit = 1, 20
			results, total, err := s.SearchSweets(ctx, q)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), total)
			var names []string
			for _, r := range results {
				names = append(names, r.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestRestockSweet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sw := saveSweet(t, s, "Vanilla Fudge", "Fudge", "3.49", 0)

	got, err := s.RestockSweet(ctx, sw.ID, 25)
	require.NoError(t, err)
	assert.Equal(t, 25, got.Quantity)

	got, err = s.RestockSweet(ctx, sw.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 30, got.Quantity)

	_, err = s.RestockSweet(ctx, uuid.NewString(), 5)
	assert.ErrorIs(t, err, storage.ErrSweetNotFound)
}

func TestRestockSweetStockLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sw := saveSweet(t, s, "Jelly Bean", "Gummy", "0.10", models.MaxQuantity-5)

	_, err := s.RestockSweet(ctx, sw.ID, 6)
	assert.ErrorIs(t, err, storage.ErrStockLimit)

	_, err = s.RestockSweet(ctx, sw.ID, models.MaxQuantity+1)
	assert.ErrorIs(t, err, storage.ErrStockLimit)

	got, err := s.GetSweet(ctx, sw.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MaxQuantity-5, got.Quantity)

	got, err = s.RestockSweet(ctx, sw.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, models.MaxQuantity, got.Quantity)

	_, err = s.RestockSweet(ctx, uuid.NewString(), 1)
	assert.ErrorIs(t, err, storage.ErrSweetNotFound)
}

func TestLowStockSweets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	saveSweet(t, s, "Plenty", "Candy", "1.00", 100)
	saveSweet(t, s, "Few", "Candy", "1.00", 3)
	saveSweet(t, s, "None", "Candy", "1.00", 0)

	low, err := s.LowStockSweets(ctx, 5)
	require.NoError(t, err)
	require.Len(t, low, 2)
	assert.Equal(t, "None", low[0].Name)
	assert.Equal(t, "Few", low[1].Name)
}

// ============================================================================
// Purchase transaction
// ============================================================================

func TestPurchaseSweet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := saveUser(t, s, "buyer@example.com")
	sw := saveSweet(t, s, "Chocolate Truffle", "Chocolate", "2.99", 100)

	p, remaining, err := s.PurchaseSweet(ctx, sw.ID, u.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 99, remaining)
	assert.Equal(t, u.ID, p.UserID)
	assert.Equal(t, sw.ID, p.SweetID)
	assert.Equal(t, 1, p.Quantity)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("2.99")))
	assert.Equal(t, 1, countPurchases(t, s, sw.ID))

	var stored models.Purchase
	require.NoError(t, s.db.Get(&stored, s.db.Rebind(
		`SELECT id, user_id, sweet_id, quantity, price, created_at FROM purchases WHERE id = ?`), p.ID))
	assert.True(t, stored.Price.Equal(decimal.RequireFromString("2.99")))
}

func TestPurchaseCapturesPriceAtPurchaseTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := saveUser(t, s, "buyer@example.com")
	sw := saveSweet(t, s, "Caramel Chew", "Caramel", "1.99", 10)

	first, _, err := s.PurchaseSweet(ctx, sw.ID, u.ID, 1)
	require.NoError(t, err)

	price := decimal.RequireFromString("2.49")
	_, err = s.UpdateSweet(ctx, sw.ID, models.SweetPatch{Price: &price})
	require.NoError(t, err)

	second, _, err := s.PurchaseSweet(ctx, sw.ID, u.ID, 1)
	require.NoError(t, err)

	assert.True(t, first.Price.Equal(decimal.RequireFromString("1.99")))
	assert.True(t, second.Price.Equal(price))
}

func TestPurchaseOutOfStockLeavesStockUnchanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := saveUser(t, s, "buyer@example.com")
	sw := saveSweet(t, s, "Lemon Drop", "Hard Candy", "0.99", 5)

	_, _, err := s.PurchaseSweet(ctx, sw.ID, u.ID, 6)
	assert.ErrorIs(t, err, storage.ErrOutOfStock)

	got, err := s.GetSweet(ctx, sw.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)
	assert.Equal(t, 0, countPurchases(t, s, sw.ID))

	_, remaining, err := s.PurchaseSweet(ctx, sw.ID, u.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	_, _, err = s.PurchaseSweet(ctx, sw.ID, u.ID, 1)
	assert.ErrorIs(t, err, storage.ErrOutOfStock)
}

func TestPurchaseUnknownSweet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := saveUser(t, s, "buyer@example.com")

	_, _, err := s.PurchaseSweet(ctx, uuid.NewString(), u.ID, 1)
	assert.ErrorIs(t, err, storage.ErrSweetNotFound)

	_, _, err = s.PurchaseSweet(ctx, "nonexistent", u.ID, 1)
	assert.ErrorIs(t, err, storage.ErrSweetNotFound)
}

func TestPurchaseRejectsNonPositiveQuantity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := saveUser(t, s, "buyer@example.com")
	sw := saveSweet(t, s, "Lemon Drop", "Hard Candy", "0.99", 5)

	_, _, err := s.PurchaseSweet(ctx, sw.ID, u.ID, 0)
	require.Error(t, err)
	assert.False(t, errors.Is(err, storage.ErrOutOfStock))

	got, err := s.GetSweet(ctx, sw.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)
}

func TestConcurrentPurchasesOfLastItem(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := saveUser(t, s, "buyer@example.com")
	sw := saveSweet(t, s, "Coconut Cluster", "Chocolate", "3.29", 1)

	type result struct {
		remaining int
		err       error
	}
	results := make(chan result, 2)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, remaining, err := s.PurchaseSweet(ctx, sw.ID, u.ID, 1)
			results <- result{remaining, err}
		}()
	}
	wg.Wait()
	close(results)

	var ok, outOfStock int
	for r := range results {
		switch {
		case r.err == nil:
			ok++
			assert.Equal(t, 0, r.remaining)
		case errors.Is(r.err, storage.ErrOutOfStock):
			outOfStock++
		default:
			t.Fatalf("unexpected error: %v", r.err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, outOfStock)
	assert.Equal(t, 1, countPurchases(t, s, sw.ID))
}

func TestConcurrentPurchasesNeverOversell(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const (
		stock   = 50
		buyers  = 20
		perUser = 3
	)

	u := saveUser(t, s, "buyer@example.com")
	sw := saveSweet(t, s, "Strawberry Gummy", "Gummy", "1.49", stock)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.PurchaseSweet(ctx, sw.ID, u.ID, perUser)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, storage.ErrOutOfStock)
		}()
	}
	wg.Wait()

	got, err := s.GetSweet(ctx, sw.ID)
	require.NoError(t, err)
	assert.Equal(t, stock/perUser, succeeded)
	assert.Equal(t, stock-succeeded*perUser, got.Quantity)
	assert.GreaterOrEqual(t, got.Quantity, 0)
	assert.Equal(t, succeeded, countPurchases(t, s, sw.ID))
}

func TestStockNeverNegativeAcrossPurchaseAndRestock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := saveUser(t, s, "buyer@example.com")
	sw := saveSweet(t, s, "Raspberry Licorice", "Licorice", "2.29", 3)

	ops := []struct {
		restock  int
		purchase int
	}{
		{purchase: 2}, {purchase: 2}, {restock: 4}, {purchase: 5}, {purchase: 1}, {restock: 1}, {purchase: 1},
	}
	for _, op := range ops {
		if op.restock > 0 {
			_, err := s.RestockSweet(ctx, sw.ID, op.restock)
			require.NoError(t, err)
		} else {
			_, _, err := s.PurchaseSweet(ctx, sw.ID, u.ID, op.purchase)
			if err != nil {
				require.ErrorIs(t, err, storage.ErrOutOfStock)
			}
		}
		got, err := s.GetSweet(ctx, sw.ID)
		require.NoError(t, err)
		require.GreaterOrEqual(t, got.Quantity, 0)
	}

	got, err := s.GetSweet(ctx, sw.ID)
	require.NoError(t, err)
	// 3 -2 =1, -2 fails, +4 =5, -5 =0, -1 fails, +1 =1, -1 =0
	assert.Equal(t, 0, got.Quantity)
}

func TestOpen(t *testing.T) {
	s, err := Open(config.Storage{Driver: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })

	assert.Equal(t, "sqlite", s.Dialect().Name())
	assert.NoError(t, s.Ping(context.Background()))

	_, err = Open(config.Storage{Driver: "mysql"})
	assert.Error(t, err)
}
