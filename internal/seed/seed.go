// Package seed loads the sample catalog into an empty or reset shop.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IlyasAtabaev731/sweet-shop/internal/domain/models"
	"github.com/shopspring/decimal"
)

type Store interface {
	SaveSweet(ctx context.Context, sw *models.Sweet) error
	ListSweets(ctx context.Context, q models.ListQuery) ([]models.Sweet, int, error)
	DeleteSweet(ctx context.Context, id string) error
}

type sample struct {
	name, category, description, price string
	quantity                           int
	image                              string
}

var samples = []sample{
	{"Chocolate Truffle", "Chocolate", "Rich dark chocolate truffle with cocoa powder coating", "2.99", 100, "https://images.unsplash.com/photo-1548907040-4baa42d10919?w=400"},
	{"Strawberry Gummy", "Gummy", "Soft and chewy strawberry-flavored gummy candy", "1.49", 200, "https://images.unsplash.com/photo-1582058091505-f87a2e55a40f?w=400"},
	{"Vanilla Fudge", "Fudge", "Creamy vanilla fudge with a smooth texture", "3.49", 75, "https://images.unsplash.com/photo-1481391243133-f96216dcb5d2?w=400"},
	{"Mint Chocolate", "Chocolate", "Refreshing mint chocolate with a cool finish", "2.79", 120, "https://images.unsplash.com/photo-1511381939415-e44015466834?w=400"},
	{"Caramel Chew", "Caramel", "Soft caramel chew with a buttery flavor", "1.99", 150, "https://images.unsplash.com/photo-1558961363-fa8fdf82db35?w=400"},
	{"Lemon Drop", "Hard Candy", "Tangy lemon-flavored hard candy", "0.99", 300, "https://images.unsplash.com/photo-1499636136210-6f4ee915583e?w=400"},
	{"Peanut Butter Cup", "Chocolate", "Chocolate cup filled with creamy peanut butter", "3.99", 80, "https://images.unsplash.com/photo-1571506165871-ee72a35bc9d4?w=400"},
	{"Raspberry Licorice", "Licorice", "Sweet raspberry-flavored licorice twists", "2.29", 90, "https://images.unsplash.com/photo-1582058091505-f87a2e55a40f?w=400"},
	{"Butterscotch Disc", "Hard Candy", "Classic butterscotch hard candy disc", "1.29", 250, "https://images.unsplash.com/photo-1514517521153-1be72277b32f?w=400"},
	{"Coconut Cluster", "Chocolate", "Chocolate cluster with toasted coconut flakes", "3.29", 60, "https://images.unsplash.com/photo-1548907040-4baa42d10919?w=400"},
}

// Sweets returns fresh copies of the sample catalog.
func Sweets() []models.Sweet {
	out := make([]models.Sweet, 0, len(samples))
	for _, s := range samples {
		description, image := s.description, s.image
		out = append(out, models.Sweet{
			Name:        s.name,
			Category:    s.category,
			Description: &description,
			Price:       decimal.RequireFromString(s.price),
			Quantity:    s.quantity,
			ImageURL:    &image,
		})
	}
	return out
}

// Run inserts the sample catalog. With reset, every existing sweet is deleted
// first, taking its purchases with it. Without reset a non-empty catalog is
// left alone.
func Run(ctx context.Context, log *slog.Logger, store Store, reset bool) (int, error) {
	const op = "seed.Run"

	if reset {
		removed, err := clearCatalog(ctx, store)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		log.Info("Cleared catalog", slog.Int("removed", removed))
	} else {
		_, total, err := store.ListSweets(ctx, models.ListQuery{Page: 1, Limit: 1})
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		if total > 0 {
			log.Info("Catalog not empty, skipping seed", slog.Int("sweets", total))
			return 0, nil
		}
	}

	sweets := Sweets()
	for i := range sweets {
		if err := store.SaveSweet(ctx, &sweets[i]); err != nil {
			return i, fmt.Errorf("%s: %w", op, err)
		}
	}

	log.Info("Sweets seeded", slog.Int("created", len(sweets)))
	return len(sweets), nil
}

func clearCatalog(ctx context.Context, store Store) (int, error) {
	removed := 0
	for {
		page, _, err := store.ListSweets(ctx, models.ListQuery{
			Page:      1,
			Limit:     100,
			SortBy:    models.SortByCreatedAt,
			SortOrder: models.SortAsc,
		})
		if err != nil {
			return removed, err
		}
		if len(page) == 0 {
			return removed, nil
		}
		for _, sw := range page {
			if err := store.DeleteSweet(ctx, sw.ID); err != nil {
				return removed, err
			}
			removed++
		}
	}
}
