package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/IlyasAtabaev731/sweet-shop/internal/config"
	"github.com/IlyasAtabaev731/sweet-shop/internal/domain/models"
	"github.com/IlyasAtabaev731/sweet-shop/internal/seed"
	"github.com/IlyasAtabaev731/sweet-shop/internal/storage/sqlstore"
)

func main() {
	var (
		reset   bool
		promote string
	)
	flag.BoolVar(&reset, "reset", false, "delete the existing catalog before seeding")
	flag.StringVar(&promote, "promote", "", "email of a registered user to make ADMIN; skips seeding")

	// parses the flags above together with -config
	cfg := config.MustLoad()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	store, err := sqlstore.Open(cfg.Storage)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if promote != "" {
		email := strings.ToLower(promote)
		if err := store.SetUserRole(ctx, email, models.RoleAdmin); err != nil {
			log.Error("Failed to promote user", "error", err, slog.String("email", email))
			os.Exit(1)
		}
		log.Info("User promoted to ADMIN", slog.String("email", email))
		return
	}

	if _, err := seed.Run(ctx, log, store, reset); err != nil {
		log.Error("Seeding failed", "error", err)
		os.Exit(1)
	}

	log.Info("To create an admin, register a user and run: seed -promote <email>")
}
