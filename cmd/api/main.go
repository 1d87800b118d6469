package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/IlyasAtabaev731/sweet-shop/internal/api"
	"github.com/IlyasAtabaev731/sweet-shop/internal/config"
	"github.com/IlyasAtabaev731/sweet-shop/internal/inventory"
	"github.com/IlyasAtabaev731/sweet-shop/internal/lib/metrics"
	"github.com/IlyasAtabaev731/sweet-shop/internal/lib/ratelimit"
	"github.com/IlyasAtabaev731/sweet-shop/internal/storage/sqlstore"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting application",
		slog.String("env", cfg.Env),
		slog.String("host", cfg.ApiHost),
		slog.Int("port", cfg.ApiPort),
		slog.String("storage", cfg.Storage.Driver),
	)

	store, err := sqlstore.Open(cfg.Storage)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	limiter := setupLimiter(cfg.RateLimit, log)

	m := metrics.NewMetrics("sweetshop")

	reporter := inventory.New(log, store, cfg.Inventory.LowStockThreshold, m.LowStockSweets)
	if err := reporter.Start(context.Background(), cfg.Inventory.ReportSchedule); err != nil {
		log.Error("Failed to start inventory reporter", "error", err)
		os.Exit(1)
	}

	apiServer := api.New(cfg, log, store, limiter, m)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		apiServer.MustStart()
	}()

	<-sigChan
	log.Info("Got signal to shutdown server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := apiServer.Stop(ctx); err != nil {
		log.Error("Stopping server error", "error", err)
	}

	reporter.Stop()

	if closer, ok := limiter.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Error("Closing rate limiter error", "error", err)
		}
	}

	if err := store.Stop(); err != nil {
		log.Error("Closing database error", "error", err)
	}
}

// setupLimiter prefers Redis so limits hold across replicas and falls back to
// per-process counters when no Redis address is configured or it is down.
func setupLimiter(cfg config.RateLimit, log *slog.Logger) ratelimit.Limiter {
	if !cfg.Enabled {
		log.Warn("Rate limiting disabled")
		return nil
	}
	if cfg.RedisAddr == "" {
		log.Info("Rate limiting with in-memory counters")
		return ratelimit.NewMemory()
	}

	limiter, err := ratelimit.NewRedis(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err != nil {
		log.Error("Redis unavailable, falling back to in-memory rate limiting", "error", err)
		return ratelimit.NewMemory()
	}

	log.Info("Rate limiting with Redis",
		slog.String("addr", cfg.RedisAddr),
		slog.Int("db", cfg.RedisDB),
	)
	return limiter
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}
