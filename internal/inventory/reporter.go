// Package inventory runs a periodic low-stock report over the catalog.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IlyasAtabaev731/sweet-shop/internal/domain/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
)

type StockSource interface {
	LowStockSweets(ctx context.Context, threshold int) ([]models.Sweet, error)
}

type Reporter struct {
	log       *slog.Logger
	source    StockSource
	threshold int
	gauge     prometheus.Gauge

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New builds a reporter. gauge may be nil.
func New(log *slog.Logger, source StockSource, threshold int, gauge prometheus.Gauge) *Reporter {
	return &Reporter{
		log:       log.With(slog.String("component", "inventory")),
		source:    source,
		threshold: threshold,
		gauge:     gauge,
		cron:      cron.New(),
	}
}

// Start schedules the report with a standard five-field cron spec or a
// descriptor such as "@every 5m".
func (r *Reporter) Start(ctx context.Context, schedule string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}

	r.ctx, r.cancel = context.WithCancel(ctx)

	_, err := r.cron.AddFunc(schedule, func() {
		if _, err := r.Report(r.ctx); err != nil {
			r.log.Error("Inventory report failed", "error", err)
		}
	})
	if err != nil {
		r.cancel()
		return fmt.Errorf("inventory.Start: invalid schedule %q: %w", schedule, err)
	}

	r.cron.Start()
	r.running = true

	r.log.Info("Inventory reporter started",
		slog.String("schedule", schedule),
		slog.Int("threshold", r.threshold),
	)
	return nil
}

// Stop waits for a report in progress to finish.
func (r *Reporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}

	r.cancel()
	<-r.cron.Stop().Done()
	r.running = false

	r.log.Info("Inventory reporter stopped")
}

// Report runs one pass and returns the sweets at or below the threshold.
func (r *Reporter) Report(ctx context.Context) ([]models.Sweet, error) {
	const op = "inventory.Report"

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	sweets, err := r.source.LowStockSweets(ctx, r.threshold)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if r.gauge != nil {
		r.gauge.Set(float64(len(sweets)))
	}

	if len(sweets) == 0 {
		r.log.Debug("No sweets low on stock")
		return sweets, nil
	}

	for _, sw := range sweets {
		level := slog.LevelWarn
		if sw.Quantity == 0 {
			level = slog.LevelError
		}
		r.log.Log(ctx, level, "Sweet low on stock",
			slog.String("sweet_id", sw.ID),
			slog.String("name", sw.Name),
			slog.Int("quantity", sw.Quantity),
		)
	}

	return sweets, nil
}
