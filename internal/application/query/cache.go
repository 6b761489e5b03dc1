// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"log/slog"
	"math"
)

// DashboardCache caches per-student dashboards.
// Implemented by persistence/redis.StatsCache.
type DashboardCache interface {
	GetDashboard(ctx context.Context, studentID int64, dest any) error
	SetDashboard(ctx context.Context, studentID int64, value any) error
}

// PanelCache caches admin panels by name.
type PanelCache interface {
	GetPanel(ctx context.Context, panel string, dest any) error
	SetPanel(ctx context.Context, panel string, value any) error
}

// cachedPanel returns the cached panel or computes and stores it.
// Any cache error is treated as a miss: the cache is an optimisation only.
func cachedPanel[T any](ctx context.Context, cache PanelCache, panel string, logger *slog.Logger, load func(context.Context) (T, error)) (T, error) {
	if cache == nil {
		return load(ctx)
	}

	var hit T
	if err := cache.GetPanel(ctx, panel, &hit); err == nil {
		return hit, nil
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if err := cache.SetPanel(ctx, panel, v); err != nil {
		logger.Debug("panel cache write failed", "panel", panel, "error", err)
	}
	return v, nil
}

// roundTo rounds v half away from zero to the given decimal places.
func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
