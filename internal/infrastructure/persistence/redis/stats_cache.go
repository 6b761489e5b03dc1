package redis

import (
	"context"
)

// StatsCache is a typed facade used by the query layer: per-student
// dashboards and admin panels, each with its own TTL.
type StatsCache struct {
	cache *Cache
}

// NewStatsCache creates a new StatsCache. A nil cache disables caching.
func NewStatsCache(cache *Cache) *StatsCache {
	return &StatsCache{cache: cache}
}

func (s *StatsCache) enabled() bool { return s != nil && s.cache != nil }

// GetDashboard loads a cached dashboard into dest.
func (s *StatsCache) GetDashboard(ctx context.Context, studentID int64, dest any) error {
	if !s.enabled() {
		return ErrCacheMiss
	}
	return s.cache.Get(ctx, DashboardKey(studentID), dest)
}

// SetDashboard caches a dashboard for TTLDashboard.
func (s *StatsCache) SetDashboard(ctx context.Context, studentID int64, value any) error {
	if !s.enabled() {
		return nil
	}
	return s.cache.Set(ctx, DashboardKey(studentID), value, TTLDashboard)
}

// InvalidateDashboard drops the cached dashboard of a student.
func (s *StatsCache) InvalidateDashboard(ctx context.Context, studentID int64) error {
	if !s.enabled() {
		return nil
	}
	return s.cache.Delete(ctx, DashboardKey(studentID))
}

// GetPanel loads a cached admin panel ("overview", "daily:30", ...).
func (s *StatsCache) GetPanel(ctx context.Context, panel string, dest any) error {
	if !s.enabled() {
		return ErrCacheMiss
	}
	return s.cache.Get(ctx, AdminStatsKey(panel), dest)
}

// SetPanel caches an admin panel for TTLAdminStats.
func (s *StatsCache) SetPanel(ctx context.Context, panel string, value any) error {
	if !s.enabled() {
		return nil
	}
	return s.cache.Set(ctx, AdminStatsKey(panel), value, TTLAdminStats)
}
