package jobs

import (
	"context"
	"fmt"
	"log/slog"
)

// DailyStatsRefresher recomputes the admin daily series and stores it in cache.
type DailyStatsRefresher interface {
	RefreshDaily(ctx context.Context, days int) (int, error)
}

// RefreshDailyStatsJob warms the admin panel's daily-stats cache.
type RefreshDailyStatsJob struct {
	refresher DailyStatsRefresher
	days      int
	logger    *slog.Logger
}

// NewRefreshDailyStatsJob creates the job.
func NewRefreshDailyStatsJob(refresher DailyStatsRefresher, days int, logger *slog.Logger) *RefreshDailyStatsJob {
	return &RefreshDailyStatsJob{refresher: refresher, days: days, logger: logger}
}

// Name implements scheduler.Job.
func (j *RefreshDailyStatsJob) Name() string { return "refresh_daily_stats" }

// Run implements scheduler.Job.
func (j *RefreshDailyStatsJob) Run(ctx context.Context) error {
	points, err := j.refresher.RefreshDaily(ctx, j.days)
	if err != nil {
		return fmt.Errorf("refresh daily stats: %w", err)
	}
	j.logger.Debug("daily stats refreshed", "days", j.days, "points", points)
	return nil
}
