package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/englishprofesor/tutor-bot/internal/domain/analytics"
	"github.com/englishprofesor/tutor-bot/internal/domain/catalog"
	"github.com/englishprofesor/tutor-bot/internal/domain/lesson"
	"github.com/englishprofesor/tutor-bot/internal/domain/shared"
	"github.com/englishprofesor/tutor-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN STATISTICS
// Панели администратора: обзор, пользователи, отток, уровни, дневная
// статистика, оценка токенов, вовлечённость.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// Оценка стоимости: ~4 символа на токен, $0.002 за 1K токенов.
	charsPerToken   = 4
	costPer1KTokens = 0.002

	// Значения-заглушки, пока нет трекинга сессий.
	placeholderSessionMinutes = 15.0
	placeholderDailyMinutes   = 10.0
	fallbackMessagesPerLesson = 5.0

	// activeWindowDays - "активен", если был в сети за последние N дней.
	activeWindowDays = 7

	// neverActiveDays is reported when last_activity is unknown.
	neverActiveDays = 999

	userDetailLessons = 20
)

// Limits of the admin query parameters.
const (
	DefaultUsersLimit   = 100
	MaxUsersLimit       = 500
	DefaultChurnDays    = 14
	MinChurnDays        = 7
	MaxChurnDays        = 90
	DefaultDailyDays    = 30
	MinDailyDays        = 7
	MaxDailyDays        = 90
	DefaultTokenLimit   = 50
	MaxTokenUsageLimit  = 200
	defaultLevelCode = catalog.LevelPreA1
)

func invalidParam(msg string) error {
	return shared.NewDomainError("analytics", "Validate", shared.ErrValidation, msg)
}

// ─────────────────────────────────────────────────────────────────────────────
// DTOs
// ─────────────────────────────────────────────────────────────────────────────

// OverviewDTO is the overview panel.
type OverviewDTO struct {
	TotalUsers        int     `json:"total_users"`
	ActiveUsersToday  int     `json:"active_users_today"`
	ActiveUsersWeek   int     `json:"active_users_week"`
	ActiveUsersMonth  int     `json:"active_users_month"`
	NewUsersToday     int     `json:"new_users_today"`
	NewUsersWeek      int     `json:"new_users_week"`
	NewUsersMonth     int     `json:"new_users_month"`
	TotalLessons      int     `json:"total_lessons"`
	TotalMessages     int     `json:"total_messages"`
	AvgLessonsPerUser float64 `json:"avg_lessons_per_user"`
	AvgStreakDays     float64 `json:"avg_streak_days"`
}

// UserActivityDTO is a row of the admin user list.
type UserActivityDTO struct {
	UserID                int64      `json:"user_id"`
	TelegramID            int64      `json:"telegram_id"`
	Name                  string     `json:"name"`
	Username              string     `json:"username,omitempty"`
	Level                 string     `json:"level"`
	TotalLessons          int        `json:"total_lessons"`
	StreakDays            int        `json:"streak_days"`
	LastActivity          *time.Time `json:"last_activity"`
	RegisteredAt          time.Time  `json:"registered_at"`
	IsActive              bool       `json:"is_active"`
	DaysSinceLastActivity int        `json:"days_since_last_activity"`
}

// ChurnedUserDTO is a student inactive for a while.
type ChurnedUserDTO struct {
	UserID       int64      `json:"user_id"`
	TelegramID   int64      `json:"telegram_id"`
	Name         string     `json:"name"`
	LastActivity *time.Time `json:"last_activity"`
	DaysInactive int        `json:"days_inactive"`
	TotalLessons int        `json:"total_lessons"`
	Level        string     `json:"level"`
}

// UsageByLevelDTO is the share of students at a level.
type UsageByLevelDTO struct {
	Level      string  `json:"level"`
	UserCount  int     `json:"user_count"`
	Percentage float64 `json:"percentage"`
}

// DailyStatsDTO is one day of the activity series.
type DailyStatsDTO struct {
	Date          string `json:"date"`
	NewUsers      int    `json:"new_users"`
	ActiveUsers   int    `json:"active_users"`
	LessonsCount  int    `json:"lessons_count"`
	MessagesCount int    `json:"messages_count"`
}

// TokenUsageDTO is the estimated LLM usage of a student.
type TokenUsageDTO struct {
	UserID           int64   `json:"user_id"`
	Name             string  `json:"name"`
	EstimatedTokens  int64   `json:"estimated_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
	MessagesCount    int     `json:"messages_count"`
}

// EngagementDTO is the engagement panel.
type EngagementDTO struct {
	AvgSessionDurationMinutes float64 `json:"avg_session_duration_minutes"`
	AvgMessagesPerSession     float64 `json:"avg_messages_per_session"`
	AvgDailyUsageMinutes      float64 `json:"avg_daily_usage_minutes"`
	RetentionRate7d           float64 `json:"retention_rate_7d"`
	RetentionRate30d          float64 `json:"retention_rate_30d"`
	ChurnRate                 float64 `json:"churn_rate"`
}

// UserLessonDTO is a lesson row of the user detail view.
type UserLessonDTO struct {
	ID            int64      `json:"id"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at"`
	Topic         string     `json:"topic,omitempty"`
	MessagesCount int        `json:"messages_count"`
}

// UserDetailDTO is the admin view of one student.
type UserDetailDTO struct {
	UserActivityDTO
	TotalMinutes  int             `json:"total_minutes"`
	RecentLessons []UserLessonDTO `json:"recent_lessons"`
}

// UsersQuery filters the user list.
type UsersQuery struct {
	Skip       int
	Limit      int
	ActiveOnly bool
	SortBy     string
	Order      string
}

// ─────────────────────────────────────────────────────────────────────────────
// Handler
// ─────────────────────────────────────────────────────────────────────────────

// AdminStatsHandler serves every admin panel.
type AdminStatsHandler struct {
	store   analytics.Store
	lessons lesson.Repository
	cache   PanelCache // optional
	clock   timeutil.Clock
	logger  *slog.Logger
}

// NewAdminStatsHandler creates a new AdminStatsHandler.
func NewAdminStatsHandler(
	store analytics.Store,
	lessons lesson.Repository,
	cache PanelCache,
	clock timeutil.Clock,
	logger *slog.Logger,
) *AdminStatsHandler {
	return &AdminStatsHandler{
		store:   store,
		lessons: lessons,
		cache:   cache,
		clock:   clock,
		logger:  logger.With("component", "admin_stats"),
	}
}

// Overview returns the overview panel.
func (h *AdminStatsHandler) Overview(ctx context.Context) (OverviewDTO, error) {
	return cachedPanel(ctx, h.cache, "overview", h.logger, func(ctx context.Context) (OverviewDTO, error) {
		now := h.clock.Now()
		c, err := h.store.Overview(ctx, analytics.OverviewWindow{
			TodayStart: timeutil.StartOfDay(now, h.clock.Location()),
			WeekAgo:    now.AddDate(0, 0, -7),
			MonthAgo:   now.AddDate(0, 0, -30),
		})
		if err != nil {
			return OverviewDTO{}, err
		}
		return overviewFromCounts(c), nil
	})
}

func overviewFromCounts(c analytics.OverviewCounts) OverviewDTO {
	avgLessons := 0.0
	if c.TotalUsers > 0 {
		avgLessons = float64(c.TotalLessons) / float64(c.TotalUsers)
	}
	return OverviewDTO{
		TotalUsers:        c.TotalUsers,
		ActiveUsersToday:  c.ActiveToday,
		ActiveUsersWeek:   c.ActiveWeek,
		ActiveUsersMonth:  c.ActiveMonth,
		NewUsersToday:     c.NewToday,
		NewUsersWeek:      c.NewWeek,
		NewUsersMonth:     c.NewMonth,
		TotalLessons:      c.TotalLessons,
		TotalMessages:     c.TotalMessages,
		AvgLessonsPerUser: roundTo(avgLessons, 2),
		AvgStreakDays:     roundTo(c.AverageStreak, 2),
	}
}

// Users returns a page of students.
func (h *AdminStatsHandler) Users(ctx context.Context, q UsersQuery) ([]UserActivityDTO, error) {
	if q.Skip < 0 {
		return nil, invalidParam("skip must be >= 0")
	}
	if q.Limit == 0 {
		q.Limit = DefaultUsersLimit
	}
	if q.Limit < 1 || q.Limit > MaxUsersLimit {
		return nil, invalidParam(fmt.Sprintf("limit must be between 1 and %d", MaxUsersLimit))
	}
	sortBy, err := analytics.ParseUserSortKey(q.SortBy)
	if err != nil {
		return nil, err
	}
	order, err := analytics.ParseSortOrder(q.Order)
	if err != nil {
		return nil, err
	}

	now := h.clock.Now()
	filter := analytics.UserFilter{Skip: q.Skip, Limit: q.Limit, SortBy: sortBy, Order: order}
	if q.ActiveOnly {
		since := now.AddDate(0, 0, -activeWindowDays)
		filter.ActiveSince = &since
	}

	rows, err := h.store.ListUsers(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]UserActivityDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, userActivity(r, now))
	}
	return out, nil
}

// Churned lists students inactive for at least daysInactive days.
func (h *AdminStatsHandler) Churned(ctx context.Context, daysInactive int) ([]ChurnedUserDTO, error) {
	if daysInactive == 0 {
		daysInactive = DefaultChurnDays
	}
	if daysInactive < MinChurnDays || daysInactive > MaxChurnDays {
		return nil, invalidParam(fmt.Sprintf("days_inactive must be between %d and %d", MinChurnDays, MaxChurnDays))
	}

	now := h.clock.Now()
	rows, err := h.store.ListInactiveSince(ctx, now.AddDate(0, 0, -daysInactive))
	if err != nil {
		return nil, err
	}
	out := make([]ChurnedUserDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, ChurnedUserDTO{
			UserID:       r.ID,
			TelegramID:   r.TelegramID,
			Name:         r.FullName(),
			LastActivity: r.LastActivity,
			DaysInactive: daysSince(r.LastActivity, now),
			TotalLessons: r.TotalLessons,
			Level:        levelOrDefault(r.LevelCode),
		})
	}
	return out, nil
}

// UsageByLevel returns the distribution of students over levels.
func (h *AdminStatsHandler) UsageByLevel(ctx context.Context) ([]UsageByLevelDTO, error) {
	counts, err := h.store.CountByLevel(ctx)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, c := range counts {
		total += c.Users
	}
	out := make([]UsageByLevelDTO, 0, len(counts))
	for _, c := range counts {
		pct := 0.0
		if total > 0 {
			pct = roundTo(float64(c.Users)/float64(total)*100, 1)
		}
		out = append(out, UsageByLevelDTO{Level: c.LevelCode, UserCount: c.Users, Percentage: pct})
	}
	return out, nil
}

// Daily returns the last `days` days, oldest first.
func (h *AdminStatsHandler) Daily(ctx context.Context, days int) ([]DailyStatsDTO, error) {
	if days == 0 {
		days = DefaultDailyDays
	}
	if days < MinDailyDays || days > MaxDailyDays {
		return nil, invalidParam(fmt.Sprintf("days must be between %d and %d", MinDailyDays, MaxDailyDays))
	}
	return cachedPanel(ctx, h.cache, dailyPanel(days), h.logger, func(ctx context.Context) ([]DailyStatsDTO, error) {
		return h.computeDaily(ctx, days)
	})
}

// RefreshDaily recomputes the daily series and overwrites the cache.
// Used by the worker so the first admin request after a quiet period is fast.
func (h *AdminStatsHandler) RefreshDaily(ctx context.Context, days int) (int, error) {
	if days < MinDailyDays || days > MaxDailyDays {
		days = DefaultDailyDays
	}
	series, err := h.computeDaily(ctx, days)
	if err != nil {
		return 0, err
	}
	if h.cache != nil {
		if err := h.cache.SetPanel(ctx, dailyPanel(days), series); err != nil {
			return 0, fmt.Errorf("refresh_daily: cache write: %w", err)
		}
	}
	return len(series), nil
}

func dailyPanel(days int) string { return fmt.Sprintf("daily:%d", days) }

func (h *AdminStatsHandler) computeDaily(ctx context.Context, days int) ([]DailyStatsDTO, error) {
	now := h.clock.Now()
	from := now.AddDate(0, 0, -(days - 1))
	rows, err := h.store.Daily(ctx, from, now, h.clock.Location())
	if err != nil {
		return nil, err
	}
	out := make([]DailyStatsDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, DailyStatsDTO{
			Date:          r.Date,
			NewUsers:      r.NewUsers,
			ActiveUsers:   r.ActiveUsers,
			LessonsCount:  r.Lessons,
			MessagesCount: r.Messages,
		})
	}
	return out, nil
}

// TokenUsage estimates LLM tokens and cost per student, heaviest first.
func (h *AdminStatsHandler) TokenUsage(ctx context.Context, limit int) ([]TokenUsageDTO, error) {
	if limit == 0 {
		limit = DefaultTokenLimit
	}
	if limit < 1 || limit > MaxTokenUsageLimit {
		return nil, invalidParam(fmt.Sprintf("limit must be between 1 and %d", MaxTokenUsageLimit))
	}
	rows, err := h.store.CharUsage(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]TokenUsageDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, tokenUsage(r))
	}
	return out, nil
}

func tokenUsage(r analytics.CharUsage) TokenUsageDTO {
	tokens := r.TotalChars / charsPerToken
	name := r.FirstName
	if r.LastName != "" {
		name += " " + r.LastName
	}
	return TokenUsageDTO{
		UserID:           r.UserID,
		Name:             name,
		EstimatedTokens:  tokens,
		EstimatedCostUSD: roundTo(float64(tokens)/1000*costPer1KTokens, 4),
		MessagesCount:    r.Messages,
	}
}

// Engagement returns retention and churn rates.
func (h *AdminStatsHandler) Engagement(ctx context.Context) (EngagementDTO, error) {
	return cachedPanel(ctx, h.cache, "engagement", h.logger, func(ctx context.Context) (EngagementDTO, error) {
		c, err := h.store.Retention(ctx, h.clock.Now())
		if err != nil {
			return EngagementDTO{}, err
		}
		return engagementFromCounts(c), nil
	})
}

func engagementFromCounts(c analytics.RetentionCounts) EngagementDTO {
	avgMsgs := fallbackMessagesPerLesson
	if c.AvgMessagesPerLesson != nil && *c.AvgMessagesPerLesson > 0 {
		avgMsgs = *c.AvgMessagesPerLesson
	}
	return EngagementDTO{
		AvgSessionDurationMinutes: placeholderSessionMinutes,
		AvgMessagesPerSession:     avgMsgs,
		AvgDailyUsageMinutes:      placeholderDailyMinutes,
		RetentionRate7d:           percent(c.Retained7d, c.Cohort7d),
		RetentionRate30d:          percent(c.Retained30d, c.Cohort30d),
		ChurnRate:                 percent(c.Churned14d, c.TotalUsers),
	}
}

// percent is part/whole*100 rounded to one place; an empty whole counts as 1.
func percent(part, whole int) float64 {
	return roundTo(float64(part)/float64(max(whole, 1))*100, 1)
}

// UserDetail returns a student with the 20 most recent lessons.
func (h *AdminStatsHandler) UserDetail(ctx context.Context, userID int64) (*UserDetailDTO, error) {
	var (
		row     analytics.UserRow
		lessons []*lesson.Lesson
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		row, err = h.store.GetUser(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		lessons, err = h.lessons.ListByStudent(gctx, userID, userDetailLessons, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	detail := &UserDetailDTO{
		UserActivityDTO: userActivity(row, h.clock.Now()),
		TotalMinutes:    row.TotalMinutes,
		RecentLessons:   make([]UserLessonDTO, 0, len(lessons)),
	}
	for _, l := range lessons {
		detail.RecentLessons = append(detail.RecentLessons, UserLessonDTO{
			ID:            l.ID,
			StartedAt:     l.StartedAt,
			EndedAt:       l.EndedAt,
			Topic:         l.Topic,
			MessagesCount: l.MessagesCount,
		})
	}
	return detail, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func userActivity(r analytics.UserRow, now time.Time) UserActivityDTO {
	days := daysSince(r.LastActivity, now)
	return UserActivityDTO{
		UserID:                r.ID,
		TelegramID:            r.TelegramID,
		Name:                  r.FullName(),
		Username:              r.Username,
		Level:                 levelOrDefault(r.LevelCode),
		TotalLessons:          r.TotalLessons,
		StreakDays:            r.StreakDays,
		LastActivity:          r.LastActivity,
		RegisteredAt:          r.RegisteredAt,
		IsActive:              days <= activeWindowDays,
		DaysSinceLastActivity: days,
	}
}

func daysSince(t *time.Time, now time.Time) int {
	if t == nil {
		return neverActiveDays
	}
	return timeutil.DaysSince(*t, now)
}

func levelOrDefault(code string) string {
	if code == "" {
		return string(defaultLevelCode)
	}
	return code
}
