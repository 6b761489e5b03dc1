package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/englishprofesor/tutor-bot/internal/domain/analytics"
	"github.com/englishprofesor/tutor-bot/internal/domain/lesson"
	"github.com/englishprofesor/tutor-bot/internal/domain/shared"
	"github.com/englishprofesor/tutor-bot/pkg/logger"
	"github.com/englishprofesor/tutor-bot/pkg/timeutil"
)

func newAdminHandler(store *stubAnalytics, lessons *stubLessons, cache PanelCache) *AdminStatsHandler {
	if lessons == nil {
		lessons = &stubLessons{}
	}
	return NewAdminStatsHandler(store, lessons, cache, &timeutil.FixedClock{T: testNow}, logger.Discard())
}

func TestAdminOverview(t *testing.T) {
	store := &stubAnalytics{overview: analytics.OverviewCounts{
		TotalUsers:    3,
		ActiveToday:   1,
		TotalLessons:  10,
		TotalMessages: 120,
		AverageStreak: 2.3333333,
	}}
	cache := newJSONCache()
	h := newAdminHandler(store, nil, cache)

	got, err := h.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3.33, got.AvgLessonsPerUser)
	assert.Equal(t, 2.33, got.AvgStreakDays)
	assert.Equal(t, 120, got.TotalMessages)

	assert.Equal(t, time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), store.overviewWin.TodayStart)
	assert.Equal(t, testNow.AddDate(0, 0, -7), store.overviewWin.WeekAgo)
	assert.Equal(t, testNow.AddDate(0, 0, -30), store.overviewWin.MonthAgo)

	_, err = h.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, store.overviewHits, "second call is served from cache")
}

func TestAdminOverview_NoUsers(t *testing.T) {
	got, err := newAdminHandler(&stubAnalytics{}, nil, nil).Overview(context.Background())
	require.NoError(t, err)
	assert.Zero(t, got.AvgLessonsPerUser)
}

func TestAdminUsers(t *testing.T) {
	store := &stubAnalytics{users: []analytics.UserRow{
		{ID: 1, FirstName: "Ana", LastName: "Gómez", LevelCode: "A1", LastActivity: timeAt(testNow.AddDate(0, 0, -3))},
		{ID: 2, FirstName: "Luis", LastActivity: timeAt(testNow.AddDate(0, 0, -10))},
		{ID: 3, FirstName: "Eva"},
	}}
	h := newAdminHandler(store, nil, nil)

	rows, err := h.Users(context.Background(), UsersQuery{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, DefaultUsersLimit, store.lastFilter.Limit)
	assert.Equal(t, analytics.SortByLastActivity, store.lastFilter.SortBy)
	assert.Equal(t, analytics.OrderDesc, store.lastFilter.Order)
	require.NotNil(t, store.lastFilter.ActiveSince)
	assert.Equal(t, testNow.AddDate(0, 0, -7), *store.lastFilter.ActiveSince)

	assert.Equal(t, "Ana Gómez", rows[0].Name)
	assert.Equal(t, 3, rows[0].DaysSinceLastActivity)
	assert.True(t, rows[0].IsActive)
	assert.Equal(t, 10, rows[1].DaysSinceLastActivity)
	assert.False(t, rows[1].IsActive)
	assert.Equal(t, "PRE_A1", rows[1].Level)
	assert.Equal(t, 999, rows[2].DaysSinceLastActivity)
}

func TestAdminUsers_Validation(t *testing.T) {
	h := newAdminHandler(&stubAnalytics{}, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		q    UsersQuery
	}{
		{"negative skip", UsersQuery{Skip: -1}},
		{"limit too big", UsersQuery{Limit: 501}},
		{"negative limit", UsersQuery{Limit: -5}},
		{"unknown sort", UsersQuery{SortBy: "password"}},
		{"bad order", UsersQuery{Order: "sideways"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Users(ctx, tt.q)
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestAdminChurned(t *testing.T) {
	store := &stubAnalytics{users: []analytics.UserRow{
		{ID: 1, FirstName: "Ana", LastActivity: timeAt(testNow.AddDate(0, 0, -20)), TotalLessons: 4, LevelCode: "A2"},
		{ID: 2, FirstName: "Eva"},
	}}
	h := newAdminHandler(store, nil, nil)

	rows, err := h.Churned(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, testNow.AddDate(0, 0, -DefaultChurnDays), store.lastCutoff)
	require.Len(t, rows, 2)
	assert.Equal(t, 20, rows[0].DaysInactive)
	assert.Equal(t, 999, rows[1].DaysInactive)

	for _, days := range []int{6, 91} {
		_, err := h.Churned(context.Background(), days)
		assert.True(t, shared.IsValidation(err), "days=%d", days)
	}
}

func TestAdminUsageByLevel(t *testing.T) {
	store := &stubAnalytics{levels: []analytics.LevelCount{
		{LevelCode: "PRE_A1", Users: 2},
		{LevelCode: "A1", Users: 1},
		{LevelCode: "A2", Users: 0},
	}}
	rows, err := newAdminHandler(store, nil, nil).UsageByLevel(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 66.7, rows[0].Percentage)
	assert.Equal(t, 33.3, rows[1].Percentage)
	assert.Zero(t, rows[2].Percentage)
}

func TestAdminDaily(t *testing.T) {
	store := &stubAnalytics{daily: []analytics.DailyCounts{
		{Date: "2026-05-03", NewUsers: 1, Lessons: 2},
		{Date: "2026-05-04", ActiveUsers: 3, Messages: 40},
	}}
	cache := newJSONCache()
	h := newAdminHandler(store, nil, cache)

	rows, err := h.Daily(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2026-05-03", rows[0].Date)
	assert.Equal(t, 40, rows[1].MessagesCount)
	assert.Equal(t, testNow.AddDate(0, 0, -(DefaultDailyDays-1)), store.dailyFrom)
	assert.Equal(t, testNow, store.dailyTo)

	_, err = h.Daily(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 1, store.dailyHits)

	_, err = h.Daily(context.Background(), 5)
	assert.True(t, shared.IsValidation(err))
}

func TestAdminRefreshDaily_OverwritesCache(t *testing.T) {
	store := &stubAnalytics{daily: []analytics.DailyCounts{{Date: "2026-05-04"}}}
	cache := newJSONCache()
	h := newAdminHandler(store, nil, cache)

	n, err := h.RefreshDaily(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = h.Daily(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 1, store.dailyHits, "read after refresh hits the cache")
}

func TestAdminTokenUsage(t *testing.T) {
	store := &stubAnalytics{chars: []analytics.CharUsage{
		{UserID: 1, FirstName: "Ana", LastName: "Gómez", Messages: 30, TotalChars: 40000},
		{UserID: 2, FirstName: "Eva", Messages: 1, TotalChars: 7},
	}}
	h := newAdminHandler(store, nil, nil)

	rows, err := h.TokenUsage(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Ana Gómez", rows[0].Name)
	assert.Equal(t, int64(10000), rows[0].EstimatedTokens)
	assert.Equal(t, 0.02, rows[0].EstimatedCostUSD)
	assert.Equal(t, int64(1), rows[1].EstimatedTokens)
	assert.Equal(t, 0.0, rows[1].EstimatedCostUSD)

	_, err = h.TokenUsage(context.Background(), 201)
	assert.True(t, shared.IsValidation(err))
}

func TestAdminEngagement(t *testing.T) {
	avg := 8.5
	store := &stubAnalytics{retention: analytics.RetentionCounts{
		Cohort7d: 3, Retained7d: 2,
		Cohort30d: 0, Retained30d: 0,
		TotalUsers: 8, Churned14d: 1,
		AvgMessagesPerLesson: &avg,
	}}
	got, err := newAdminHandler(store, nil, nil).Engagement(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 15.0, got.AvgSessionDurationMinutes)
	assert.Equal(t, 10.0, got.AvgDailyUsageMinutes)
	assert.Equal(t, 8.5, got.AvgMessagesPerSession)
	assert.Equal(t, 66.7, got.RetentionRate7d)
	assert.Zero(t, got.RetentionRate30d)
	assert.Equal(t, 12.5, got.ChurnRate)
}

func TestAdminEngagement_NoLessonsFallsBack(t *testing.T) {
	got, err := newAdminHandler(&stubAnalytics{}, nil, nil).Engagement(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.AvgMessagesPerSession)
	assert.Zero(t, got.ChurnRate)
}

func TestAdminUserDetail(t *testing.T) {
	store := &stubAnalytics{users: []analytics.UserRow{{ID: 4, FirstName: "Ana", TotalMinutes: 90}}}
	lessons := &stubLessons{lessons: []*lesson.Lesson{
		{ID: 11, StudentID: 4, StartedAt: testNow, MessagesCount: 6, Topic: "food"},
		{ID: 12, StudentID: 5, StartedAt: testNow},
	}}
	h := newAdminHandler(store, lessons, nil)

	got, err := h.UserDetail(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 90, got.TotalMinutes)
	assert.Equal(t, 20, lessons.lastLimit)
	require.Len(t, got.RecentLessons, 1)
	assert.Equal(t, "food", got.RecentLessons[0].Topic)

	_, err = h.UserDetail(context.Background(), 99)
	assert.True(t, shared.IsNotFound(err))
}
