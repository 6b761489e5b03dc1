// Package analytics defines the read models behind the admin dashboard and
// the contract of the store that computes them.
package analytics

import (
	"context"
	"strings"
	"time"

	"github.com/englishprofesor/tutor-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SORTING
// ══════════════════════════════════════════════════════════════════════════════

// UserSortKey is a whitelisted sort field of the admin user list.
type UserSortKey string

const (
	SortByLastActivity UserSortKey = "last_activity"
	SortByRegisteredAt UserSortKey = "registered_at"
	SortByTotalLessons UserSortKey = "total_lessons"
	SortByStreakDays   UserSortKey = "streak_days"
)

// SortOrder is asc or desc.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

var ErrInvalidSort = shared.NewDomainError("analytics", "ParseSort", shared.ErrValidation, "unsupported sort field or order")

// ParseUserSortKey validates a sort key; empty means last_activity.
func ParseUserSortKey(s string) (UserSortKey, error) {
	switch k := UserSortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SortByLastActivity, nil
	case SortByLastActivity, SortByRegisteredAt, SortByTotalLessons, SortByStreakDays:
		return k, nil
	default:
		return "", ErrInvalidSort
	}
}

// ParseSortOrder validates an order; empty means desc.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return OrderDesc, nil
	case OrderAsc, OrderDesc:
		return o, nil
	default:
		return "", ErrInvalidSort
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// READ MODELS
// ══════════════════════════════════════════════════════════════════════════════

// UserFilter selects a page of users.
type UserFilter struct {
	Skip        int
	Limit       int
	ActiveSince *time.Time // nil = everyone
	SortBy      UserSortKey
	Order       SortOrder
}

// UserRow is a student with the level code resolved.
type UserRow struct {
	ID           int64
	TelegramID   int64
	FirstName    string
	LastName     string
	Username     string
	LevelCode    string
	TotalLessons int
	TotalMinutes int
	StreakDays   int
	LastActivity *time.Time
	RegisteredAt time.Time
}

// FullName joins first and last name.
func (u UserRow) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// OverviewCounts are the raw counters of the overview panel.
type OverviewCounts struct {
	TotalUsers    int
	ActiveToday   int
	ActiveWeek    int
	ActiveMonth   int
	NewToday      int
	NewWeek       int
	NewMonth      int
	TotalLessons  int
	TotalMessages int
	AverageStreak float64
}

// OverviewWindow carries the lower bounds of each period.
type OverviewWindow struct {
	TodayStart time.Time
	WeekAgo    time.Time
	MonthAgo   time.Time
}

// LevelCount is the number of students currently at a level.
type LevelCount struct {
	LevelCode string
	Users     int
}

// DailyCounts is one day of the activity series.
type DailyCounts struct {
	Date        string // YYYY-MM-DD in the reporting timezone
	NewUsers    int
	ActiveUsers int
	Lessons     int
	Messages    int
}

// CharUsage is message volume per student, used to estimate LLM tokens.
type CharUsage struct {
	UserID     int64
	FirstName  string
	LastName   string
	Messages   int
	TotalChars int64
}

// RetentionCounts feeds the engagement panel.
type RetentionCounts struct {
	Cohort7d             int // registered at least 7 days ago
	Retained7d           int // ... and active in the last 7 days
	Cohort30d            int
	Retained30d          int
	TotalUsers           int
	Churned14d           int
	AvgMessagesPerLesson *float64 // nil when there are no lessons
}

// Store computes analytics from the relational store.
type Store interface {
	Overview(ctx context.Context, w OverviewWindow) (OverviewCounts, error)
	ListUsers(ctx context.Context, f UserFilter) ([]UserRow, error)
	ListInactiveSince(ctx context.Context, cutoff time.Time) ([]UserRow, error)
	GetUser(ctx context.Context, id int64) (UserRow, error)
	CountByLevel(ctx context.Context) ([]LevelCount, error)
	Daily(ctx context.Context, from, to time.Time, loc *time.Location) ([]DailyCounts, error)
	CharUsage(ctx context.Context, limit int) ([]CharUsage, error)
	Retention(ctx context.Context, now time.Time) (RetentionCounts, error)
}
