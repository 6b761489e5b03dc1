package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/englishprofesor/tutor-bot/internal/domain/analytics"
	"github.com/englishprofesor/tutor-bot/internal/domain/student"
	"github.com/englishprofesor/tutor-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS STORE
// ══════════════════════════════════════════════════════════════════════════════

// AnalyticsRepository implements analytics.Store with aggregate SQL.
type AnalyticsRepository struct {
	conn *Connection
}

// NewAnalyticsRepository creates a new AnalyticsRepository.
func NewAnalyticsRepository(conn *Connection) *AnalyticsRepository {
	return &AnalyticsRepository{conn: conn}
}

// userSortColumns maps every allowed sort key to a column. Anything not in
// this map is rejected, so user input never reaches the SQL text.
var userSortColumns = map[analytics.UserSortKey]string{
	analytics.SortByLastActivity: "s.last_activity",
	analytics.SortByRegisteredAt: "s.registered_at",
	analytics.SortByTotalLessons: "s.total_lessons",
	analytics.SortByStreakDays:   "s.streak_days",
}

// orderClause builds "col DESC NULLS LAST" / "col ASC NULLS FIRST".
func orderClause(key analytics.UserSortKey, order analytics.SortOrder) (string, error) {
	col, ok := userSortColumns[key]
	if !ok {
		return "", analytics.ErrInvalidSort
	}
	switch order {
	case analytics.OrderAsc:
		return col + " ASC NULLS FIRST", nil
	case analytics.OrderDesc, "":
		return col + " DESC NULLS LAST", nil
	default:
		return "", analytics.ErrInvalidSort
	}
}

const userRowColumns = `
	s.id, s.telegram_id, s.first_name, s.last_name, s.username, l.code,
	s.total_lessons, s.total_minutes, s.streak_days, s.last_activity, s.registered_at`

const userRowFrom = ` FROM students s JOIN levels l ON l.id = s.current_level_id`

// Overview returns all overview counters in one round trip.
func (r *AnalyticsRepository) Overview(ctx context.Context, w analytics.OverviewWindow) (analytics.OverviewCounts, error) {
	var c analytics.OverviewCounts
	err := r.conn.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE last_activity >= $1),
			COUNT(*) FILTER (WHERE last_activity >= $2),
			COUNT(*) FILTER (WHERE last_activity >= $3),
			COUNT(*) FILTER (WHERE registered_at >= $1),
			COUNT(*) FILTER (WHERE registered_at >= $2),
			COUNT(*) FILTER (WHERE registered_at >= $3),
			(SELECT COUNT(*) FROM lessons),
			(SELECT COUNT(*) FROM lesson_messages),
			COALESCE(AVG(streak_days), 0)::float8
		FROM students`,
		w.TodayStart, w.WeekAgo, w.MonthAgo,
	).Scan(
		&c.TotalUsers, &c.ActiveToday, &c.ActiveWeek, &c.ActiveMonth,
		&c.NewToday, &c.NewWeek, &c.NewMonth,
		&c.TotalLessons, &c.TotalMessages, &c.AverageStreak,
	)
	if err != nil {
		return c, fmt.Errorf("failed to compute overview: %w", err)
	}
	return c, nil
}

// ListUsers returns a page of users sorted by a whitelisted column.
func (r *AnalyticsRepository) ListUsers(ctx context.Context, f analytics.UserFilter) ([]analytics.UserRow, error) {
	order, err := orderClause(f.SortBy, f.Order)
	if err != nil {
		return nil, err
	}

	args := []any{f.Limit, f.Skip}
	where := ""
	if f.ActiveSince != nil {
		where = " WHERE s.last_activity >= $3"
		args = append(args, *f.ActiveSince)
	}

	rows, err := r.conn.Query(ctx, `SELECT `+userRowColumns+userRowFrom+where+
		` ORDER BY `+order+`, s.id LIMIT $1 OFFSET $2`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return collectUserRows(rows)
}

// ListInactiveSince returns users whose last activity is before cutoff.
func (r *AnalyticsRepository) ListInactiveSince(ctx context.Context, cutoff time.Time) ([]analytics.UserRow, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+userRowColumns+userRowFrom+`
		WHERE s.last_activity < $1
		ORDER BY s.last_activity DESC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list churned users: %w", err)
	}
	return collectUserRows(rows)
}

// GetUser returns one user row.
func (r *AnalyticsRepository) GetUser(ctx context.Context, id int64) (analytics.UserRow, error) {
	u, err := scanUserRow(r.conn.QueryRow(ctx, `SELECT `+userRowColumns+userRowFrom+` WHERE s.id = $1`, id))
	if err != nil {
		if IsNoRows(err) {
			return u, student.ErrStudentNotFound
		}
		return u, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// CountByLevel returns students per level in ladder order (levels without students omitted).
func (r *AnalyticsRepository) CountByLevel(ctx context.Context) ([]analytics.LevelCount, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT l.code, COUNT(s.id)
		FROM levels l
		JOIN students s ON s.current_level_id = l.id
		GROUP BY l.code, l."order"
		ORDER BY l."order"`)
	if err != nil {
		return nil, fmt.Errorf("failed to count users by level: %w", err)
	}
	defer rows.Close()

	var out []analytics.LevelCount
	for rows.Next() {
		var lc analytics.LevelCount
		if err := rows.Scan(&lc.LevelCode, &lc.Users); err != nil {
			return nil, fmt.Errorf("failed to scan level count: %w", err)
		}
		out = append(out, lc)
	}
	return out, rows.Err()
}

// Daily returns one row per calendar day in [from, to], oldest first.
// Days are bucketed in loc.
func (r *AnalyticsRepository) Daily(ctx context.Context, from, to time.Time, loc *time.Location) ([]analytics.DailyCounts, error) {
	if loc == nil {
		loc = time.UTC
	}
	rows, err := r.conn.Query(ctx, `
		WITH days AS (
			SELECT generate_series($1::date, $2::date, interval '1 day')::date AS d
		)
		SELECT
			to_char(d, 'YYYY-MM-DD'),
			(SELECT COUNT(*) FROM students WHERE (registered_at AT TIME ZONE $3)::date = d),
			(SELECT COUNT(*) FROM students WHERE (last_activity AT TIME ZONE $3)::date = d),
			(SELECT COUNT(*) FROM lessons WHERE (started_at AT TIME ZONE $3)::date = d),
			(SELECT COUNT(*) FROM lesson_messages WHERE (created_at AT TIME ZONE $3)::date = d)
		FROM days
		ORDER BY d`,
		timeutil.FormatDateIn(from, loc), timeutil.FormatDateIn(to, loc), loc.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute daily stats: %w", err)
	}
	defer rows.Close()

	var out []analytics.DailyCounts
	for rows.Next() {
		var d analytics.DailyCounts
		if err := rows.Scan(&d.Date, &d.NewUsers, &d.ActiveUsers, &d.Lessons, &d.Messages); err != nil {
			return nil, fmt.Errorf("failed to scan daily stats: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CharUsage returns message volume per student, heaviest first.
func (r *AnalyticsRepository) CharUsage(ctx context.Context, limit int) ([]analytics.CharUsage, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT s.id, s.first_name, s.last_name, COUNT(m.id), COALESCE(SUM(LENGTH(m.content)), 0)
		FROM students s
		JOIN lessons l ON l.student_id = s.id
		JOIN lesson_messages m ON m.lesson_id = l.id
		GROUP BY s.id, s.first_name, s.last_name
		ORDER BY SUM(LENGTH(m.content)) DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to compute char usage: %w", err)
	}
	defer rows.Close()

	var out []analytics.CharUsage
	for rows.Next() {
		var u analytics.CharUsage
		if err := rows.Scan(&u.UserID, &u.FirstName, &u.LastName, &u.Messages, &u.TotalChars); err != nil {
			return nil, fmt.Errorf("failed to scan char usage: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Retention returns the cohort counters for the engagement panel.
func (r *AnalyticsRepository) Retention(ctx context.Context, now time.Time) (analytics.RetentionCounts, error) {
	weekAgo := now.AddDate(0, 0, -7)
	monthAgo := now.AddDate(0, 0, -30)
	twoWeeksAgo := now.AddDate(0, 0, -14)

	var c analytics.RetentionCounts
	err := r.conn.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE registered_at <= $1),
			COUNT(*) FILTER (WHERE registered_at <= $1 AND last_activity >= $1),
			COUNT(*) FILTER (WHERE registered_at <= $2),
			COUNT(*) FILTER (WHERE registered_at <= $2 AND last_activity >= $2),
			COUNT(*),
			COUNT(*) FILTER (WHERE last_activity < $3),
			(SELECT AVG(cnt)::float8 FROM (
				SELECT COUNT(m.id) AS cnt
				FROM lessons l LEFT JOIN lesson_messages m ON m.lesson_id = l.id
				GROUP BY l.id
			) per_lesson)
		FROM students`,
		weekAgo, monthAgo, twoWeeksAgo,
	).Scan(&c.Cohort7d, &c.Retained7d, &c.Cohort30d, &c.Retained30d, &c.TotalUsers, &c.Churned14d, &c.AvgMessagesPerLesson)
	if err != nil {
		return c, fmt.Errorf("failed to compute retention: %w", err)
	}
	return c, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func collectUserRows(rows pgx.Rows) ([]analytics.UserRow, error) {
	defer rows.Close()
	var out []analytics.UserRow
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func scanUserRow(row pgx.Row) (analytics.UserRow, error) {
	var u analytics.UserRow
	err := row.Scan(
		&u.ID, &u.TelegramID, &u.FirstName, &u.LastName, &u.Username, &u.LevelCode,
		&u.TotalLessons, &u.TotalMinutes, &u.StreakDays, &u.LastActivity, &u.RegisteredAt,
	)
	return u, err
}
