package query

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/englishprofesor/tutor-bot/internal/domain/analytics"
	"github.com/englishprofesor/tutor-bot/internal/domain/catalog"
	"github.com/englishprofesor/tutor-bot/internal/domain/lesson"
	"github.com/englishprofesor/tutor-bot/internal/domain/student"
)

var testNow = time.Date(2026, 5, 4, 15, 30, 0, 0, time.UTC)

var errCacheMiss = errors.New("cache miss")

// ─────────────────────────────────────────────────────────────────────────────
// Students / lessons
// ─────────────────────────────────────────────────────────────────────────────

type stubStudents struct {
	byID map[int64]*student.Student
}

func (s *stubStudents) Create(context.Context, *student.Student) error { return nil }

func (s *stubStudents) GetByID(_ context.Context, id int64) (*student.Student, error) {
	st, ok := s.byID[id]
	if !ok {
		return nil, student.ErrStudentNotFound
	}
	return st, nil
}

func (s *stubStudents) GetByTelegramID(context.Context, student.TelegramID) (*student.Student, error) {
	return nil, student.ErrStudentNotFound
}

func (s *stubStudents) Save(context.Context, *student.Student) error { return nil }

type stubLessons struct {
	lessons        []*lesson.Lesson
	messages       map[int64][]*lesson.Message
	recent         int
	endedAtLevel   int
	countErr       error
	listCalls      int
	lastLimit      int
	lastOffset     int
	countSinceFrom time.Time
}

func (s *stubLessons) Create(context.Context, *lesson.Lesson) error { return nil }

func (s *stubLessons) GetByID(_ context.Context, id int64) (*lesson.Lesson, error) {
	for _, l := range s.lessons {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, lesson.ErrLessonNotFound
}

func (s *stubLessons) FindOpenForDay(context.Context, int64, time.Time, time.Time) (*lesson.Lesson, error) {
	return nil, lesson.ErrNoOpenLesson
}

func (s *stubLessons) FindOpen(context.Context, int64) (*lesson.Lesson, error) {
	return nil, lesson.ErrNoOpenLesson
}

func (s *stubLessons) AppendMessage(context.Context, *lesson.Lesson, *lesson.Message) error {
	return nil
}

func (s *stubLessons) Save(context.Context, *lesson.Lesson) error { return nil }

func (s *stubLessons) ListByStudent(_ context.Context, studentID int64, limit, offset int) ([]*lesson.Lesson, error) {
	s.listCalls++
	s.lastLimit, s.lastOffset = limit, offset
	var out []*lesson.Lesson
	for _, l := range s.lessons {
		if l.StudentID == studentID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *stubLessons) Messages(_ context.Context, lessonID int64) ([]*lesson.Message, error) {
	return s.messages[lessonID], nil
}

func (s *stubLessons) CountSince(_ context.Context, _ int64, since time.Time) (int, error) {
	s.countSinceFrom = since
	return s.recent, s.countErr
}

func (s *stubLessons) CountEndedAtLevel(context.Context, int64, int64) (int, error) {
	return s.endedAtLevel, nil
}

func (s *stubLessons) ListStale(context.Context, time.Time, time.Time, int) ([]*lesson.Lesson, error) {
	return nil, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Caches
// ─────────────────────────────────────────────────────────────────────────────

// jsonCache stores values as JSON, the way the Redis cache does.
type jsonCache struct {
	items map[string][]byte
	hits  int
	sets  int
}

func newJSONCache() *jsonCache { return &jsonCache{items: map[string][]byte{}} }

func (c *jsonCache) get(key string, dest any) error {
	raw, ok := c.items[key]
	if !ok {
		return errCacheMiss
	}
	c.hits++
	return json.Unmarshal(raw, dest)
}

func (c *jsonCache) set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.sets++
	c.items[key] = raw
	return nil
}

func (c *jsonCache) GetDashboard(_ context.Context, id int64, dest any) error {
	return c.get("dash:"+itoa(id), dest)
}

func (c *jsonCache) SetDashboard(_ context.Context, id int64, v any) error {
	return c.set("dash:"+itoa(id), v)
}

func (c *jsonCache) GetPanel(_ context.Context, panel string, dest any) error {
	return c.get("panel:"+panel, dest)
}

func (c *jsonCache) SetPanel(_ context.Context, panel string, v any) error {
	return c.set("panel:"+panel, v)
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

// ─────────────────────────────────────────────────────────────────────────────
// Analytics
// ─────────────────────────────────────────────────────────────────────────────

type stubAnalytics struct {
	overview     analytics.OverviewCounts
	overviewWin  analytics.OverviewWindow
	overviewHits int

	users      []analytics.UserRow
	lastFilter analytics.UserFilter
	lastCutoff time.Time

	levels    []analytics.LevelCount
	daily     []analytics.DailyCounts
	dailyFrom time.Time
	dailyTo   time.Time
	dailyHits int

	chars     []analytics.CharUsage
	retention analytics.RetentionCounts
}

func (s *stubAnalytics) Overview(_ context.Context, w analytics.OverviewWindow) (analytics.OverviewCounts, error) {
	s.overviewHits++
	s.overviewWin = w
	return s.overview, nil
}

func (s *stubAnalytics) ListUsers(_ context.Context, f analytics.UserFilter) ([]analytics.UserRow, error) {
	s.lastFilter = f
	return s.users, nil
}

func (s *stubAnalytics) ListInactiveSince(_ context.Context, cutoff time.Time) ([]analytics.UserRow, error) {
	s.lastCutoff = cutoff
	return s.users, nil
}

func (s *stubAnalytics) GetUser(_ context.Context, id int64) (analytics.UserRow, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return analytics.UserRow{}, student.ErrStudentNotFound
}

func (s *stubAnalytics) CountByLevel(context.Context) ([]analytics.LevelCount, error) {
	return s.levels, nil
}

func (s *stubAnalytics) Daily(_ context.Context, from, to time.Time, _ *time.Location) ([]analytics.DailyCounts, error) {
	s.dailyHits++
	s.dailyFrom, s.dailyTo = from, to
	return s.daily, nil
}

func (s *stubAnalytics) CharUsage(_ context.Context, limit int) ([]analytics.CharUsage, error) {
	if limit < len(s.chars) {
		return s.chars[:limit], nil
	}
	return s.chars, nil
}

func (s *stubAnalytics) Retention(context.Context, time.Time) (analytics.RetentionCounts, error) {
	return s.retention, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Builders
// ─────────────────────────────────────────────────────────────────────────────

func newTestStudent(cat *catalog.Catalog, id int64) *student.Student {
	s, err := student.NewStudent(student.Profile{TelegramID: 1000 + student.TelegramID(id), FirstName: "María"}, cat, testNow.AddDate(0, 0, -30))
	if err != nil {
		panic(err)
	}
	s.ID = id
	return s
}

func setScores(s *student.Student, scores map[catalog.SkillCode]int) {
	for code, v := range scores {
		s.Skills[code].Score = v
	}
}

func timeAt(t time.Time) *time.Time { return &t }
