package student

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/englishprofesor/tutor-bot/internal/domain/catalog"
)

var testNow = time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)

func newTestStudent(t *testing.T) (*Student, *catalog.Catalog) {
	t.Helper()
	cat := catalog.Default()
	s, err := NewStudent(Profile{TelegramID: 42, FirstName: "Ana", LastName: "López"}, cat, testNow)
	require.NoError(t, err)
	return s, cat
}

func TestNewStudent_Defaults(t *testing.T) {
	s, cat := newTestStudent(t)

	assert.Equal(t, cat.Lowest().ID, s.CurrentLevelID)
	assert.Len(t, s.Skills, 6)
	for code, sp := range s.Skills {
		assert.Equal(t, code, sp.Code)
		assert.Zero(t, sp.Score)
		assert.Equal(t, cat.Lowest().ID, sp.LevelID)
	}
	assert.Equal(t, 1, s.StreakDays)
	assert.Equal(t, "es", s.LanguageCode)
	assert.Equal(t, "Ana López", s.FullName())
}

func TestNewStudent_InvalidTelegramID(t *testing.T) {
	_, err := NewStudent(Profile{TelegramID: 0}, catalog.Default(), testNow)
	assert.ErrorIs(t, err, ErrInvalidTelegramID)
}

func TestRecordContact_Streak(t *testing.T) {
	tests := []struct {
		name       string
		last       *time.Time
		streak     int
		wantStreak int
		wantChange bool
	}{
		{"no prior date", nil, 0, 1, true},
		{"same day", timePtr(testNow.Add(-2 * time.Hour)), 4, 4, false},
		{"yesterday", timePtr(testNow.AddDate(0, 0, -1)), 4, 5, true},
		{"three days ago", timePtr(testNow.AddDate(0, 0, -3)), 9, 1, true},
		{"clock skew", timePtr(testNow.AddDate(0, 0, 1)), 3, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStudent(t)
			s.LastStreakDate = tt.last
			s.StreakDays = tt.streak

			changed := s.RecordContact(testNow, time.UTC)

			assert.Equal(t, tt.wantStreak, s.StreakDays)
			assert.Equal(t, tt.wantChange, changed)
			assert.Equal(t, testNow, s.LastActivity)
			if changed {
				require.NotNil(t, s.LastStreakDate)
				assert.Equal(t, testNow, *s.LastStreakDate)
			}
		})
	}
}

func TestRecordContact_SecondContactSameDayIsIdempotent(t *testing.T) {
	s, _ := newTestStudent(t)
	s.LastStreakDate = timePtr(testNow.AddDate(0, 0, -1))
	s.StreakDays = 2

	s.RecordContact(testNow, time.UTC)
	s.RecordContact(testNow.Add(3*time.Hour), time.UTC)

	assert.Equal(t, 3, s.StreakDays)
}

func TestSmoothScore(t *testing.T) {
	tests := []struct {
		old   int
		score float64
		want  int
	}{
		{50, 80, 59},
		{0, 0, 0},
		{100, 100, 100},
		{0, 100, 30},
		{100, 0, 70},
		// дробная оценка не округляется до сглаживания
		{0, 6.5, 1},
		{50, 80.9, 59},
		{10, 3.4, 8},
		// выход за диапазон обрезается
		{0, 250, 30},
		{40, -10, 28},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SmoothScore(tt.old, tt.score), "old=%d score=%v", tt.old, tt.score)
	}
	assert.Equal(t, 42, SmoothScore(42, math.NaN()))
}

func TestApplyScores_OnlyTouchesScoredSkills(t *testing.T) {
	s, _ := newTestStudent(t)
	s.Skills[catalog.SkillVocabulary].Score = 50
	s.Skills[catalog.SkillReading].Score = 40

	updated := s.ApplyScores(map[catalog.SkillCode]float64{
		catalog.SkillVocabulary: 80,
		"UNKNOWN":               90,
	}, testNow)

	assert.Equal(t, []catalog.SkillCode{catalog.SkillVocabulary}, updated)
	assert.Equal(t, 59, s.Skills[catalog.SkillVocabulary].Score)
	assert.Equal(t, 40, s.Skills[catalog.SkillReading].Score)
}

func setAll(s *Student, score, lessons int) {
	for _, sp := range s.Skills {
		sp.Score = score
		sp.LessonsCompleted = lessons
	}
}

func TestTryLevelUp_Promotes(t *testing.T) {
	s, cat := newTestStudent(t)
	setAll(s, 76, 10)

	lvl, err := s.TryLevelUp(cat, testNow)

	require.NoError(t, err)
	require.NotNil(t, lvl)
	assert.Equal(t, catalog.LevelA1, lvl.Code)
	assert.Equal(t, lvl.ID, s.CurrentLevelID)
	for _, sp := range s.Skills {
		assert.Equal(t, 56, sp.Score)
		assert.Equal(t, lvl.ID, sp.LevelID)
	}
	assert.Zero(t, s.LessonsAtLevel(), "counters stay on the old level")
}

func TestTryLevelUp_PenaltyFloorsAtZero(t *testing.T) {
	s, cat := newTestStudent(t)
	setAll(s, 100, 10)
	s.Skills[catalog.SkillWriting].Score = 10 // avg still >= 75

	_, err := s.TryLevelUp(cat, testNow)
	require.NoError(t, err)

	assert.Equal(t, 0, s.Skills[catalog.SkillWriting].Score)
	assert.Equal(t, 80, s.Skills[catalog.SkillGrammar].Score)
}

func TestTryLevelUp_BelowThresholds(t *testing.T) {
	s, cat := newTestStudent(t)

	setAll(s, 74, 10)
	lvl, err := s.TryLevelUp(cat, testNow)
	require.NoError(t, err)
	assert.Nil(t, lvl)

	setAll(s, 90, 9)
	lvl, err = s.TryLevelUp(cat, testNow)
	require.NoError(t, err)
	assert.Nil(t, lvl)
	assert.Equal(t, cat.Lowest().ID, s.CurrentLevelID)
}

func TestTryLevelUp_Ceiling(t *testing.T) {
	s, cat := newTestStudent(t)
	top, err := cat.LevelByCode(catalog.LevelC1)
	require.NoError(t, err)
	s.CurrentLevelID = top.ID
	for _, sp := range s.Skills {
		sp.LevelID = top.ID
	}
	setAll(s, 100, 50)

	lvl, err := s.TryLevelUp(cat, testNow)

	require.NoError(t, err)
	assert.Nil(t, lvl)
	assert.Equal(t, top.ID, s.CurrentLevelID)
	assert.Equal(t, 100, s.Skills[catalog.SkillSpeaking].Score)
}

func TestLessonsAtLevel_IntegerDivision(t *testing.T) {
	s, _ := newTestStudent(t)
	// 3 skills with 20 lessons at the current level: 60 / 6 = 10.
	s.Skills[catalog.SkillSpeaking].LessonsCompleted = 20
	s.Skills[catalog.SkillGrammar].LessonsCompleted = 20
	s.Skills[catalog.SkillVocabulary].LessonsCompleted = 20
	assert.Equal(t, 10, s.LessonsAtLevel())

	// Skills still tagged with another level are ignored.
	s.Skills[catalog.SkillVocabulary].LevelID = 999
	assert.Equal(t, 6, s.LessonsAtLevel())
}

func TestRecordPractice(t *testing.T) {
	s, _ := newTestStudent(t)
	s.Skills[catalog.SkillGrammar].Score = 99

	s.RecordPractice([]catalog.SkillCode{catalog.SkillGrammar, catalog.SkillSpeaking, catalog.SkillGrammar}, 12, testNow)

	assert.Equal(t, 1, s.TotalLessons)
	assert.Equal(t, 12, s.TotalMinutes)
	g := s.Skills[catalog.SkillGrammar]
	assert.Equal(t, 100, g.Score)
	assert.Equal(t, 1, g.LessonsCompleted)
	require.NotNil(t, g.LastPracticed)
	assert.Equal(t, 2, s.Skills[catalog.SkillSpeaking].Score)
	assert.Zero(t, s.Skills[catalog.SkillReading].LessonsCompleted)
}

func TestLevelProgressPercent(t *testing.T) {
	assert.Equal(t, 100, LevelProgressPercent(75, 10))
	assert.Equal(t, 100, LevelProgressPercent(100, 40))
	assert.Equal(t, 0, LevelProgressPercent(0, 0))
	// 37.5/75 -> 50 * 0.7 = 35; 5/10 -> 50 * 0.3 = 15
	assert.Equal(t, 50, LevelProgressPercent(37.5, 5))
}

func TestAverageScore_NoSkills(t *testing.T) {
	s := &Student{}
	_, ok := s.AverageScore()
	assert.False(t, ok)
	assert.False(t, s.CanLevelUp())
}
