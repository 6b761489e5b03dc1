package student

import (
	"math"
	"time"

	"github.com/englishprofesor/tutor-bot/internal/domain/catalog"
	"github.com/englishprofesor/tutor-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS RULES
// ══════════════════════════════════════════════════════════════════════════════

const (
	// MaxScore - верхняя граница балла навыка.
	MaxScore = 100

	// LevelUpMinScore - минимальный средний балл для повышения.
	LevelUpMinScore = 75
	// LevelUpMinLessons - минимум уроков на текущем уровне.
	LevelUpMinLessons = 10
	// LevelUpPenalty - на сколько снижаются баллы после повышения.
	LevelUpPenalty = 20

	// PracticeBonus - прибавка к баллу за практику навыка в закрытом уроке.
	PracticeBonus = 2

	// Веса в процентах: new = floor(old*0.7 + score*0.3).
	smoothingOldWeight = 70
	smoothingNewWeight = 30
)

// ─────────────────────────────────────────────────────────────────────────────
// Streak
// ─────────────────────────────────────────────────────────────────────────────

// RecordContact обновляет streak и last_activity. Вызывается на каждый контакт.
// Дни считаются по календарю в loc.
//
//	Δ == 0 : без изменений
//	Δ == 1 : streak += 1
//	Δ > 1  : streak = 1
//	Δ < 0  : без изменений (сдвиг часов, дату назад не переносим)
//
// Возвращает true, если streak изменился.
func (s *Student) RecordContact(now time.Time, loc *time.Location) bool {
	s.LastActivity = now

	if s.LastStreakDate == nil {
		s.StreakDays = 1
		s.LastStreakDate = timePtr(now)
		return true
	}

	switch delta := timeutil.DaysBetween(*s.LastStreakDate, now, loc); {
	case delta == 1:
		s.StreakDays++
	case delta > 1:
		s.StreakDays = 1
	default:
		return false
	}

	s.LastStreakDate = timePtr(now)
	return true
}

// ─────────────────────────────────────────────────────────────────────────────
// Scores
// ─────────────────────────────────────────────────────────────────────────────

// SmoothScore применяет экспоненциальное сглаживание: floor(old*0.7 + score*0.3).
// Оценка может быть дробной; округления до сглаживания нет.
// Считаем в процентах (old*70 + score*30)/100, чтобы целые входы давали точный результат.
func SmoothScore(old int, score float64) int {
	if math.IsNaN(score) {
		return clampScore(old)
	}
	score = math.Max(0, math.Min(100, score))
	v := (float64(clampScore(old)*smoothingOldWeight) + score*smoothingNewWeight) / 100
	return clampScore(int(math.Floor(v)))
}

// ApplyScores обновляет навыки, для которых пришла оценка.
// Навыки без оценки и неизвестные коды не трогаются.
// Возвращает коды обновлённых навыков.
func (s *Student) ApplyScores(scores map[catalog.SkillCode]float64, now time.Time) []catalog.SkillCode {
	updated := make([]catalog.SkillCode, 0, len(scores))
	for code, score := range scores {
		sp, ok := s.Skills[code]
		if !ok {
			continue
		}
		sp.Score = SmoothScore(sp.Score, score)
		sp.UpdatedAt = now
		updated = append(updated, code)
	}
	return updated
}

// RecordPractice фиксирует закрытый урок: счётчики ученика и навыков,
// плюс небольшой бонус к баллу за каждый практикованный навык.
func (s *Student) RecordPractice(practiced []catalog.SkillCode, durationMinutes int, now time.Time) {
	s.TotalLessons++
	if durationMinutes > 0 {
		s.TotalMinutes += durationMinutes
	}

	seen := make(map[catalog.SkillCode]struct{}, len(practiced))
	for _, code := range practiced {
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}

		sp, ok := s.Skills[code]
		if !ok {
			continue
		}
		sp.LessonsCompleted++
		sp.LastPracticed = timePtr(now)
		sp.Score = min(MaxScore, sp.Score+PracticeBonus)
		sp.UpdatedAt = now
	}
}

// AverageScore - средний балл по всем навыкам. ok=false, если навыков нет.
func (s *Student) AverageScore() (avg float64, ok bool) {
	if len(s.Skills) == 0 {
		return 0, false
	}
	total := 0
	for _, sp := range s.Skills {
		total += sp.Score
	}
	return float64(total) / float64(len(s.Skills)), true
}

// LessonsAtLevel - приближённое число уроков на текущем уровне:
// сумма lessons_completed навыков текущего уровня, делённая нацело на число навыков.
func (s *Student) LessonsAtLevel() int {
	if len(s.Skills) == 0 {
		return 0
	}
	total := 0
	for _, sp := range s.Skills {
		if sp.LevelID == s.CurrentLevelID {
			total += sp.LessonsCompleted
		}
	}
	return total / len(s.Skills)
}

// ─────────────────────────────────────────────────────────────────────────────
// Level up
// ─────────────────────────────────────────────────────────────────────────────

// CanLevelUp проверяет пороги без учёта потолка лестницы.
func (s *Student) CanLevelUp() bool {
	avg, ok := s.AverageScore()
	return ok && avg >= LevelUpMinScore && s.LessonsAtLevel() >= LevelUpMinLessons
}

// TryLevelUp повышает уровень, если пороги пройдены и следующий уровень есть.
// Возвращает новый уровень или nil. На потолке ничего не делает.
func (s *Student) TryLevelUp(cat *catalog.Catalog, now time.Time) (*catalog.Level, error) {
	if !s.CanLevelUp() {
		return nil, nil
	}

	current, err := cat.LevelByID(s.CurrentLevelID)
	if err != nil {
		return nil, err
	}

	next, ok := cat.Next(current)
	if !ok {
		return nil, nil
	}

	s.CurrentLevelID = next.ID
	for _, sp := range s.Skills {
		sp.LevelID = next.ID
		sp.Score = max(0, sp.Score-LevelUpPenalty)
		sp.UpdatedAt = now
	}

	return &next, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Dashboard
// ─────────────────────────────────────────────────────────────────────────────

// LevelProgressPercent - прогресс к следующему уровню, 0..100.
// 70% вес у среднего балла, 30% у количества уроков.
func LevelProgressPercent(avgScore float64, lessonsAtLevel int) int {
	scoreProgress := math.Min(100, avgScore/LevelUpMinScore*100)
	lessonProgress := math.Min(100, float64(lessonsAtLevel)/LevelUpMinLessons*100)
	return int(math.Round(scoreProgress*0.7 + lessonProgress*0.3))
}

func clampScore(v int) int {
	return max(0, min(MaxScore, v))
}
