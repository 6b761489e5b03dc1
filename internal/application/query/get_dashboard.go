package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/englishprofesor/tutor-bot/internal/domain/catalog"
	"github.com/englishprofesor/tutor-bot/internal/domain/lesson"
	"github.com/englishprofesor/tutor-bot/internal/domain/student"
	"github.com/englishprofesor/tutor-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DASHBOARD QUERY
// Сводка для веб-панели: навыки, уроки за неделю, прогресс к следующему уровню,
// рекомендации.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// RecentLessonsWindow - окно для счётчика "уроков за неделю".
	RecentLessonsWindow = 7 * 24 * time.Hour

	// MaxRecommendations - сколько советов показываем.
	MaxRecommendations = 4
)

// SkillProgressDTO is one skill row of the dashboard.
type SkillProgressDTO struct {
	Skill            SkillDTO   `json:"skill"`
	Level            LevelDTO   `json:"level"`
	Score            int        `json:"score"`
	LessonsCompleted int        `json:"lessons_completed"`
	LastPracticed    *time.Time `json:"last_practiced"`
}

// DashboardDTO is the full dashboard.
type DashboardDTO struct {
	Student            StudentDTO         `json:"student"`
	SkillsProgress     []SkillProgressDTO `json:"skills_progress"`
	RecentLessonsCount int                `json:"recent_lessons_count"`
	NextLevel          *LevelDTO          `json:"next_level"`

	// LevelProgressPercent is nil when InsufficientData is set.
	LevelProgressPercent *int     `json:"level_progress_percent"`
	InsufficientData     bool     `json:"insufficient_data"`
	Recommendations      []string `json:"recommendations"`
}

// GetDashboardHandler builds dashboards.
type GetDashboardHandler struct {
	students student.Repository
	lessons  lesson.Repository
	catalog  *catalog.Catalog
	cache    DashboardCache // optional
	clock    timeutil.Clock
	logger   *slog.Logger
}

// NewGetDashboardHandler creates a new GetDashboardHandler.
func NewGetDashboardHandler(
	students student.Repository,
	lessons lesson.Repository,
	cat *catalog.Catalog,
	cache DashboardCache,
	clock timeutil.Clock,
	logger *slog.Logger,
) *GetDashboardHandler {
	return &GetDashboardHandler{
		students: students,
		lessons:  lessons,
		catalog:  cat,
		cache:    cache,
		clock:    clock,
		logger:   logger.With("component", "get_dashboard"),
	}
}

// Handle returns the dashboard of a student.
func (h *GetDashboardHandler) Handle(ctx context.Context, studentID int64) (*DashboardDTO, error) {
	if h.cache != nil {
		var cached DashboardDTO
		if err := h.cache.GetDashboard(ctx, studentID, &cached); err == nil {
			return &cached, nil
		}
	}

	s, err := h.students.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	current, err := h.catalog.LevelByID(s.CurrentLevelID)
	if err != nil {
		return nil, fmt.Errorf("get_dashboard: current level: %w", err)
	}

	var (
		recent         int
		lessonsAtLevel int
		now            = h.clock.Now()
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := h.lessons.CountSince(gctx, s.ID, now.Add(-RecentLessonsWindow))
		if err != nil {
			return fmt.Errorf("recent lessons: %w", err)
		}
		recent = n
		return nil
	})
	g.Go(func() error {
		n, err := h.lessons.CountEndedAtLevel(gctx, s.ID, s.CurrentLevelID)
		if err != nil {
			return fmt.Errorf("lessons at level: %w", err)
		}
		lessonsAtLevel = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("get_dashboard: %w", err)
	}

	dto := &DashboardDTO{
		Student:            toStudentDTO(s, current),
		SkillsProgress:     h.skillsProgress(s),
		RecentLessonsCount: recent,
	}
	if next, ok := h.catalog.Next(current); ok {
		nl := toLevelDTO(next)
		dto.NextLevel = &nl
	}

	avg, ok := s.AverageScore()
	if ok {
		pct := student.LevelProgressPercent(avg, lessonsAtLevel)
		dto.LevelProgressPercent = &pct
	} else {
		dto.InsufficientData = true
	}
	dto.Recommendations = Recommendations(s.StreakDays, current.Code, dto.SkillsProgress, avg)

	if h.cache != nil {
		if err := h.cache.SetDashboard(ctx, studentID, dto); err != nil {
			h.logger.Debug("dashboard cache write failed", "student_id", studentID, "error", err)
		}
	}
	return dto, nil
}

// skillsProgress lists skills in catalog order.
func (h *GetDashboardHandler) skillsProgress(s *student.Student) []SkillProgressDTO {
	out := make([]SkillProgressDTO, 0, len(s.Skills))
	for _, sk := range h.catalog.Skills() {
		sp, ok := s.Skill(sk.Code)
		if !ok {
			continue
		}
		lvl, err := h.catalog.LevelByID(sp.LevelID)
		if err != nil {
			lvl, _ = h.catalog.LevelByID(s.CurrentLevelID)
		}
		out = append(out, SkillProgressDTO{
			Skill:            toSkillDTO(sk),
			Level:            toLevelDTO(lvl),
			Score:            sp.Score,
			LessonsCompleted: sp.LessonsCompleted,
			LastPracticed:    sp.LastPracticed,
		})
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Recommendations
// ─────────────────────────────────────────────────────────────────────────────

// Recommendations returns up to four tips: weakest skill, streak, level, and
// closeness to the next level.
func Recommendations(streakDays int, level catalog.LevelCode, skills []SkillProgressDTO, avgScore float64) []string {
	out := make([]string, 0, 4)

	if len(skills) > 0 {
		weakest := skills[0]
		for _, sp := range skills[1:] {
			if sp.Score < weakest.Score {
				weakest = sp
			}
		}
		if weakest.Score < 50 {
			out = append(out, fmt.Sprintf(
				"💪 Enfócate en mejorar tu %s. Practica más ejercicios de esta habilidad.", weakest.Skill.Name))
		}
	}

	switch {
	case streakDays < 3:
		out = append(out, "🔥 ¡Mantén tu racha! Practica al menos una vez al día para mejores resultados.")
	case streakDays >= 7:
		out = append(out, fmt.Sprintf("🌟 ¡Excelente! Llevas %d días seguidos. ¡Sigue así!", streakDays))
	}

	switch level {
	case catalog.LevelPreA1:
		out = append(out, "📚 Enfócate en aprender vocabulario básico y saludos. Practica pronunciación con audios.")
	case catalog.LevelA1:
		out = append(out, "📝 Comienza a formar oraciones simples. Practica: 'I am...', 'You are...'")
	case catalog.LevelA2, catalog.LevelB1:
		out = append(out, "🗣️ Es momento de practicar más conversaciones. Intenta enviar más notas de voz.")
	case catalog.LevelB2, catalog.LevelC1:
		out = append(out, "📖 Lee textos más complejos y practica expresar opiniones sobre temas variados.")
	}

	if avgScore >= 70 {
		out = append(out, "🚀 ¡Estás cerca de subir de nivel! Sigue practicando para alcanzar 75% de puntuación.")
	}

	if len(out) > MaxRecommendations {
		out = out[:MaxRecommendations]
	}
	return out
}
