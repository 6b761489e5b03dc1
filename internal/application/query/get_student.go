package query

import (
	"context"
	"time"

	"github.com/englishprofesor/tutor-bot/internal/domain/catalog"
	"github.com/englishprofesor/tutor-bot/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT PROFILE / LEVELS
// ══════════════════════════════════════════════════════════════════════════════

// LevelDTO is a level as shown to clients.
type LevelDTO struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Order       int    `json:"order"`
}

// SkillDTO is a skill as shown to clients.
type SkillDTO struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// StudentDTO is the public profile of a student.
type StudentDTO struct {
	ID           int64     `json:"id"`
	TelegramID   int64     `json:"telegram_id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name,omitempty"`
	Username     string    `json:"username,omitempty"`
	CurrentLevel LevelDTO  `json:"current_level"`
	TotalLessons int       `json:"total_lessons"`
	TotalMinutes int       `json:"total_minutes"`
	StreakDays   int       `json:"streak_days"`
	RegisteredAt time.Time `json:"registered_at"`
	LastActivity time.Time `json:"last_activity"`
}

func toLevelDTO(l catalog.Level) LevelDTO {
	return LevelDTO{ID: l.ID, Code: string(l.Code), Name: l.Name, Description: l.Description, Order: l.Order}
}

func toSkillDTO(s catalog.Skill) SkillDTO {
	return SkillDTO{ID: s.ID, Code: string(s.Code), Name: s.Name, Icon: s.Icon}
}

func toStudentDTO(s *student.Student, level catalog.Level) StudentDTO {
	return StudentDTO{
		ID:           s.ID,
		TelegramID:   int64(s.TelegramID),
		FirstName:    s.FirstName,
		LastName:     s.LastName,
		Username:     s.Username,
		CurrentLevel: toLevelDTO(level),
		TotalLessons: s.TotalLessons,
		TotalMinutes: s.TotalMinutes,
		StreakDays:   s.StreakDays,
		RegisteredAt: s.RegisteredAt,
		LastActivity: s.LastActivity,
	}
}

// GetStudentHandler returns the profile of the authenticated student.
type GetStudentHandler struct {
	students student.Repository
	catalog  *catalog.Catalog
}

// NewGetStudentHandler creates a new GetStudentHandler.
func NewGetStudentHandler(students student.Repository, cat *catalog.Catalog) *GetStudentHandler {
	return &GetStudentHandler{students: students, catalog: cat}
}

// Handle returns student.ErrStudentNotFound for unknown ids.
func (h *GetStudentHandler) Handle(ctx context.Context, studentID int64) (*StudentDTO, error) {
	s, err := h.students.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	level, err := h.catalog.LevelByID(s.CurrentLevelID)
	if err != nil {
		return nil, err
	}
	dto := toStudentDTO(s, level)
	return &dto, nil
}

// ListLevels returns the whole ladder, lowest first.
func ListLevels(cat *catalog.Catalog) []LevelDTO {
	levels := cat.Levels()
	out := make([]LevelDTO, 0, len(levels))
	for _, l := range levels {
		out = append(out, toLevelDTO(l))
	}
	return out
}
