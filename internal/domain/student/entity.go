package student

import (
	"strings"
	"time"

	"github.com/englishprofesor/tutor-bot/internal/domain/catalog"
	"github.com/englishprofesor/tutor-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// TelegramID - внешний идентификатор пользователя Telegram.
type TelegramID int64

// IsValid проверяет, что TelegramID положительный.
func (t TelegramID) IsValid() bool {
	return t > 0
}

// DefaultLanguageCode - родной язык целевой аудитории.
const DefaultLanguageCode = "es"

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrStudentNotFound      = shared.NewDomainError("student", "Find", shared.ErrNotFound, "student not found")
	ErrStudentAlreadyExists = shared.NewDomainError("student", "Create", shared.ErrAlreadyExists, "student already exists")
	ErrInvalidTelegramID    = shared.NewDomainError("student", "Validate", shared.ErrInvalidInput, "invalid Telegram ID")
	ErrNoSkills             = shared.NewDomainError("student", "Progress", shared.ErrInvalidState, "student has no skill rows")
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// SkillProgress - прогресс ученика по одному навыку.
// Ровно одна запись на пару (student, skill).
type SkillProgress struct {
	ID               int64
	SkillID          int64
	Code             catalog.SkillCode
	LevelID          int64 // двигается вместе с уровнем ученика
	Score            int   // 0..100
	LessonsCompleted int
	LastPracticed    *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Student - агрегат ученика.
type Student struct {
	ID           int64
	TelegramID   TelegramID
	FirstName    string
	LastName     string
	Username     string
	LanguageCode string

	CurrentLevelID int64
	TotalLessons   int
	TotalMinutes   int
	StreakDays     int
	LastStreakDate *time.Time

	RegisteredAt time.Time
	LastActivity time.Time

	// Skills индексированы по коду навыка.
	Skills map[catalog.SkillCode]*SkillProgress
}

// Profile - данные профиля, приходящие из Telegram.
type Profile struct {
	TelegramID   TelegramID
	FirstName    string
	LastName     string
	Username     string
	LanguageCode string
}

// NewStudent создаёт ученика на самом низком уровне с нулевыми навыками.
// Первый контакт сразу открывает streak в 1 день.
func NewStudent(p Profile, cat *catalog.Catalog, now time.Time) (*Student, error) {
	if !p.TelegramID.IsValid() {
		return nil, ErrInvalidTelegramID
	}

	lang := p.LanguageCode
	if lang == "" {
		lang = DefaultLanguageCode
	}

	lowest := cat.Lowest()
	s := &Student{
		TelegramID:     p.TelegramID,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Username:       p.Username,
		LanguageCode:   lang,
		CurrentLevelID: lowest.ID,
		StreakDays:     1,
		LastStreakDate: timePtr(now),
		RegisteredAt:   now,
		LastActivity:   now,
		Skills:         make(map[catalog.SkillCode]*SkillProgress, cat.SkillCount()),
	}

	for _, sk := range cat.Skills() {
		s.Skills[sk.Code] = &SkillProgress{
			SkillID:   sk.ID,
			Code:      sk.Code,
			LevelID:   lowest.ID,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	return s, nil
}

// FullName возвращает "Имя Фамилия" без лишних пробелов.
func (s *Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// DisplayName - имя для обращения в чате.
func (s *Student) DisplayName() string {
	if s.FirstName != "" {
		return s.FirstName
	}
	if s.Username != "" {
		return s.Username
	}
	return "Estudiante"
}

// Skill возвращает прогресс по коду навыка.
func (s *Student) Skill(code catalog.SkillCode) (*SkillProgress, bool) {
	sp, ok := s.Skills[code]
	return sp, ok
}

func timePtr(t time.Time) *time.Time {
	return &t
}
