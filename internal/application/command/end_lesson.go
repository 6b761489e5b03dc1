package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/englishprofesor/tutor-bot/internal/domain/catalog"
	"github.com/englishprofesor/tutor-bot/internal/domain/lesson"
	"github.com/englishprofesor/tutor-bot/internal/domain/student"
	"github.com/englishprofesor/tutor-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// END LESSON COMMAND
// Закрывает урок и начисляет ученику прогресс за практику.
// ══════════════════════════════════════════════════════════════════════════════

// EndLessonCommand selects the lesson to close.
type EndLessonCommand struct {
	// LessonID closes a specific lesson.
	LessonID int64

	// TelegramID closes the newest open lesson of this student (used by /end).
	TelegramID student.TelegramID
}

// Validate validates the command.
func (c EndLessonCommand) Validate() error {
	if c.LessonID <= 0 && !c.TelegramID.IsValid() {
		return errors.New("end_lesson: lesson_id or telegram_id is required")
	}
	return nil
}

// EndLessonResult describes the closed lesson.
type EndLessonResult struct {
	Lesson          *lesson.Lesson
	Student         *student.Student
	DurationMinutes int
	Practiced       []catalog.SkillCode

	// AlreadyEnded is true when the lesson was closed before this call.
	AlreadyEnded bool
}

// EndLessonHandler handles EndLessonCommand.
type EndLessonHandler struct {
	students   student.Repository
	lessons    lesson.Repository
	dashboards DashboardInvalidator
	clock      timeutil.Clock
	logger     *slog.Logger
}

// NewEndLessonHandler creates a new EndLessonHandler.
func NewEndLessonHandler(
	students student.Repository,
	lessons lesson.Repository,
	dashboards DashboardInvalidator,
	clock timeutil.Clock,
	logger *slog.Logger,
) *EndLessonHandler {
	return &EndLessonHandler{
		students:   students,
		lessons:    lessons,
		dashboards: dashboards,
		clock:      clock,
		logger:     logger.With("component", "end_lesson"),
	}
}

// Handle closes the lesson. Closing an ended lesson is a no-op.
func (h *EndLessonHandler) Handle(ctx context.Context, cmd EndLessonCommand) (*EndLessonResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var (
		s   *student.Student
		l   *lesson.Lesson
		err error
	)
	if cmd.LessonID > 0 {
		if l, err = h.lessons.GetByID(ctx, cmd.LessonID); err != nil {
			return nil, err
		}
		if s, err = h.students.GetByID(ctx, l.StudentID); err != nil {
			return nil, err
		}
	} else {
		if s, err = h.students.GetByTelegramID(ctx, cmd.TelegramID); err != nil {
			return nil, err
		}
		if l, err = h.lessons.FindOpen(ctx, s.ID); err != nil {
			return nil, err
		}
	}

	return h.end(ctx, s, l, h.clock.Now())
}

func (h *EndLessonHandler) end(ctx context.Context, s *student.Student, l *lesson.Lesson, now time.Time) (*EndLessonResult, error) {
	if !l.IsOpen() {
		return &EndLessonResult{
			Lesson:          l,
			Student:         s,
			DurationMinutes: l.DurationMinutes,
			Practiced:       l.SkillsPracticed,
			AlreadyEnded:    true,
		}, nil
	}

	duration := l.End(now)
	if err := h.lessons.Save(ctx, l); err != nil {
		return nil, fmt.Errorf("end_lesson: save lesson: %w", err)
	}

	s.RecordPractice(l.SkillsPracticed, duration, now)
	if err := h.students.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("end_lesson: save student: %w", err)
	}

	if h.dashboards != nil {
		_ = h.dashboards.InvalidateDashboard(ctx, s.ID)
	}

	h.logger.Info("lesson ended",
		"lesson_id", l.ID,
		"student_id", s.ID,
		"duration_minutes", duration,
		"messages", l.MessagesCount,
		"skills_practiced", len(l.SkillsPracticed),
	)

	return &EndLessonResult{
		Lesson:          l,
		Student:         s,
		DurationMinutes: duration,
		Practiced:       l.SkillsPracticed,
	}, nil
}
