// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/englishprofesor/tutor-bot/internal/domain/catalog"
	"github.com/englishprofesor/tutor-bot/internal/domain/student"
	"github.com/englishprofesor/tutor-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESOLVE STUDENT COMMAND
// Находит ученика по Telegram ID или создаёт нового.
// Каждый вызов считается контактом: обновляет streak и last_activity.
// ══════════════════════════════════════════════════════════════════════════════

// ResolveStudentCommand contains the Telegram profile of the caller.
type ResolveStudentCommand struct {
	Profile student.Profile
}

// ResolveStudentResult is the resolved student.
type ResolveStudentResult struct {
	Student *student.Student

	// Created is true when this call registered the student.
	Created bool

	// StreakChanged is true when the contact moved the streak.
	StreakChanged bool
}

// ResolveStudentHandler handles ResolveStudentCommand.
type ResolveStudentHandler struct {
	students student.Repository
	catalog  *catalog.Catalog
	clock    timeutil.Clock
	logger   *slog.Logger
}

// NewResolveStudentHandler creates a new ResolveStudentHandler.
func NewResolveStudentHandler(
	students student.Repository,
	cat *catalog.Catalog,
	clock timeutil.Clock,
	logger *slog.Logger,
) *ResolveStudentHandler {
	return &ResolveStudentHandler{
		students: students,
		catalog:  cat,
		clock:    clock,
		logger:   logger.With("component", "resolve_student"),
	}
}

// Handle is idempotent: the same Telegram ID always maps to the same row.
func (h *ResolveStudentHandler) Handle(ctx context.Context, cmd ResolveStudentCommand) (*ResolveStudentResult, error) {
	if !cmd.Profile.TelegramID.IsValid() {
		return nil, student.ErrInvalidTelegramID
	}
	now := h.clock.Now()

	s, err := h.students.GetByTelegramID(ctx, cmd.Profile.TelegramID)
	switch {
	case err == nil:
		return h.touch(ctx, s)

	case errors.Is(err, student.ErrStudentNotFound):
		s, err = student.NewStudent(cmd.Profile, h.catalog, now)
		if err != nil {
			return nil, err
		}
		err = h.students.Create(ctx, s)
		if errors.Is(err, student.ErrStudentAlreadyExists) {
			// Параллельный запрос успел создать запись - перечитываем.
			existing, getErr := h.students.GetByTelegramID(ctx, cmd.Profile.TelegramID)
			if getErr != nil {
				return nil, fmt.Errorf("resolve_student: refetch after conflict: %w", getErr)
			}
			return h.touch(ctx, existing)
		}
		if err != nil {
			return nil, fmt.Errorf("resolve_student: create: %w", err)
		}

		h.logger.Info("student registered",
			"student_id", s.ID,
			"telegram_id", int64(s.TelegramID),
		)
		return &ResolveStudentResult{Student: s, Created: true, StreakChanged: true}, nil

	default:
		return nil, fmt.Errorf("resolve_student: lookup: %w", err)
	}
}

func (h *ResolveStudentHandler) touch(ctx context.Context, s *student.Student) (*ResolveStudentResult, error) {
	changed := s.RecordContact(h.clock.Now(), h.clock.Location())
	if err := h.students.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("resolve_student: save contact: %w", err)
	}
	if changed {
		h.logger.Debug("streak updated", "student_id", s.ID, "streak_days", s.StreakDays)
	}
	return &ResolveStudentResult{Student: s, StreakChanged: changed}, nil
}
