package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/englishprofesor/tutor-bot/internal/domain/lesson"
	"github.com/englishprofesor/tutor-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLOSE STALE LESSONS COMMAND
// Фоновая задача: закрывает уроки без активности и уроки прошлых дней.
// ══════════════════════════════════════════════════════════════════════════════

// CloseStaleLessonsCommand configures one sweep.
type CloseStaleLessonsCommand struct {
	// IdleTimeout closes lessons without messages for this long.
	IdleTimeout time.Duration

	// BatchSize bounds one sweep (default 200).
	BatchSize int
}

// CloseStaleLessonsResult reports the sweep.
type CloseStaleLessonsResult struct {
	Found  int
	Closed int
	Failed int
}

// CloseStaleLessonsHandler handles CloseStaleLessonsCommand.
type CloseStaleLessonsHandler struct {
	lessons lesson.Repository
	ender   *EndLessonHandler
	clock   timeutil.Clock
	logger  *slog.Logger
}

// NewCloseStaleLessonsHandler creates a new CloseStaleLessonsHandler.
func NewCloseStaleLessonsHandler(
	lessons lesson.Repository,
	ender *EndLessonHandler,
	clock timeutil.Clock,
	logger *slog.Logger,
) *CloseStaleLessonsHandler {
	return &CloseStaleLessonsHandler{
		lessons: lessons,
		ender:   ender,
		clock:   clock,
		logger:  logger.With("component", "close_stale_lessons"),
	}
}

// Handle closes every stale lesson found. One failure does not stop the sweep.
func (h *CloseStaleLessonsHandler) Handle(ctx context.Context, cmd CloseStaleLessonsCommand) (*CloseStaleLessonsResult, error) {
	if cmd.IdleTimeout <= 0 {
		cmd.IdleTimeout = 3 * time.Hour
	}
	if cmd.BatchSize <= 0 {
		cmd.BatchSize = 200
	}

	now := h.clock.Now()
	dayStart := timeutil.StartOfDay(now, h.clock.Location())

	stale, err := h.lessons.ListStale(ctx, now.Add(-cmd.IdleTimeout), dayStart, cmd.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("close_stale_lessons: %w", err)
	}

	result := &CloseStaleLessonsResult{Found: len(stale)}
	for _, l := range stale {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		s, err := h.ender.students.GetByID(ctx, l.StudentID)
		if err == nil {
			_, err = h.ender.end(ctx, s, l, now)
		}
		if err != nil {
			result.Failed++
			h.logger.Warn("failed to close stale lesson", "lesson_id", l.ID, "error", err)
			continue
		}
		result.Closed++
	}

	if result.Found > 0 {
		h.logger.Info("stale lessons closed", "found", result.Found, "closed", result.Closed, "failed", result.Failed)
	}
	return result, nil
}
