package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/englishprofesor/tutor-bot/internal/application/command"
	"github.com/englishprofesor/tutor-bot/internal/domain/catalog"
	"github.com/englishprofesor/tutor-bot/internal/domain/lesson"
	"github.com/englishprofesor/tutor-bot/internal/domain/student"
	"github.com/englishprofesor/tutor-bot/internal/interface/telegram/presenter"
)

// EndHandler handles /end: closes the open lesson of the caller.
type EndHandler struct {
	lessons LessonEnder
	catalog *catalog.Catalog
	out     Messenger
}

// NewEndHandler creates a new EndHandler.
func NewEndHandler(lessons LessonEnder, cat *catalog.Catalog, out Messenger) *EndHandler {
	return &EndHandler{lessons: lessons, catalog: cat, out: out}
}

func (h *EndHandler) Handle(ctx context.Context, req Request) error {
	res, err := h.lessons.Handle(ctx, command.EndLessonCommand{TelegramID: req.Profile.TelegramID})
	switch {
	case errors.Is(err, lesson.ErrNoOpenLesson), errors.Is(err, student.ErrStudentNotFound):
		return h.out.SendText(ctx, req.ChatID, presenter.NoOpenLessonText)
	case err != nil:
		return fmt.Errorf("end: %w", err)
	}

	names := make([]string, 0, len(res.Practiced))
	for _, code := range res.Practiced {
		if sk, err := h.catalog.SkillByCode(code); err == nil {
			names = append(names, sk.Name)
		}
	}

	text := presenter.LessonEnded(res.DurationMinutes, res.Lesson.MessagesCount, res.Student.TotalLessons, names)
	return h.out.SendMarkdown(ctx, req.ChatID, text, nil)
}
