package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/englishprofesor/tutor-bot/internal/domain/catalog"
	"github.com/englishprofesor/tutor-bot/internal/domain/student"
	"github.com/englishprofesor/tutor-bot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS & LEVEL HANDLERS
// Только чтение: эти команды не регистрируют ученика и не трогают streak.
// ══════════════════════════════════════════════════════════════════════════════

// ProgressHandler handles /progress.
type ProgressHandler struct {
	students    StudentFinder
	catalog     *catalog.Catalog
	out         Messenger
	frontendURL string
}

// NewProgressHandler creates a new ProgressHandler.
func NewProgressHandler(students StudentFinder, cat *catalog.Catalog, out Messenger, frontendURL string) *ProgressHandler {
	return &ProgressHandler{students: students, catalog: cat, out: out, frontendURL: frontendURL}
}

// Handle sends skill bars and a button to the web panel.
func (h *ProgressHandler) Handle(ctx context.Context, req Request) error {
	s, level, found, err := lookup(ctx, h.students, h.catalog, req)
	if err != nil || !found {
		return h.notFound(ctx, req, err)
	}

	kb := presenter.PanelKeyboard(presenter.PanelButtonFromProgress, h.frontendURL, int64(req.Profile.TelegramID))
	return h.out.SendMarkdown(ctx, req.ChatID, presenter.Progress(s, level, h.catalog), kb.Markup())
}

func (h *ProgressHandler) notFound(ctx context.Context, req Request, err error) error {
	if err != nil {
		return fmt.Errorf("progress: %w", err)
	}
	return h.out.SendText(ctx, req.ChatID, presenter.StudentNotFoundText)
}

// LevelHandler handles /level.
type LevelHandler struct {
	students StudentFinder
	catalog  *catalog.Catalog
	out      Messenger
}

// NewLevelHandler creates a new LevelHandler.
func NewLevelHandler(students StudentFinder, cat *catalog.Catalog, out Messenger) *LevelHandler {
	return &LevelHandler{students: students, catalog: cat, out: out}
}

// Handle describes the current level and what the next one takes.
func (h *LevelHandler) Handle(ctx context.Context, req Request) error {
	_, level, found, err := lookup(ctx, h.students, h.catalog, req)
	if err != nil {
		return fmt.Errorf("level: %w", err)
	}
	if !found {
		return h.out.SendText(ctx, req.ChatID, presenter.StudentNotFoundText)
	}

	var next *catalog.Level
	if n, ok := h.catalog.Next(level); ok {
		next = &n
	}
	return h.out.SendMarkdown(ctx, req.ChatID, presenter.LevelInfo(level, next), nil)
}

// lookup loads the caller and their level. found=false means not registered.
func lookup(ctx context.Context, students StudentFinder, cat *catalog.Catalog, req Request) (*student.Student, catalog.Level, bool, error) {
	s, err := students.GetByTelegramID(ctx, req.Profile.TelegramID)
	if errors.Is(err, student.ErrStudentNotFound) {
		return nil, catalog.Level{}, false, nil
	}
	if err != nil {
		return nil, catalog.Level{}, false, err
	}
	level, err := cat.LevelByID(s.CurrentLevelID)
	if err != nil {
		return nil, catalog.Level{}, false, err
	}
	return s, level, true, nil
}
