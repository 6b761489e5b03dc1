package handler

import (
	"context"
	"fmt"

	"github.com/englishprofesor/tutor-bot/internal/application/command"
	"github.com/englishprofesor/tutor-bot/internal/domain/catalog"
	"github.com/englishprofesor/tutor-bot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// START HANDLER
// /start регистрирует ученика (или засчитывает контакт) и приветствует его.
// ══════════════════════════════════════════════════════════════════════════════

// StartHandler handles /start.
type StartHandler struct {
	resolver StudentResolver
	catalog  *catalog.Catalog
	out      Messenger
}

// NewStartHandler creates a new StartHandler.
func NewStartHandler(resolver StudentResolver, cat *catalog.Catalog, out Messenger) *StartHandler {
	return &StartHandler{resolver: resolver, catalog: cat, out: out}
}

// Handle registers or welcomes back the caller.
func (h *StartHandler) Handle(ctx context.Context, req Request) error {
	res, err := h.resolver.Handle(ctx, command.ResolveStudentCommand{Profile: req.Profile})
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}

	level, err := h.catalog.LevelByID(res.Student.CurrentLevelID)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}

	text := presenter.WelcomeBack(res.Student, level)
	if res.Created {
		text = presenter.WelcomeNew(res.Student, level)
	}
	return h.out.SendMarkdown(ctx, req.ChatID, text, nil)
}
