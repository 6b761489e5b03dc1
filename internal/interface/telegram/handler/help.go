package handler

import (
	"context"

	"github.com/englishprofesor/tutor-bot/internal/interface/telegram/presenter"
)

// HelpHandler handles /help.
type HelpHandler struct {
	out Messenger
}

// NewHelpHandler creates a new HelpHandler.
func NewHelpHandler(out Messenger) *HelpHandler {
	return &HelpHandler{out: out}
}

func (h *HelpHandler) Handle(ctx context.Context, req Request) error {
	return h.out.SendMarkdown(ctx, req.ChatID, presenter.HelpText, nil)
}
