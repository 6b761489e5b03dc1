package handler

import (
	"context"

	"github.com/englishprofesor/tutor-bot/internal/interface/telegram/presenter"
)

// PanelHandler handles /panel. The link carries the Telegram ID, the panel
// exchanges it for a token through /api/auth/telegram-id.
type PanelHandler struct {
	out         Messenger
	frontendURL string
}

// NewPanelHandler creates a new PanelHandler.
func NewPanelHandler(out Messenger, frontendURL string) *PanelHandler {
	return &PanelHandler{out: out, frontendURL: frontendURL}
}

func (h *PanelHandler) Handle(ctx context.Context, req Request) error {
	kb := presenter.PanelKeyboard(presenter.PanelButton, h.frontendURL, int64(req.Profile.TelegramID))
	return h.out.SendMarkdown(ctx, req.ChatID, presenter.PanelText, kb.Markup())
}
