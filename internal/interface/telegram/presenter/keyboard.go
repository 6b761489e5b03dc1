// Package presenter formats tutor data for Telegram display: Markdown texts
// and inline keyboards.
package presenter

import (
	"fmt"
	"net/url"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

// ══════════════════════════════════════════════════════════════════════════════
// INLINE KEYBOARD TYPES
// Клавиатуры описываются без привязки к библиотеке и конвертируются в
// tgbotapi только на выходе.
// ══════════════════════════════════════════════════════════════════════════════

// InlineKeyboard represents an inline keyboard.
type InlineKeyboard struct {
	Rows [][]InlineButton
}

// InlineButton is a single button. Exactly one of URL or CallbackData is set.
type InlineButton struct {
	Text         string
	URL          string
	CallbackData string
}

// NewInlineKeyboard creates an empty keyboard.
func NewInlineKeyboard() *InlineKeyboard {
	return &InlineKeyboard{}
}

// AddRow adds a row of buttons.
func (k *InlineKeyboard) AddRow(buttons ...InlineButton) *InlineKeyboard {
	k.Rows = append(k.Rows, buttons)
	return k
}

// URLButton creates a URL button.
func URLButton(text, link string) InlineButton {
	return InlineButton{Text: text, URL: link}
}

// Markup converts the keyboard into the Bot API type.
func (k *InlineKeyboard) Markup() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(k.Rows))
	for _, r := range k.Rows {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
		for _, b := range r {
			if b.URL != "" {
				row = append(row, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			} else {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.CallbackData))
			}
		}
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// ─────────────────────────────────────────────────────────────────────────────
// Panel
// ─────────────────────────────────────────────────────────────────────────────

const (
	// PanelButtonFromProgress is shown under /progress.
	PanelButtonFromProgress = "📱 Ver Panel Completo"
	// PanelButton is shown under /panel.
	PanelButton = "🌐 Abrir Panel"
)

// PanelURL builds "{frontend}?telegram_id={id}".
func PanelURL(frontendURL string, telegramID int64) string {
	base := strings.TrimRight(frontendURL, "/")
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%stelegram_id=%s", base, sep, url.QueryEscape(fmt.Sprint(telegramID)))
}

// PanelKeyboard is a single URL button opening the web panel.
func PanelKeyboard(label, frontendURL string, telegramID int64) *InlineKeyboard {
	return NewInlineKeyboard().AddRow(URLButton(label, PanelURL(frontendURL, telegramID)))
}
