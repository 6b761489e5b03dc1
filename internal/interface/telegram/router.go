package telegram

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"

	"github.com/englishprofesor/tutor-bot/internal/domain/student"
	"github.com/englishprofesor/tutor-bot/internal/interface/telegram/handler"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// Порядок разбора сообщения: команда → голос → текст. Остальное игнорируется.
// ══════════════════════════════════════════════════════════════════════════════

// Route kinds, used in logs.
const (
	RouteCommand = "command"
	RouteVoice   = "voice"
	RouteText    = "text"
	RouteIgnored = "ignored"
)

// Router routes Telegram messages to handlers.
type Router struct {
	mu       sync.RWMutex
	commands map[string]handler.Handler
	text     handler.Handler
	voice    handler.Handler
	unknown  handler.Handler
	logger   *slog.Logger
}

// NewRouter creates an empty router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		commands: make(map[string]handler.Handler),
		logger:   logger.With("component", "router"),
	}
}

// RegisterCommand binds /name to h. Names are case-insensitive.
func (r *Router) RegisterCommand(name string, h handler.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[strings.ToLower(strings.TrimPrefix(name, "/"))] = h
}

// SetTextHandler sets the handler for plain text.
func (r *Router) SetTextHandler(h handler.Handler) { r.text = h }

// SetVoiceHandler sets the handler for voice notes.
func (r *Router) SetVoiceHandler(h handler.Handler) { r.voice = h }

// SetUnknownCommandHandler sets the handler for unregistered commands.
func (r *Router) SetUnknownCommandHandler(h handler.Handler) { r.unknown = h }

// Commands returns the registered command names, sorted.
func (r *Router) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve picks the handler for msg and builds its request.
// The returned kind is one of the Route* constants; h is nil for RouteIgnored.
func (r *Router) Resolve(msg *tgbotapi.Message) (kind string, h handler.Handler, req handler.Request) {
	if msg == nil || msg.From == nil || msg.Chat == nil || msg.From.IsBot {
		return RouteIgnored, nil, req
	}
	req = handler.Request{
		ChatID:  msg.Chat.ID,
		Profile: profileOf(msg.From),
		Text:    msg.Text,
	}

	switch {
	case msg.IsCommand():
		req.Args = strings.TrimSpace(msg.CommandArguments())
		r.mu.RLock()
		h = r.commands[strings.ToLower(msg.Command())]
		r.mu.RUnlock()
		if h == nil {
			h = r.unknown
		}
		kind = RouteCommand

	case msg.Voice != nil && msg.Voice.FileID != "":
		req.VoiceFileID = msg.Voice.FileID
		h, kind = r.voice, RouteVoice

	case strings.TrimSpace(msg.Text) != "":
		h, kind = r.text, RouteText
	}

	if h == nil {
		return RouteIgnored, nil, req
	}
	return kind, h, req
}

// Route dispatches msg. It reports false when nothing handled the message.
func (r *Router) Route(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	kind, h, req := r.Resolve(msg)
	if h == nil {
		return false, nil
	}
	r.logger.Debug("routing message",
		"kind", kind,
		"telegram_id", int64(req.Profile.TelegramID),
		"chat_id", req.ChatID,
	)
	return true, h.Handle(ctx, req)
}

func profileOf(u *tgbotapi.User) student.Profile {
	return student.Profile{
		TelegramID:   student.TelegramID(u.ID),
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Username:     u.UserName,
		LanguageCode: u.LanguageCode,
	}
}
