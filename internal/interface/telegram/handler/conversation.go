package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/englishprofesor/tutor-bot/internal/application/command"
	"github.com/englishprofesor/tutor-bot/internal/infrastructure/external/telegram"
	"github.com/englishprofesor/tutor-bot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONVERSATION HANDLER
// Любой текст (не команда) и любая голосовая заметка - это реплика в уроке.
// Сам обмен выполняет ProcessTurnHandler, здесь только транспорт.
// ══════════════════════════════════════════════════════════════════════════════

// voiceFilename tells the transcriber the container format of Telegram voice notes.
const voiceFilename = "voice.ogg"

// ConversationHandler turns chat messages into tutor turns.
type ConversationHandler struct {
	turns  TurnRunner
	stt    Transcriber
	out    Messenger
	logger *slog.Logger
}

// NewConversationHandler creates a new ConversationHandler.
func NewConversationHandler(turns TurnRunner, stt Transcriber, out Messenger, logger *slog.Logger) *ConversationHandler {
	return &ConversationHandler{
		turns:  turns,
		stt:    stt,
		out:    out,
		logger: logger.With("component", "conversation"),
	}
}

// Handle runs a turn for a typed message.
func (h *ConversationHandler) Handle(ctx context.Context, req Request) error {
	h.out.SendAction(ctx, req.ChatID, telegram.ActionTyping)
	return h.turn(ctx, req, req.Text, "")
}

// HandleVoice downloads and transcribes a voice note, echoes the transcript
// and runs a turn with it.
func (h *ConversationHandler) HandleVoice(ctx context.Context, req Request) error {
	h.out.SendAction(ctx, req.ChatID, telegram.ActionTyping)

	text, err := h.transcribe(ctx, req.VoiceFileID)
	if err != nil {
		h.logger.Warn("voice message rejected",
			"telegram_id", int64(req.Profile.TelegramID),
			"error", err,
		)
		return h.out.SendText(ctx, req.ChatID, presenter.VoiceErrorText)
	}

	if err := h.out.SendMarkdown(ctx, req.ChatID, presenter.HeardText(text), nil); err != nil {
		return err
	}
	return h.turn(ctx, req, text, req.VoiceFileID)
}

// Voice exposes HandleVoice as a Handler for the router.
func (h *ConversationHandler) Voice() Handler {
	return HandlerFunc(h.HandleVoice)
}

func (h *ConversationHandler) transcribe(ctx context.Context, fileID string) (string, error) {
	if h.stt == nil {
		return "", fmt.Errorf("voice: transcription is not configured")
	}
	audio, err := h.out.DownloadFile(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("voice: download: %w", err)
	}
	text, err := h.stt.Transcribe(ctx, audio, voiceFilename)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("voice: empty transcript")
	}
	return text, nil
}

func (h *ConversationHandler) turn(ctx context.Context, req Request, text, audioFileID string) error {
	_, err := h.turns.Handle(ctx, command.ProcessTurnCommand{
		Profile:     req.Profile,
		Text:        text,
		AudioFileID: audioFileID,
		Delivery:    &chatDelivery{out: h.out, chatID: req.ChatID},
	})
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// Delivery
// ─────────────────────────────────────────────────────────────────────────────

// chatDelivery binds command.Delivery to one chat.
type chatDelivery struct {
	out    Messenger
	chatID int64
}

func (d *chatDelivery) SendText(ctx context.Context, text string) error {
	return d.out.SendMarkdown(ctx, d.chatID, text, nil)
}

func (d *chatDelivery) SendVoice(ctx context.Context, audio []byte) error {
	d.out.SendAction(ctx, d.chatID, telegram.ActionRecordAudio)
	return d.out.SendVoice(ctx, d.chatID, audio)
}
