// Package handler contains Telegram command and message handlers.
// Each handler follows the pattern: receive update → call application layer → format response.
package handler

import (
	"context"

	"github.com/englishprofesor/tutor-bot/internal/application/command"
	"github.com/englishprofesor/tutor-bot/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// SHARED TYPES
// ══════════════════════════════════════════════════════════════════════════════

// Request is one incoming message, already parsed by the router.
type Request struct {
	ChatID  int64
	Profile student.Profile

	// Text is the message text; for commands it is the full "/cmd args" line.
	Text string

	// Args is the text after the command.
	Args string

	// VoiceFileID is set for voice notes.
	VoiceFileID string
}

// Handler handles one routed request.
type Handler interface {
	Handle(ctx context.Context, req Request) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, req Request) error { return f(ctx, req) }

// Messenger is the subset of the Telegram client handlers use.
type Messenger interface {
	SendMarkdown(ctx context.Context, chatID int64, text string, markup any) error
	SendText(ctx context.Context, chatID int64, text string) error
	SendVoice(ctx context.Context, chatID int64, audio []byte) error
	SendAction(ctx context.Context, chatID int64, action string)
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Application ports
// ─────────────────────────────────────────────────────────────────────────────

// StudentResolver finds or registers the caller.
type StudentResolver interface {
	Handle(ctx context.Context, cmd command.ResolveStudentCommand) (*command.ResolveStudentResult, error)
}

// StudentFinder reads a student without registering it.
type StudentFinder interface {
	GetByTelegramID(ctx context.Context, telegramID student.TelegramID) (*student.Student, error)
}

// TurnRunner runs one tutor turn.
type TurnRunner interface {
	Handle(ctx context.Context, cmd command.ProcessTurnCommand) (*command.ProcessTurnResult, error)
}

// LessonEnder closes lessons.
type LessonEnder interface {
	Handle(ctx context.Context, cmd command.EndLessonCommand) (*command.EndLessonResult, error)
}

// Transcriber turns a voice note into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}
