// Package conversation models the per-student message thread sent to the
// generation service, and the rules derived from it (evaluation cadence,
// transcript window).
package conversation

import (
	"context"
	"fmt"
	"strings"
)

// Role of a thread message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	// EvaluationEvery - оценка запускается на каждом N-м сообщении ученика.
	EvaluationEvery = 5
	// TranscriptWindow - сколько последних реплик уходит на оценку.
	TranscriptWindow = 10
	// MaxThreadMessages bounds stored history (system instruction excluded).
	MaxThreadMessages = 100
)

// Message is one entry of the thread.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Thread is the stored history of one student.
// UserMessages counts every user message ever appended, so the evaluation
// cadence survives trimming of old history.
type Thread struct {
	ID           string
	Messages     []Message
	UserMessages int
}

// Add appends messages and keeps the user counter in sync.
func (t *Thread) Add(msgs ...Message) {
	for _, m := range msgs {
		if m.Role == RoleUser {
			t.UserMessages++
		}
	}
	t.Messages = append(t.Messages, msgs...)
}

// Store persists threads keyed by ThreadID.
type Store interface {
	// Load returns the thread, empty (not nil) when it does not exist.
	Load(ctx context.Context, threadID string) (*Thread, error)
	// Append adds messages at the end of the thread and bumps the user counter.
	// Implementations may drop history beyond MaxThreadMessages but must keep
	// the leading system message.
	Append(ctx context.Context, threadID string, msgs ...Message) error
	// Reset drops the thread.
	Reset(ctx context.Context, threadID string) error
}

// ThreadID is the stable per-student thread key.
func ThreadID(telegramID int64) string {
	return fmt.Sprintf("student_%d", telegramID)
}

// HasSystem reports whether the thread already starts with an instruction block.
func HasSystem(msgs []Message) bool {
	return len(msgs) > 0 && msgs[0].Role == RoleSystem
}

// CountUserMessages counts user-authored messages in the thread.
func CountUserMessages(msgs []Message) int {
	n := 0
	for _, m := range msgs {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// ShouldEvaluate reports whether a user-message count triggers an evaluation.
func ShouldEvaluate(userMessages int) bool {
	return userMessages > 0 && userMessages%EvaluationEvery == 0
}

// Transcript renders the last n user/assistant messages as
// "Usuario: ..." / "Tutor: ..." lines for the evaluation prompt.
func Transcript(msgs []Message, n int) string {
	dialog := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleUser || m.Role == RoleAssistant {
			dialog = append(dialog, m)
		}
	}
	if n > 0 && len(dialog) > n {
		dialog = dialog[len(dialog)-n:]
	}

	var b strings.Builder
	for i, m := range dialog {
		if i > 0 {
			b.WriteByte('\n')
		}
		if m.Role == RoleUser {
			b.WriteString("Usuario: ")
		} else {
			b.WriteString("Tutor: ")
		}
		b.WriteString(m.Content)
	}
	return b.String()
}

// Trim keeps the system instruction (if any) and the last max messages.
func Trim(msgs []Message, max int) []Message {
	if max <= 0 {
		return msgs
	}
	var head []Message
	body := msgs
	if HasSystem(msgs) {
		head, body = msgs[:1], msgs[1:]
	}
	if len(body) <= max {
		return msgs
	}
	out := make([]Message, 0, len(head)+max)
	out = append(out, head...)
	return append(out, body[len(body)-max:]...)
}
