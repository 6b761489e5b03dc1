package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/englishprofesor/tutor-bot/internal/domain/catalog"
	"github.com/englishprofesor/tutor-bot/internal/domain/conversation"
	"github.com/englishprofesor/tutor-bot/internal/domain/lesson"
	"github.com/englishprofesor/tutor-bot/internal/domain/student"
	"github.com/englishprofesor/tutor-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROCESS TURN COMMAND
// Один обмен репликами: сообщение ученика → ответ тутора → (иногда) оценка →
// обновление прогресса → доставка текста и голоса.
// ══════════════════════════════════════════════════════════════════════════════

// FallbackReply is sent when the tutor reply could not be generated.
const FallbackReply = "Lo siento, tuve un problema técnico. ¿Puedes repetir lo que dijiste?"

// levelUpSuffix is appended to the reply on promotion. %s is the level name.
const levelUpSuffix = "\n\n🎉 ¡Felicidades! ¡Has subido a *%s*!"

// ─────────────────────────────────────────────────────────────────────────────
// Collaborators
// ─────────────────────────────────────────────────────────────────────────────

// Generator produces tutor replies and evaluations.
type Generator interface {
	Reply(ctx context.Context, history []conversation.Message) (string, error)
	Evaluate(ctx context.Context, transcript, levelCode string) (*lesson.Evaluation, error)
}

// Synthesizer renders the reply as audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Delivery sends the result of a turn back to the student.
type Delivery interface {
	SendText(ctx context.Context, text string) error
	SendVoice(ctx context.Context, audio []byte) error
}

// DashboardInvalidator drops cached dashboard data after progress changes.
type DashboardInvalidator interface {
	InvalidateDashboard(ctx context.Context, studentID int64) error
}

// ─────────────────────────────────────────────────────────────────────────────
// Command / Result
// ─────────────────────────────────────────────────────────────────────────────

// ProcessTurnCommand is one incoming student message.
type ProcessTurnCommand struct {
	Profile student.Profile

	// Text is the typed message or the voice transcript.
	Text string

	// AudioFileID is the Telegram file id of a voice note, if any.
	AudioFileID string

	// Delivery is optional; nil means the caller delivers Result.Reply itself.
	Delivery Delivery
}

// Validate validates the command.
func (c ProcessTurnCommand) Validate() error {
	if !c.Profile.TelegramID.IsValid() {
		return student.ErrInvalidTelegramID
	}
	if strings.TrimSpace(c.Text) == "" {
		return errors.New("process_turn: text is required")
	}
	return nil
}

// ProcessTurnResult describes what happened during the turn.
type ProcessTurnResult struct {
	Student *student.Student
	Lesson  *lesson.Lesson

	// Reply is the final outgoing text, including a level-up suffix.
	Reply string

	// Fallback is true when generation failed and FallbackReply was used.
	Fallback bool

	// Evaluation is set when an evaluation ran and was applied.
	Evaluation *lesson.Evaluation

	// PromotedTo is the new level on promotion.
	PromotedTo *catalog.Level

	// UserMessages is the thread user-message count after this turn.
	UserMessages int

	// VoiceSent is true when the audio rendering was delivered.
	VoiceSent bool
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ProcessTurnHandler is the turn orchestrator. It is built once in the
// composition root and shared by every delivery surface.
type ProcessTurnHandler struct {
	resolver    *ResolveStudentHandler
	students    student.Repository
	lessons     lesson.Repository
	threads     conversation.Store
	generator   Generator
	synthesizer Synthesizer // optional
	dashboards  DashboardInvalidator
	catalog     *catalog.Catalog
	clock       timeutil.Clock
	logger      *slog.Logger
}

// ProcessTurnDeps groups the handler dependencies.
type ProcessTurnDeps struct {
	Resolver    *ResolveStudentHandler
	Students    student.Repository
	Lessons     lesson.Repository
	Threads     conversation.Store
	Generator   Generator
	Synthesizer Synthesizer
	Dashboards  DashboardInvalidator
	Catalog     *catalog.Catalog
	Clock       timeutil.Clock
	Logger      *slog.Logger
}

// NewProcessTurnHandler creates a new ProcessTurnHandler.
func NewProcessTurnHandler(d ProcessTurnDeps) *ProcessTurnHandler {
	return &ProcessTurnHandler{
		resolver:    d.Resolver,
		students:    d.Students,
		lessons:     d.Lessons,
		threads:     d.Threads,
		generator:   d.Generator,
		synthesizer: d.Synthesizer,
		dashboards:  d.Dashboards,
		catalog:     d.Catalog,
		clock:       d.Clock,
		logger:      d.Logger.With("component", "process_turn"),
	}
}

// Handle runs one turn. Steps 3-7 run strictly in order; generation,
// evaluation and speech failures are recovered locally. Persistence
// failures abort the turn and are returned.
func (h *ProcessTurnHandler) Handle(ctx context.Context, cmd ProcessTurnCommand) (*ProcessTurnResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	// 1. Ученик
	resolved, err := h.resolver.Handle(ctx, ResolveStudentCommand{Profile: cmd.Profile})
	if err != nil {
		return nil, err
	}
	s := resolved.Student
	level, err := h.catalog.LevelByID(s.CurrentLevelID)
	if err != nil {
		return nil, fmt.Errorf("process_turn: current level: %w", err)
	}

	// 2. Урок на сегодня
	l, err := h.activeLesson(ctx, s)
	if err != nil {
		return nil, err
	}

	// 3. Сообщение ученика
	if err := h.appendMessage(ctx, l, lesson.RoleUser, cmd.Text, cmd.AudioFileID); err != nil {
		return nil, err
	}

	// 4. Ответ тутора
	threadID := conversation.ThreadID(int64(s.TelegramID))
	thread := h.loadThread(ctx, threadID)

	var pending []conversation.Message
	history := thread.Messages
	if !conversation.HasSystem(history) {
		sys := conversation.Instruction(conversation.InstructionParams{
			StudentName:  s.FirstName,
			LevelCode:    string(level.Code),
			TotalLessons: s.TotalLessons,
			StreakDays:   s.StreakDays,
		})
		pending = append(pending, sys)
		history = append([]conversation.Message{sys}, history...)
	}
	userMsg := conversation.Message{Role: conversation.RoleUser, Content: cmd.Text}
	history = append(history, userMsg)
	userCount := thread.UserMessages + 1

	result := &ProcessTurnResult{Student: s, Lesson: l, UserMessages: userCount}

	reply, err := h.generator.Reply(ctx, history)
	if err != nil || strings.TrimSpace(reply) == "" {
		h.logger.Warn("tutor reply failed, using fallback",
			"student_id", s.ID,
			"lesson_id", l.ID,
			"error", err,
		)
		reply = FallbackReply
		result.Fallback = true
	}
	assistantMsg := conversation.Message{Role: conversation.RoleAssistant, Content: reply}

	pending = append(pending, userMsg, assistantMsg)
	if err := h.threads.Append(ctx, threadID, pending...); err != nil {
		h.logger.Warn("failed to persist conversation thread", "thread_id", threadID, "error", err)
	}

	// 5. Оценка на каждом 5-м сообщении ученика
	var evaluation *lesson.Evaluation
	if !result.Fallback && conversation.ShouldEvaluate(userCount) {
		transcript := conversation.Transcript(append(history, assistantMsg), conversation.TranscriptWindow)
		evaluation, err = h.generator.Evaluate(ctx, transcript, string(level.Code))
		if err != nil {
			h.logger.Warn("evaluation skipped",
				"student_id", s.ID,
				"lesson_id", l.ID,
				"user_messages", userCount,
				"error", err,
			)
			evaluation = nil
		}
	}

	// 6. Ответ тутора в историю урока
	if err := h.appendMessage(ctx, l, lesson.RoleAssistant, reply, ""); err != nil {
		return nil, err
	}

	// 7. Применение оценки
	if evaluation != nil {
		promoted, err := h.applyEvaluation(ctx, s, l, evaluation)
		if err != nil {
			return nil, err
		}
		result.Evaluation = evaluation
		if promoted != nil {
			result.PromotedTo = promoted
			reply += fmt.Sprintf(levelUpSuffix, promoted.Name)
		}
	}
	result.Reply = reply

	// 8. Доставка
	if cmd.Delivery != nil {
		if err := cmd.Delivery.SendText(ctx, reply); err != nil {
			return result, fmt.Errorf("process_turn: deliver text: %w", err)
		}
		result.VoiceSent = h.deliverVoice(ctx, cmd.Delivery, s.ID, reply)
	}

	return result, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Steps
// ─────────────────────────────────────────────────────────────────────────────

// activeLesson returns today's open lesson or opens a new one.
// Two concurrent turns of the same student may both open a lesson.
func (h *ProcessTurnHandler) activeLesson(ctx context.Context, s *student.Student) (*lesson.Lesson, error) {
	now := h.clock.Now()
	dayStart := timeutil.StartOfDay(now, h.clock.Location())

	l, err := h.lessons.FindOpenForDay(ctx, s.ID, dayStart, dayStart.AddDate(0, 0, 1))
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, lesson.ErrNoOpenLesson) {
		return nil, fmt.Errorf("process_turn: find lesson: %w", err)
	}

	l = lesson.New(s.ID, s.CurrentLevelID, now)
	if err := h.lessons.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("process_turn: create lesson: %w", err)
	}
	h.logger.Info("lesson started", "lesson_id", l.ID, "student_id", s.ID)
	return l, nil
}

func (h *ProcessTurnHandler) appendMessage(ctx context.Context, l *lesson.Lesson, role lesson.Role, text, audioFileID string) error {
	m, err := l.NewMessage(role, text, audioFileID, h.clock.Now())
	if err != nil {
		return err
	}
	if err := h.lessons.AppendMessage(ctx, l, m); err != nil {
		return fmt.Errorf("process_turn: append %s message: %w", role, err)
	}
	return nil
}

// loadThread never fails: a broken store degrades to a fresh thread.
func (h *ProcessTurnHandler) loadThread(ctx context.Context, threadID string) *conversation.Thread {
	thread, err := h.threads.Load(ctx, threadID)
	if err != nil || thread == nil {
		h.logger.Warn("conversation thread unavailable", "thread_id", threadID, "error", err)
		return &conversation.Thread{ID: threadID}
	}
	return thread
}

func (h *ProcessTurnHandler) applyEvaluation(ctx context.Context, s *student.Student, l *lesson.Lesson, e *lesson.Evaluation) (*catalog.Level, error) {
	now := h.clock.Now()

	l.AttachEvaluation(e)
	if err := h.lessons.Save(ctx, l); err != nil {
		return nil, fmt.Errorf("process_turn: save evaluation: %w", err)
	}

	updated := s.ApplyScores(e.SkillScores(), now)
	promoted, err := s.TryLevelUp(h.catalog, now)
	if err != nil {
		return nil, fmt.Errorf("process_turn: level up: %w", err)
	}
	if err := h.students.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("process_turn: save progress: %w", err)
	}

	h.logger.Info("evaluation applied",
		"student_id", s.ID,
		"lesson_id", l.ID,
		"skills_updated", len(updated),
		"promoted", promoted != nil,
	)

	if h.dashboards != nil {
		if err := h.dashboards.InvalidateDashboard(ctx, s.ID); err != nil {
			h.logger.Debug("dashboard cache invalidation failed", "student_id", s.ID, "error", err)
		}
	}
	return promoted, nil
}

// deliverVoice swallows every failure: the text is already out.
func (h *ProcessTurnHandler) deliverVoice(ctx context.Context, d Delivery, studentID int64, text string) bool {
	if h.synthesizer == nil {
		return false
	}
	audio, err := h.synthesizer.Synthesize(ctx, text)
	if err != nil {
		h.logger.Warn("voice synthesis failed", "student_id", studentID, "error", err)
		return false
	}
	if len(audio) == 0 {
		return false
	}
	if err := d.SendVoice(ctx, audio); err != nil {
		h.logger.Warn("voice delivery failed", "student_id", studentID, "error", err)
		return false
	}
	return true
}
