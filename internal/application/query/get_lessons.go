package query

import (
	"context"
	"time"

	"github.com/englishprofesor/tutor-bot/internal/domain/lesson"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON HISTORY QUERIES
// ══════════════════════════════════════════════════════════════════════════════

const (
	DefaultLessonsLimit = 10
	MaxLessonsLimit     = 50
)

// LessonDTO is a lesson without messages.
type LessonDTO struct {
	ID              int64              `json:"id"`
	StudentID       int64              `json:"student_id"`
	Topic           string             `json:"topic,omitempty"`
	Summary         string             `json:"summary,omitempty"`
	MessagesCount   int                `json:"messages_count"`
	DurationMinutes int                `json:"duration_minutes"`
	AIEvaluation    *lesson.Evaluation `json:"ai_evaluation"`
	SkillsPracticed []string           `json:"skills_practiced"`
	StartedAt       time.Time          `json:"started_at"`
	EndedAt         *time.Time         `json:"ended_at"`
}

// LessonMessageDTO is one message of a lesson.
type LessonMessageDTO struct {
	ID          int64     `json:"id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	AudioFileID string    `json:"audio_file_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// LessonDetailDTO is a lesson with its messages in order.
type LessonDetailDTO struct {
	LessonDTO
	Messages []LessonMessageDTO `json:"messages"`
}

func toLessonDTO(l *lesson.Lesson) LessonDTO {
	skills := make([]string, 0, len(l.SkillsPracticed))
	for _, c := range l.SkillsPracticed {
		skills = append(skills, string(c))
	}
	return LessonDTO{
		ID:              l.ID,
		StudentID:       l.StudentID,
		Topic:           l.Topic,
		Summary:         l.Summary,
		MessagesCount:   l.MessagesCount,
		DurationMinutes: l.DurationMinutes,
		AIEvaluation:    l.Evaluation,
		SkillsPracticed: skills,
		StartedAt:       l.StartedAt,
		EndedAt:         l.EndedAt,
	}
}

// ListLessonsQuery pages through a student's lessons, newest first.
type ListLessonsQuery struct {
	StudentID int64
	Limit     int
	Offset    int
}

// Normalize applies defaults and clamps the page.
func (q *ListLessonsQuery) Normalize() {
	if q.Limit <= 0 {
		q.Limit = DefaultLessonsLimit
	}
	if q.Limit > MaxLessonsLimit {
		q.Limit = MaxLessonsLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
}

// LessonsHandler serves lesson history.
type LessonsHandler struct {
	lessons lesson.Repository
}

// NewLessonsHandler creates a new LessonsHandler.
func NewLessonsHandler(lessons lesson.Repository) *LessonsHandler {
	return &LessonsHandler{lessons: lessons}
}

// List returns a page of lessons.
func (h *LessonsHandler) List(ctx context.Context, q ListLessonsQuery) ([]LessonDTO, error) {
	q.Normalize()
	ls, err := h.lessons.ListByStudent(ctx, q.StudentID, q.Limit, q.Offset)
	if err != nil {
		return nil, err
	}
	out := make([]LessonDTO, 0, len(ls))
	for _, l := range ls {
		out = append(out, toLessonDTO(l))
	}
	return out, nil
}

// Get returns one lesson with messages.
// ErrLessonNotFound when missing, ErrLessonForbidden when owned by someone else.
func (h *LessonsHandler) Get(ctx context.Context, studentID, lessonID int64) (*LessonDetailDTO, error) {
	l, err := h.lessons.GetByID(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if l.StudentID != studentID {
		return nil, lesson.ErrLessonForbidden
	}

	msgs, err := h.lessons.Messages(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	detail := &LessonDetailDTO{
		LessonDTO: toLessonDTO(l),
		Messages:  make([]LessonMessageDTO, 0, len(msgs)),
	}
	for _, m := range msgs {
		detail.Messages = append(detail.Messages, LessonMessageDTO{
			ID:          m.ID,
			Role:        string(m.Role),
			Content:     m.Content,
			AudioFileID: m.AudioFileID,
			CreatedAt:   m.CreatedAt,
		})
	}
	return detail, nil
}
