// Package lesson models a conversational session: the Lesson, its ordered
// messages and the evaluation attached to it.
package lesson

import (
	"strings"
	"time"

	"github.com/englishprofesor/tutor-bot/internal/domain/catalog"
	"github.com/englishprofesor/tutor-bot/internal/domain/shared"
)

// Role of a message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid reports whether r is user or assistant.
func (r Role) IsValid() bool { return r == RoleUser || r == RoleAssistant }

// MaxTopicLength matches the topic column width.
const MaxTopicLength = 200

// maxTopics is how many evaluated topics are kept on the lesson.
const maxTopics = 3

var (
	ErrLessonNotFound    = shared.NewDomainError("lesson", "Find", shared.ErrNotFound, "lesson not found")
	ErrLessonForbidden   = shared.NewDomainError("lesson", "Access", shared.ErrForbidden, "lesson belongs to another student")
	ErrLessonEnded       = shared.NewDomainError("lesson", "Append", shared.ErrInvalidState, "lesson already ended")
	ErrInvalidRole       = shared.NewDomainError("lesson", "Append", shared.ErrInvalidInput, "invalid message role")
	ErrInvalidEvaluation = shared.NewDomainError("lesson", "ParseEvaluation", shared.ErrValidation, "malformed evaluation payload")
	ErrNoOpenLesson      = shared.NewDomainError("lesson", "FindOpen", shared.ErrNotFound, "no open lesson")
)

// Lesson is a bounded session, one per calendar day of activity.
type Lesson struct {
	ID              int64
	StudentID       int64
	LevelID         int64
	Topic           string
	Summary         string
	MessagesCount   int
	DurationMinutes int
	Evaluation      *Evaluation
	SkillsPracticed []catalog.SkillCode
	StartedAt       time.Time
	EndedAt         *time.Time
}

// Message is an append-only entry of a lesson.
type Message struct {
	ID          int64
	LessonID    int64
	Role        Role
	Content     string
	AudioFileID string
	CreatedAt   time.Time
}

// New opens a lesson at the student's current level.
func New(studentID, levelID int64, now time.Time) *Lesson {
	return &Lesson{
		StudentID: studentID,
		LevelID:   levelID,
		StartedAt: now,
	}
}

// IsOpen reports whether the lesson has not been ended.
func (l *Lesson) IsOpen() bool { return l.EndedAt == nil }

// NewMessage builds a message for this lesson and bumps messages_count.
func (l *Lesson) NewMessage(role Role, content, audioFileID string, now time.Time) (*Message, error) {
	if !role.IsValid() {
		return nil, ErrInvalidRole
	}
	if !l.IsOpen() {
		return nil, ErrLessonEnded
	}
	l.MessagesCount++
	return &Message{
		LessonID:    l.ID,
		Role:        role,
		Content:     content,
		AudioFileID: audioFileID,
		CreatedAt:   now,
	}, nil
}

// AttachEvaluation stores the evaluation and the fields derived from it.
// Topic keeps at most the first three topics, comma separated.
func (l *Lesson) AttachEvaluation(e *Evaluation) {
	if e == nil {
		return
	}
	l.Evaluation = e
	if e.Summary != "" {
		l.Summary = e.Summary
	}

	topics := e.TopicsCovered
	if len(topics) > maxTopics {
		topics = topics[:maxTopics]
	}
	if len(topics) > 0 {
		l.Topic = truncateRunes(strings.Join(topics, ", "), MaxTopicLength)
	}

	if practiced := e.PracticedSkills(); len(practiced) > 0 {
		l.SkillsPracticed = practiced
	}
}

// End closes the lesson and returns its duration in whole minutes.
// Ending twice is a no-op that returns the stored duration.
func (l *Lesson) End(now time.Time) int {
	if !l.IsOpen() {
		return l.DurationMinutes
	}
	ended := now
	l.EndedAt = &ended
	if d := now.Sub(l.StartedAt); d > 0 {
		l.DurationMinutes = int(d.Minutes())
	}
	return l.DurationMinutes
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
