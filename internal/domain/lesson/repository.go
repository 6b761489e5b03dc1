package lesson

import (
	"context"
	"time"
)

// Repository persists lessons and their messages.
type Repository interface {
	// Create inserts a lesson and sets its ID.
	Create(ctx context.Context, l *Lesson) error

	// GetByID returns ErrLessonNotFound when missing.
	GetByID(ctx context.Context, id int64) (*Lesson, error)

	// FindOpenForDay returns the open lesson started within [dayStart, dayEnd)
	// or ErrNoOpenLesson.
	FindOpenForDay(ctx context.Context, studentID int64, dayStart, dayEnd time.Time) (*Lesson, error)

	// FindOpen returns the most recent open lesson of any day or ErrNoOpenLesson.
	FindOpen(ctx context.Context, studentID int64) (*Lesson, error)

	// AppendMessage inserts the message and persists the lesson's messages_count.
	AppendMessage(ctx context.Context, l *Lesson, m *Message) error

	// Save updates evaluation, topic, summary, skills and end fields.
	Save(ctx context.Context, l *Lesson) error

	// ListByStudent returns lessons newest first.
	ListByStudent(ctx context.Context, studentID int64, limit, offset int) ([]*Lesson, error)

	// Messages returns the lesson messages in creation order.
	Messages(ctx context.Context, lessonID int64) ([]*Message, error)

	// CountSince counts lessons of the student started at or after t.
	CountSince(ctx context.Context, studentID int64, t time.Time) (int, error)

	// CountEndedAtLevel counts ended lessons of the student at the level.
	CountEndedAtLevel(ctx context.Context, studentID, levelID int64) (int, error)

	// ListStale returns open lessons idle since idleCutoff or started before dayStart.
	ListStale(ctx context.Context, idleCutoff, dayStart time.Time, limit int) ([]*Lesson, error)
}
