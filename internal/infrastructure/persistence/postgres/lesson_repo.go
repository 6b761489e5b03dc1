package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/englishprofesor/tutor-bot/internal/domain/catalog"
	"github.com/englishprofesor/tutor-bot/internal/domain/lesson"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LessonRepository implements lesson.Repository.
type LessonRepository struct {
	conn *Connection
}

// NewLessonRepository creates a new LessonRepository.
func NewLessonRepository(conn *Connection) *LessonRepository {
	return &LessonRepository{conn: conn}
}

const lessonColumns = `
	id, student_id, level_id, topic, summary, messages_count, duration_minutes,
	ai_evaluation, skills_practiced, started_at, ended_at`

// Create inserts an open lesson.
func (r *LessonRepository) Create(ctx context.Context, l *lesson.Lesson) error {
	err := r.conn.QueryRow(ctx, `
		INSERT INTO lessons (student_id, level_id, messages_count, started_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		l.StudentID, l.LevelID, l.MessagesCount, l.StartedAt,
	).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("failed to create lesson: %w", err)
	}
	return nil
}

// GetByID returns a lesson or ErrLessonNotFound.
func (r *LessonRepository) GetByID(ctx context.Context, id int64) (*lesson.Lesson, error) {
	l, err := scanLesson(r.conn.QueryRow(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE id = $1`, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, lesson.ErrLessonNotFound
		}
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}
	return l, nil
}

// FindOpenForDay returns the newest open lesson started within the day window.
func (r *LessonRepository) FindOpenForDay(ctx context.Context, studentID int64, dayStart, dayEnd time.Time) (*lesson.Lesson, error) {
	l, err := scanLesson(r.conn.QueryRow(ctx, `
		SELECT `+lessonColumns+` FROM lessons
		WHERE student_id = $1 AND ended_at IS NULL AND started_at >= $2 AND started_at < $3
		ORDER BY started_at DESC
		LIMIT 1`, studentID, dayStart, dayEnd))
	if err != nil {
		if IsNoRows(err) {
			return nil, lesson.ErrNoOpenLesson
		}
		return nil, fmt.Errorf("failed to find open lesson: %w", err)
	}
	return l, nil
}

// FindOpen returns the newest open lesson of any day.
func (r *LessonRepository) FindOpen(ctx context.Context, studentID int64) (*lesson.Lesson, error) {
	l, err := scanLesson(r.conn.QueryRow(ctx, `
		SELECT `+lessonColumns+` FROM lessons
		WHERE student_id = $1 AND ended_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1`, studentID))
	if err != nil {
		if IsNoRows(err) {
			return nil, lesson.ErrNoOpenLesson
		}
		return nil, fmt.Errorf("failed to find open lesson: %w", err)
	}
	return l, nil
}

// AppendMessage inserts the message and stores the lesson counter in one transaction.
func (r *LessonRepository) AppendMessage(ctx context.Context, l *lesson.Lesson, m *lesson.Message) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		var audio *string
		if m.AudioFileID != "" {
			audio = &m.AudioFileID
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO lesson_messages (lesson_id, role, content, audio_file_id, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			l.ID, string(m.Role), m.Content, audio, m.CreatedAt,
		).Scan(&m.ID)
		if err != nil {
			return fmt.Errorf("failed to insert lesson message: %w", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE lessons SET messages_count = $1 WHERE id = $2`, l.MessagesCount, l.ID); err != nil {
			return fmt.Errorf("failed to update messages_count: %w", err)
		}
		return nil
	})
}

// Save writes evaluation-derived and end fields.
func (r *LessonRepository) Save(ctx context.Context, l *lesson.Lesson) error {
	var evalJSON, skillsJSON []byte
	var err error
	if l.Evaluation != nil {
		if evalJSON, err = json.Marshal(l.Evaluation); err != nil {
			return fmt.Errorf("failed to marshal evaluation: %w", err)
		}
	}
	if l.SkillsPracticed != nil {
		if skillsJSON, err = json.Marshal(l.SkillsPracticed); err != nil {
			return fmt.Errorf("failed to marshal skills_practiced: %w", err)
		}
	}

	tag, err := r.conn.Exec(ctx, `
		UPDATE lessons SET
			topic = $1,
			summary = $2,
			messages_count = $3,
			duration_minutes = $4,
			ai_evaluation = $5,
			skills_practiced = $6,
			ended_at = $7
		WHERE id = $8`,
		nullString(l.Topic), nullString(l.Summary), l.MessagesCount, l.DurationMinutes,
		evalJSON, skillsJSON, l.EndedAt, l.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save lesson: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return lesson.ErrLessonNotFound
	}
	return nil
}

// ListByStudent returns lessons newest first.
func (r *LessonRepository) ListByStudent(ctx context.Context, studentID int64, limit, offset int) ([]*lesson.Lesson, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+lessonColumns+` FROM lessons
		WHERE student_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3`, studentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}
	return collectLessons(rows)
}

// Messages returns the lesson messages in creation order.
func (r *LessonRepository) Messages(ctx context.Context, lessonID int64) ([]*lesson.Message, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, lesson_id, role, content, COALESCE(audio_file_id, ''), created_at
		FROM lesson_messages
		WHERE lesson_id = $1
		ORDER BY created_at, id`, lessonID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lesson messages: %w", err)
	}
	defer rows.Close()

	var out []*lesson.Message
	for rows.Next() {
		var m lesson.Message
		var role string
		if err := rows.Scan(&m.ID, &m.LessonID, &role, &m.Content, &m.AudioFileID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lesson message: %w", err)
		}
		m.Role = lesson.Role(role)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// CountSince counts lessons started at or after t.
func (r *LessonRepository) CountSince(ctx context.Context, studentID int64, t time.Time) (int, error) {
	var n int
	err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM lessons WHERE student_id = $1 AND started_at >= $2`, studentID, t).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent lessons: %w", err)
	}
	return n, nil
}

// CountEndedAtLevel counts ended lessons at a level.
func (r *LessonRepository) CountEndedAtLevel(ctx context.Context, studentID, levelID int64) (int, error) {
	var n int
	err := r.conn.QueryRow(ctx, `
		SELECT COUNT(*) FROM lessons
		WHERE student_id = $1 AND level_id = $2 AND ended_at IS NOT NULL`, studentID, levelID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count lessons at level: %w", err)
	}
	return n, nil
}

// ListStale returns open lessons whose last message (or start) is before
// idleCutoff, or that were started before dayStart.
func (r *LessonRepository) ListStale(ctx context.Context, idleCutoff, dayStart time.Time, limit int) ([]*lesson.Lesson, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+lessonColumns+` FROM lessons l
		WHERE l.ended_at IS NULL
		  AND (
		        l.started_at < $2
		        OR COALESCE(
		             (SELECT MAX(m.created_at) FROM lesson_messages m WHERE m.lesson_id = l.id),
		             l.started_at
		           ) < $1
		      )
		ORDER BY l.started_at
		LIMIT $3`, idleCutoff, dayStart, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale lessons: %w", err)
	}
	return collectLessons(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func collectLessons(rows pgx.Rows) ([]*lesson.Lesson, error) {
	defer rows.Close()
	var out []*lesson.Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lesson: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLesson(row pgx.Row) (*lesson.Lesson, error) {
	var l lesson.Lesson
	var topic, summary *string
	var evalJSON, skillsJSON []byte

	err := row.Scan(
		&l.ID, &l.StudentID, &l.LevelID, &topic, &summary, &l.MessagesCount, &l.DurationMinutes,
		&evalJSON, &skillsJSON, &l.StartedAt, &l.EndedAt,
	)
	if err != nil {
		return nil, err
	}

	if topic != nil {
		l.Topic = *topic
	}
	if summary != nil {
		l.Summary = *summary
	}
	if len(evalJSON) > 0 {
		var e lesson.Evaluation
		if err := json.Unmarshal(evalJSON, &e); err == nil {
			l.Evaluation = &e
		}
	}
	if len(skillsJSON) > 0 {
		var codes []catalog.SkillCode
		if err := json.Unmarshal(skillsJSON, &codes); err == nil {
			l.SkillsPracticed = codes
		}
	}
	return &l, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
