package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/englishprofesor/tutor-bot/internal/domain/catalog"
	"github.com/englishprofesor/tutor-bot/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

const studentColumns = `
	id, telegram_id, first_name, last_name, username, language_code,
	current_level_id, total_lessons, total_minutes, streak_days, last_streak_date,
	registered_at, COALESCE(last_activity, registered_at)`

// ─────────────────────────────────────────────────────────────────────────────
// Write
// ─────────────────────────────────────────────────────────────────────────────

// Create inserts the student and one row per skill in a single transaction.
func (r *StudentRepository) Create(ctx context.Context, s *student.Student) error {
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO students (
				telegram_id, first_name, last_name, username, language_code,
				current_level_id, total_lessons, total_minutes, streak_days, last_streak_date,
				registered_at, last_activity
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id`,
			int64(s.TelegramID), s.FirstName, s.LastName, s.Username, s.LanguageCode,
			s.CurrentLevelID, s.TotalLessons, s.TotalMinutes, s.StreakDays, s.LastStreakDate,
			s.RegisteredAt, s.LastActivity,
		).Scan(&s.ID)
		if err != nil {
			return err
		}

		for _, sp := range s.Skills {
			err := tx.QueryRow(ctx, `
				INSERT INTO student_skills (
					student_id, skill_id, level_id, score, lessons_completed, last_practiced,
					created_at, updated_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				RETURNING id`,
				s.ID, sp.SkillID, sp.LevelID, sp.Score, sp.LessonsCompleted, sp.LastPracticed,
				sp.CreatedAt, sp.UpdatedAt,
			).Scan(&sp.ID)
			if err != nil {
				return fmt.Errorf("insert skill %s: %w", sp.Code, err)
			}
		}
		return nil
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return student.ErrStudentAlreadyExists
		}
		return fmt.Errorf("failed to create student: %w", err)
	}
	return nil
}

// Save updates the student row and every skill row.
func (r *StudentRepository) Save(ctx context.Context, s *student.Student) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE students SET
				first_name = $1,
				last_name = $2,
				username = $3,
				current_level_id = $4,
				total_lessons = $5,
				total_minutes = $6,
				streak_days = $7,
				last_streak_date = $8,
				last_activity = $9
			WHERE id = $10`,
			s.FirstName, s.LastName, s.Username, s.CurrentLevelID,
			s.TotalLessons, s.TotalMinutes, s.StreakDays, s.LastStreakDate,
			s.LastActivity, s.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update student: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return student.ErrStudentNotFound
		}

		batch := &pgx.Batch{}
		for _, sp := range s.Skills {
			batch.Queue(`
				UPDATE student_skills SET
					level_id = $1,
					score = $2,
					lessons_completed = $3,
					last_practiced = $4,
					updated_at = $5
				WHERE student_id = $6 AND skill_id = $7`,
				sp.LevelID, sp.Score, sp.LessonsCompleted, sp.LastPracticed, sp.UpdatedAt,
				s.ID, sp.SkillID,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to update student skills: %w", err)
		}
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Read
// ─────────────────────────────────────────────────────────────────────────────

// GetByID returns a student with skills.
func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*student.Student, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
	return r.load(ctx, row)
}

// GetByTelegramID returns a student with skills.
func (r *StudentRepository) GetByTelegramID(ctx context.Context, telegramID student.TelegramID) (*student.Student, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE telegram_id = $1`, int64(telegramID))
	return r.load(ctx, row)
}

func (r *StudentRepository) load(ctx context.Context, row pgx.Row) (*student.Student, error) {
	s, err := scanStudent(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, student.ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to scan student: %w", err)
	}

	skills, err := r.skills(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	s.Skills = skills
	return s, nil
}

func (r *StudentRepository) skills(ctx context.Context, studentID int64) (map[catalog.SkillCode]*student.SkillProgress, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT ss.id, ss.skill_id, sk.code, ss.level_id, ss.score, ss.lessons_completed,
		       ss.last_practiced, ss.created_at, ss.updated_at
		FROM student_skills ss
		JOIN skills sk ON sk.id = ss.skill_id
		WHERE ss.student_id = $1`, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query student skills: %w", err)
	}
	defer rows.Close()

	out := make(map[catalog.SkillCode]*student.SkillProgress)
	for rows.Next() {
		var sp student.SkillProgress
		var code string
		if err := rows.Scan(&sp.ID, &sp.SkillID, &code, &sp.LevelID, &sp.Score, &sp.LessonsCompleted,
			&sp.LastPracticed, &sp.CreatedAt, &sp.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan student skill: %w", err)
		}
		sp.Code = catalog.SkillCode(code)
		out[sp.Code] = &sp
	}
	return out, rows.Err()
}

func scanStudent(row pgx.Row) (*student.Student, error) {
	var s student.Student
	var tgID int64
	var lastStreak *time.Time
	err := row.Scan(
		&s.ID, &tgID, &s.FirstName, &s.LastName, &s.Username, &s.LanguageCode,
		&s.CurrentLevelID, &s.TotalLessons, &s.TotalMinutes, &s.StreakDays, &lastStreak,
		&s.RegisteredAt, &s.LastActivity,
	)
	if err != nil {
		return nil, err
	}
	s.TelegramID = student.TelegramID(tgID)
	s.LastStreakDate = lastStreak
	return &s, nil
}
