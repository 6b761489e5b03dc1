package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/englishprofesor/tutor-bot/internal/domain/catalog"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration is one versioned schema step. Seed, when set, runs after UpSQL
// in the same transaction.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	Seed      func(ctx context.Context, tx pgx.Tx) error
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies embedded migrations, tracked in schema_migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a migrator with the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: GetMigrations(), tableName: "schema_migrations"}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.conn.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`, m.tableName))
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[int]time.Time)
	for rows.Next() {
		var v int
		var at time.Time
		if err := rows.Scan(&v, &at); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		out[v] = at
	}
	return out, rows.Err()
}

// Migrate applies pending migrations in version order, one transaction each.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		if mig.UpSQL == "" && mig.Seed == nil {
			return fmt.Errorf("%w: migration %d is empty", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if mig.UpSQL != "" {
				if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
					return fmt.Errorf("exec migration %d: %w", mig.Version, err)
				}
			}
			if mig.Seed != nil {
				if err := mig.Seed(ctx, tx); err != nil {
					return fmt.Errorf("seed migration %d: %w", mig.Version, err)
				}
			}
			_, err := tx.Exec(ctx, fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName), mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}
	return nil
}

// Rollback reverts the last applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	last := 0
	for v := range applied {
		last = max(last, v)
	}
	if last == 0 {
		return nil
	}

	var mig *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			mig = &m.migrations[i]
		}
	}
	if mig == nil || mig.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, last)
	}

	return m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, mig.DownSQL); err != nil {
			return fmt.Errorf("rollback migration %d: %w", last, err)
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName), last)
		return err
	})
}

// Status lists all migrations with their applied state.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Migration, len(m.migrations))
	copy(out, m.migrations)
	for i := range out {
		if at, ok := applied[out[i].Version]; ok {
			out[i].IsApplied = true
			out[i].AppliedAt = at
		}
	}
	return out, nil
}

// GetMigrations returns the embedded migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_reference_data", UpSQL: migration001Up, DownSQL: migration001Down, Seed: seedCatalog},
		{Version: 2, Name: "create_students", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_lessons", UpSQL: migration003Up, DownSQL: migration003Down},
		{Version: 4, Name: "create_assessments", UpSQL: migration004Up, DownSQL: migration004Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: LEVELS & SKILLS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS levels (
    id SERIAL PRIMARY KEY,
    code VARCHAR(10) NOT NULL UNIQUE,
    name VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    "order" INTEGER NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS skills (
    id SERIAL PRIMARY KEY,
    code VARCHAR(20) NOT NULL UNIQUE,
    name VARCHAR(50) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    icon VARCHAR(50) NOT NULL DEFAULT ''
);
`

const migration001Down = `
DROP TABLE IF EXISTS skills;
DROP TABLE IF EXISTS levels;
`

func seedCatalog(ctx context.Context, tx pgx.Tx) error {
	batch := &pgx.Batch{}
	for _, l := range catalog.SeedLevels {
		batch.Queue(`INSERT INTO levels (code, name, description, "order") VALUES ($1, $2, $3, $4)
			ON CONFLICT (code) DO NOTHING`, string(l.Code), l.Name, l.Description, l.Order)
	}
	for _, s := range catalog.SeedSkills {
		batch.Queue(`INSERT INTO skills (code, name, description, icon) VALUES ($1, $2, $3, $4)
			ON CONFLICT (code) DO NOTHING`, string(s.Code), s.Name, s.Description, s.Icon)
	}
	return tx.SendBatch(ctx, batch).Close()
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: STUDENTS & STUDENT_SKILLS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS students (
    id BIGSERIAL PRIMARY KEY,
    telegram_id BIGINT NOT NULL UNIQUE,
    first_name VARCHAR(100) NOT NULL DEFAULT '',
    last_name VARCHAR(100) NOT NULL DEFAULT '',
    username VARCHAR(100) NOT NULL DEFAULT '',
    language_code VARCHAR(10) NOT NULL DEFAULT 'es',
    current_level_id INTEGER NOT NULL REFERENCES levels(id),
    total_lessons INTEGER NOT NULL DEFAULT 0,
    total_minutes INTEGER NOT NULL DEFAULT 0,
    streak_days INTEGER NOT NULL DEFAULT 0,
    last_streak_date TIMESTAMP WITH TIME ZONE,
    registered_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    last_activity TIMESTAMP WITH TIME ZONE,

    CONSTRAINT valid_counters CHECK (total_lessons >= 0 AND total_minutes >= 0 AND streak_days >= 0)
);

CREATE INDEX IF NOT EXISTS idx_students_last_activity ON students(last_activity);
CREATE INDEX IF NOT EXISTS idx_students_registered_at ON students(registered_at);
CREATE INDEX IF NOT EXISTS idx_students_level ON students(current_level_id);

CREATE TABLE IF NOT EXISTS student_skills (
    id BIGSERIAL PRIMARY KEY,
    student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    skill_id INTEGER NOT NULL REFERENCES skills(id),
    level_id INTEGER NOT NULL REFERENCES levels(id),
    score INTEGER NOT NULL DEFAULT 0,
    lessons_completed INTEGER NOT NULL DEFAULT 0,
    last_practiced TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_student_skill UNIQUE (student_id, skill_id),
    CONSTRAINT valid_score CHECK (score >= 0 AND score <= 100)
);
`

const migration002Down = `
DROP TABLE IF EXISTS student_skills;
DROP TABLE IF EXISTS students;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: LESSONS & LESSON_MESSAGES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS lessons (
    id BIGSERIAL PRIMARY KEY,
    student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    level_id INTEGER NOT NULL REFERENCES levels(id),
    topic VARCHAR(200),
    summary TEXT,
    messages_count INTEGER NOT NULL DEFAULT 0,
    duration_minutes INTEGER NOT NULL DEFAULT 0,
    ai_evaluation JSONB,
    skills_practiced JSONB,
    started_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    ended_at TIMESTAMP WITH TIME ZONE
);

CREATE INDEX IF NOT EXISTS idx_lessons_student_started ON lessons(student_id, started_at DESC);
CREATE INDEX IF NOT EXISTS idx_lessons_open ON lessons(student_id) WHERE ended_at IS NULL;

CREATE TABLE IF NOT EXISTS lesson_messages (
    id BIGSERIAL PRIMARY KEY,
    lesson_id BIGINT NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
    role VARCHAR(20) NOT NULL,
    content TEXT NOT NULL,
    audio_file_id VARCHAR(255),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_role CHECK (role IN ('user', 'assistant'))
);

CREATE INDEX IF NOT EXISTS idx_lesson_messages_lesson ON lesson_messages(lesson_id, created_at);
`

const migration003Down = `
DROP TABLE IF EXISTS lesson_messages;
DROP TABLE IF EXISTS lessons;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: ASSESSMENTS
// Placement / progress / level-up tests. The turn cycle does not write here.
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
CREATE TABLE IF NOT EXISTS assessments (
    id BIGSERIAL PRIMARY KEY,
    student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    type VARCHAR(20) NOT NULL,
    level_before_id INTEGER REFERENCES levels(id),
    level_after_id INTEGER REFERENCES levels(id),
    score INTEGER NOT NULL DEFAULT 0,
    passed BOOLEAN NOT NULL DEFAULT FALSE,
    details JSONB,
    taken_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_assessment_type CHECK (type IN ('PLACEMENT', 'PROGRESS', 'LEVEL_UP'))
);

CREATE INDEX IF NOT EXISTS idx_assessments_student ON assessments(student_id, taken_at DESC);
`

const migration004Down = `
DROP TABLE IF EXISTS assessments;
`
