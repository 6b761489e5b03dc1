package postgres

import (
	"context"
	"fmt"

	"github.com/englishprofesor/tutor-bot/internal/domain/catalog"
)

// CatalogRepository reads levels and skills.
type CatalogRepository struct {
	conn *Connection
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(conn *Connection) *CatalogRepository {
	return &CatalogRepository{conn: conn}
}

// ListLevels returns levels ordered by "order".
func (r *CatalogRepository) ListLevels(ctx context.Context) ([]catalog.Level, error) {
	rows, err := r.conn.Query(ctx, `SELECT id, code, name, description, "order" FROM levels ORDER BY "order"`)
	if err != nil {
		return nil, fmt.Errorf("failed to query levels: %w", err)
	}
	defer rows.Close()

	var out []catalog.Level
	for rows.Next() {
		var l catalog.Level
		var code string
		if err := rows.Scan(&l.ID, &code, &l.Name, &l.Description, &l.Order); err != nil {
			return nil, fmt.Errorf("failed to scan level: %w", err)
		}
		l.Code = catalog.LevelCode(code)
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListSkills returns skills ordered by id.
func (r *CatalogRepository) ListSkills(ctx context.Context) ([]catalog.Skill, error) {
	rows, err := r.conn.Query(ctx, `SELECT id, code, name, description, icon FROM skills ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query skills: %w", err)
	}
	defer rows.Close()

	var out []catalog.Skill
	for rows.Next() {
		var s catalog.Skill
		var code string
		if err := rows.Scan(&s.ID, &code, &s.Name, &s.Description, &s.Icon); err != nil {
			return nil, fmt.Errorf("failed to scan skill: %w", err)
		}
		s.Code = catalog.SkillCode(code)
		out = append(out, s)
	}
	return out, rows.Err()
}
