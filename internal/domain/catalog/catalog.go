// Package catalog holds the static reference data: CEFR-like levels, tracked
// skills and the vocabulary categories the tutor draws topics from.
// Loaded once at startup and never mutated afterwards.
package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/englishprofesor/tutor-bot/internal/domain/shared"
)

// LevelCode identifies a proficiency level.
type LevelCode string

const (
	LevelPreA1 LevelCode = "PRE_A1"
	LevelA1    LevelCode = "A1"
	LevelA2    LevelCode = "A2"
	LevelB1    LevelCode = "B1"
	LevelB2    LevelCode = "B2"
	LevelC1    LevelCode = "C1"
)

// SkillCode identifies a tracked competency.
type SkillCode string

const (
	SkillSpeaking   SkillCode = "SPEAKING"
	SkillListening  SkillCode = "LISTENING"
	SkillReading    SkillCode = "READING"
	SkillWriting    SkillCode = "WRITING"
	SkillVocabulary SkillCode = "VOCABULARY"
	SkillGrammar    SkillCode = "GRAMMAR"
)

// IsValid reports whether c is one of the six known skills.
func (c SkillCode) IsValid() bool {
	switch c {
	case SkillSpeaking, SkillListening, SkillReading, SkillWriting, SkillVocabulary, SkillGrammar:
		return true
	}
	return false
}

// Level is one step of the ladder, totally ordered by Order.
type Level struct {
	ID          int64     `json:"id"`
	Code        LevelCode `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Order       int       `json:"order"`
}

// Skill is a tracked competency.
type Skill struct {
	ID          int64     `json:"id"`
	Code        SkillCode `json:"code"`
	Name        string    `json:"name"`
	Icon        string    `json:"icon"`
	Description string    `json:"description"`
}

// VocabularyCategory is a topic family used in the tutor instructions.
type VocabularyCategory struct {
	Code   string
	NameES string
}

var (
	ErrLevelNotFound = shared.NewDomainError("catalog", "FindLevel", shared.ErrNotFound, "level not found")
	ErrSkillNotFound = shared.NewDomainError("catalog", "FindSkill", shared.ErrNotFound, "skill not found")
	ErrEmptyCatalog  = shared.NewDomainError("catalog", "Load", shared.ErrInvalidState, "catalog has no levels or skills")
)

// Repository loads reference data from storage.
type Repository interface {
	ListLevels(ctx context.Context) ([]Level, error)
	ListSkills(ctx context.Context) ([]Skill, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// Catalog is an immutable, indexed view of levels and skills.
type Catalog struct {
	levels      []Level // sorted by Order
	skills      []Skill
	levelByID   map[int64]Level
	levelByCode map[LevelCode]Level
	skillByID   map[int64]Skill
	skillByCode map[SkillCode]Skill
}

// New indexes the given rows. Both lists must be non-empty.
func New(levels []Level, skills []Skill) (*Catalog, error) {
	if len(levels) == 0 || len(skills) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		levels:      append([]Level(nil), levels...),
		skills:      append([]Skill(nil), skills...),
		levelByID:   make(map[int64]Level, len(levels)),
		levelByCode: make(map[LevelCode]Level, len(levels)),
		skillByID:   make(map[int64]Skill, len(skills)),
		skillByCode: make(map[SkillCode]Skill, len(skills)),
	}
	sort.SliceStable(c.levels, func(i, j int) bool { return c.levels[i].Order < c.levels[j].Order })

	for _, l := range c.levels {
		if _, dup := c.levelByCode[l.Code]; dup {
			return nil, fmt.Errorf("catalog: duplicate level code %s", l.Code)
		}
		c.levelByID[l.ID] = l
		c.levelByCode[l.Code] = l
	}
	for _, s := range c.skills {
		if _, dup := c.skillByCode[s.Code]; dup {
			return nil, fmt.Errorf("catalog: duplicate skill code %s", s.Code)
		}
		c.skillByID[s.ID] = s
		c.skillByCode[s.Code] = s
	}
	return c, nil
}

// Load reads the catalog from a repository.
func Load(ctx context.Context, repo Repository) (*Catalog, error) {
	levels, err := repo.ListLevels(ctx)
	if err != nil {
		return nil, fmt.Errorf("load levels: %w", err)
	}
	skills, err := repo.ListSkills(ctx)
	if err != nil {
		return nil, fmt.Errorf("load skills: %w", err)
	}
	return New(levels, skills)
}

// Levels returns all levels in ascending order.
func (c *Catalog) Levels() []Level { return append([]Level(nil), c.levels...) }

// Skills returns all skills in storage order.
func (c *Catalog) Skills() []Skill { return append([]Skill(nil), c.skills...) }

// SkillCount is the size of the skill set.
func (c *Catalog) SkillCount() int { return len(c.skills) }

// Lowest returns the entry level (lowest Order).
func (c *Catalog) Lowest() Level { return c.levels[0] }

// Next returns the level with Order == current.Order+1.
// ok is false at the top of the ladder.
func (c *Catalog) Next(current Level) (Level, bool) {
	for _, l := range c.levels {
		if l.Order == current.Order+1 {
			return l, true
		}
	}
	return Level{}, false
}

// LevelByID finds a level by primary key.
func (c *Catalog) LevelByID(id int64) (Level, error) {
	l, ok := c.levelByID[id]
	if !ok {
		return Level{}, ErrLevelNotFound
	}
	return l, nil
}

// LevelByCode finds a level by code.
func (c *Catalog) LevelByCode(code LevelCode) (Level, error) {
	l, ok := c.levelByCode[code]
	if !ok {
		return Level{}, ErrLevelNotFound
	}
	return l, nil
}

// SkillByCode finds a skill by code.
func (c *Catalog) SkillByCode(code SkillCode) (Skill, error) {
	s, ok := c.skillByCode[code]
	if !ok {
		return Skill{}, ErrSkillNotFound
	}
	return s, nil
}

// SkillByID finds a skill by primary key.
func (c *Catalog) SkillByID(id int64) (Skill, error) {
	s, ok := c.skillByID[id]
	if !ok {
		return Skill{}, ErrSkillNotFound
	}
	return s, nil
}
