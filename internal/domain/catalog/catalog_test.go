package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_LadderOrder(t *testing.T) {
	c := Default()

	assert.Equal(t, LevelPreA1, c.Lowest().Code)
	assert.Equal(t, 6, c.SkillCount())

	next, ok := c.Next(c.Lowest())
	require.True(t, ok)
	assert.Equal(t, LevelA1, next.Code)

	top, err := c.LevelByCode(LevelC1)
	require.NoError(t, err)
	_, ok = c.Next(top)
	assert.False(t, ok, "C1 is the ceiling")
}

func TestNew_SortsLevelsByOrder(t *testing.T) {
	c, err := New(
		[]Level{{ID: 10, Code: LevelA1, Order: 1}, {ID: 20, Code: LevelPreA1, Order: 0}},
		[]Skill{{ID: 1, Code: SkillGrammar}},
	)
	require.NoError(t, err)
	assert.Equal(t, int64(20), c.Lowest().ID)
}

func TestNew_Rejects(t *testing.T) {
	_, err := New(nil, SeedSkills)
	assert.ErrorIs(t, err, ErrEmptyCatalog)

	_, err = New([]Level{{Code: LevelA1}, {Code: LevelA1, Order: 1}}, SeedSkills)
	assert.Error(t, err)
}

func TestLookups(t *testing.T) {
	c := Default()

	s, err := c.SkillByCode(SkillVocabulary)
	require.NoError(t, err)
	assert.Equal(t, "library", s.Icon)

	_, err = c.SkillByCode("DANCING")
	assert.ErrorIs(t, err, ErrSkillNotFound)

	_, err = c.LevelByID(999)
	assert.ErrorIs(t, err, ErrLevelNotFound)
}
