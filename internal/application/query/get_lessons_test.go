package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/englishprofesor/tutor-bot/internal/domain/catalog"
	"github.com/englishprofesor/tutor-bot/internal/domain/lesson"
)

func TestListLessonsQuery_Normalize(t *testing.T) {
	tests := []struct {
		in, want ListLessonsQuery
	}{
		{ListLessonsQuery{}, ListLessonsQuery{Limit: 10}},
		{ListLessonsQuery{Limit: 500, Offset: -3}, ListLessonsQuery{Limit: 50}},
		{ListLessonsQuery{Limit: 20, Offset: 40}, ListLessonsQuery{Limit: 20, Offset: 40}},
	}
	for _, tt := range tests {
		q := tt.in
		q.Normalize()
		assert.Equal(t, tt.want, q)
	}
}

func TestLessonsHandler_List(t *testing.T) {
	ended := testNow
	l := &lesson.Lesson{
		ID: 1, StudentID: 7, StartedAt: testNow.Add(-30 * time.Minute), EndedAt: &ended,
		SkillsPracticed: []catalog.SkillCode{catalog.SkillSpeaking, catalog.SkillGrammar},
	}
	lessons := &stubLessons{lessons: []*lesson.Lesson{l}}

	got, err := NewLessonsHandler(lessons).List(context.Background(), ListLessonsQuery{StudentID: 7, Limit: 99})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"SPEAKING", "GRAMMAR"}, got[0].SkillsPracticed)
	assert.Equal(t, MaxLessonsLimit, lessons.lastLimit)
}

func TestLessonsHandler_Get(t *testing.T) {
	l := &lesson.Lesson{ID: 3, StudentID: 7, StartedAt: testNow}
	lessons := &stubLessons{
		lessons: []*lesson.Lesson{l},
		messages: map[int64][]*lesson.Message{3: {
			{ID: 1, LessonID: 3, Role: lesson.RoleUser, Content: "hi", CreatedAt: testNow},
			{ID: 2, LessonID: 3, Role: lesson.RoleAssistant, Content: "Hello!", CreatedAt: testNow},
		}},
	}
	h := NewLessonsHandler(lessons)

	got, err := h.Get(context.Background(), 7, 3)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "Hello!", got.Messages[1].Content)

	_, err = h.Get(context.Background(), 8, 3)
	assert.ErrorIs(t, err, lesson.ErrLessonForbidden)

	_, err = h.Get(context.Background(), 7, 42)
	assert.ErrorIs(t, err, lesson.ErrLessonNotFound)
}
