package presenter

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/englishprofesor/tutor-bot/internal/domain/catalog"
	"github.com/englishprofesor/tutor-bot/internal/domain/student"
)

func TestSkillBar(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{0, "░░░░░░░░░░"},
		{9, "░░░░░░░░░░"},
		{10, "█░░░░░░░░░"},
		{45, "████░░░░░░"},
		{100, "██████████"},
		{130, "██████████"},
		{-5, "░░░░░░░░░░"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SkillBar(tt.score), "score %d", tt.score)
	}
}

func TestPanelURL(t *testing.T) {
	assert.Equal(t, "http://localhost:3000?telegram_id=42", PanelURL("http://localhost:3000", 42))
	assert.Equal(t, "https://panel.example.com?telegram_id=42", PanelURL("https://panel.example.com/", 42))
	assert.Equal(t, "https://x.io/app?lang=es&telegram_id=7", PanelURL("https://x.io/app?lang=es", 7))
}

func TestPanelKeyboard_Markup(t *testing.T) {
	m := PanelKeyboard(PanelButton, "http://localhost:3000", 42).Markup()
	require.Len(t, m.InlineKeyboard, 1)
	require.Len(t, m.InlineKeyboard[0], 1)

	btn := m.InlineKeyboard[0][0]
	assert.Equal(t, "🌐 Abrir Panel", btn.Text)
	require.NotNil(t, btn.URL)
	assert.Equal(t, "http://localhost:3000?telegram_id=42", *btn.URL)
}

func newStudent(t *testing.T, cat *catalog.Catalog) *student.Student {
	t.Helper()
	s, err := student.NewStudent(student.Profile{TelegramID: 42, FirstName: "Ana", LastName: "García"},
		cat, time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return s
}

func TestProgress(t *testing.T) {
	cat := catalog.Default()
	s := newStudent(t, cat)
	s.StreakDays = 3
	s.TotalLessons = 7
	s.TotalMinutes = 95
	s.Skills[catalog.SkillGrammar].Score = 45

	text := Progress(s, cat.Lowest(), cat)

	assert.Contains(t, text, "📊 *Tu Progreso - Ana García*")
	assert.Contains(t, text, "🎯 Nivel: *Pre A1 - Principiante*")
	assert.Contains(t, text, "🔥 Racha: 3 días")
	assert.Contains(t, text, "📚 Lecciones: 7")
	assert.Contains(t, text, "⏱️ Tiempo total: 95 minutos")
	assert.Contains(t, text, "• Grammar: ████░░░░░░ 45%")
	assert.Contains(t, text, "• Speaking: ░░░░░░░░░░ 0%")

	// порядок навыков как в каталоге
	assert.Less(t, strings.Index(text, "Speaking"), strings.Index(text, "Grammar"))
}

func TestLevelInfo(t *testing.T) {
	cat := catalog.Default()
	levels := cat.Levels()

	text := LevelInfo(levels[0], &levels[1])
	assert.Contains(t, text, "*Pre A1 - Principiante*")
	assert.Contains(t, text, "Próximo nivel: *A1 - Elemental*")
	assert.Contains(t, text, "• Puntuación promedio ≥ 75%")
	assert.Contains(t, text, "• Al menos 10 lecciones en este nivel")

	top := LevelInfo(levels[len(levels)-1], nil)
	assert.Contains(t, top, "¡Ya estás en el nivel máximo!")
}

func TestWelcome(t *testing.T) {
	cat := catalog.Default()
	s := newStudent(t, cat)

	assert.Contains(t, WelcomeNew(s, cat.Lowest()), "¡Hola Ana! 👋")
	back := WelcomeBack(s, cat.Lowest())
	assert.Contains(t, back, "¡Hola de nuevo, Ana! 👋")
	assert.Contains(t, back, "🔥 Racha: 1 días")
}

func TestLessonEnded(t *testing.T) {
	text := LessonEnded(12, 8, 4, []string{"Speaking", "Grammar"})
	assert.Contains(t, text, "⏱️ Duración: 12 minutos")
	assert.Contains(t, text, "💬 Mensajes: 8")
	assert.Contains(t, text, "🧠 Practicaste: Speaking, Grammar")

	assert.NotContains(t, LessonEnded(1, 2, 1, nil), "Practicaste")
}

func TestHelpText_ListsEnd(t *testing.T) {
	assert.Contains(t, HelpText, "/end - Terminar la lección actual")
}
