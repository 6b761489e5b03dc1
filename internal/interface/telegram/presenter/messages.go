package presenter

import (
	"fmt"
	"strings"

	"github.com/englishprofesor/tutor-bot/internal/domain/catalog"
	"github.com/englishprofesor/tutor-bot/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGES
// Все тексты бота на испанском, разметка - Telegram Markdown (v1).
// ══════════════════════════════════════════════════════════════════════════════

const (
	// ErrorText is the generic reply when an update could not be handled.
	ErrorText = "Lo siento, ocurrió un error. Por favor intenta de nuevo."

	// StudentNotFoundText is sent by commands that need a registered student.
	StudentNotFoundText = "No encontré tu perfil. Usa /start para comenzar."

	// VoiceErrorText is sent when a voice note could not be downloaded or transcribed.
	VoiceErrorText = "Lo siento, no pude procesar tu mensaje de voz. ¿Puedes intentar de nuevo?"

	// PanelText introduces the panel button.
	PanelText = "📱 Accede a tu panel de progreso completo:"

	// NoOpenLessonText answers /end without an open lesson.
	NoOpenLessonText = "No tienes ninguna lección activa. ¡Envíame un mensaje para empezar una!"
)

// HelpText lists the commands.
const HelpText = "📖 *Comandos disponibles:*\n\n" +
	"/start - Iniciar o reiniciar el bot\n" +
	"/progress - Ver tu progreso detallado\n" +
	"/level - Ver información de tu nivel actual\n" +
	"/panel - Obtener enlace a tu panel de progreso\n" +
	"/end - Terminar la lección actual\n" +
	"/help - Mostrar esta ayuda\n\n" +
	"💡 *Consejos:*\n" +
	"• Puedes enviarme texto o notas de voz\n" +
	"• Responderé siempre con audio para practicar tu escucha\n" +
	"• ¡Practica todos los días para mantener tu racha!"

// ─────────────────────────────────────────────────────────────────────────────
// Welcome
// ─────────────────────────────────────────────────────────────────────────────

// WelcomeNew greets a student registered by this /start.
func WelcomeNew(s *student.Student, level catalog.Level) string {
	return fmt.Sprintf("¡Hola %s! 👋\n\n"+
		"Soy tu tutor de inglés personal. Estoy aquí para ayudarte "+
		"a aprender inglés desde cero hasta un nivel avanzado.\n\n"+
		"🎯 Tu nivel actual: *%s*\n\n"+
		"Puedes:\n"+
		"• Enviarme mensajes de texto\n"+
		"• Enviarme notas de voz\n"+
		"• Usar /progress para ver tu progreso\n"+
		"• Usar /help para más comandos\n\n"+
		"¡Empecemos! Escríbeme 'Hello' para comenzar tu primera lección.",
		s.DisplayName(), level.Name)
}

// WelcomeBack greets a returning student.
func WelcomeBack(s *student.Student, level catalog.Level) string {
	return fmt.Sprintf("¡Hola de nuevo, %s! 👋\n\n"+
		"🎯 Tu nivel actual: *%s*\n"+
		"🔥 Racha: %d días\n"+
		"📚 Lecciones completadas: %d\n\n"+
		"¿Listo para continuar aprendiendo? ¡Envíame un mensaje!",
		s.DisplayName(), level.Name, s.StreakDays, s.TotalLessons)
}

// ─────────────────────────────────────────────────────────────────────────────
// Progress
// ─────────────────────────────────────────────────────────────────────────────

const barWidth = 10

// SkillBar renders a score as ten cells: one filled cell per 10 points.
func SkillBar(score int) string {
	filled := score / 10
	if filled < 0 {
		filled = 0
	}
	if filled > barWidth {
		filled = barWidth
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

// Progress renders the /progress card. Skills follow catalog order.
func Progress(s *student.Student, level catalog.Level, cat *catalog.Catalog) string {
	var skills strings.Builder
	for _, sk := range cat.Skills() {
		sp, ok := s.Skill(sk.Code)
		if !ok {
			continue
		}
		fmt.Fprintf(&skills, "• %s: %s %d%%\n", sk.Name, SkillBar(sp.Score), sp.Score)
	}

	name := s.FullName()
	if name == "" {
		name = s.DisplayName()
	}

	return fmt.Sprintf("📊 *Tu Progreso - %s*\n\n"+
		"🎯 Nivel: *%s*\n"+
		"🔥 Racha: %d días\n"+
		"📚 Lecciones: %d\n"+
		"⏱️ Tiempo total: %d minutos\n\n"+
		"*Habilidades:*\n%s\n"+
		"💪 ¡Sigue practicando para subir de nivel!",
		name, level.Name, s.StreakDays, s.TotalLessons, s.TotalMinutes, skills.String())
}

// LevelInfo renders the /level card. next is nil at the top of the ladder.
func LevelInfo(current catalog.Level, next *catalog.Level) string {
	nextText := "¡Ya estás en el nivel máximo!"
	if next != nil {
		nextText = fmt.Sprintf("Próximo nivel: *%s*", next.Name)
	}
	return fmt.Sprintf("🎯 *Tu Nivel Actual*\n\n"+
		"*%s*\n\n"+
		"_%s_\n\n"+
		"%s\n\n"+
		"Para subir de nivel necesitas:\n"+
		"• Puntuación promedio ≥ %d%%\n"+
		"• Al menos %d lecciones en este nivel",
		current.Name, current.Description, nextText,
		student.LevelUpMinScore, student.LevelUpMinLessons)
}

// ─────────────────────────────────────────────────────────────────────────────
// Conversation
// ─────────────────────────────────────────────────────────────────────────────

// HeardText echoes a voice transcript back to the student.
func HeardText(transcript string) string {
	return fmt.Sprintf("🎤 _Escuché: \"%s\"_", transcript)
}

// LessonEnded summarises a lesson closed with /end.
func LessonEnded(minutes, messages, totalLessons int, practiced []string) string {
	var b strings.Builder
	b.WriteString("✅ *Lección terminada*\n\n")
	fmt.Fprintf(&b, "⏱️ Duración: %d minutos\n", minutes)
	fmt.Fprintf(&b, "💬 Mensajes: %d\n", messages)
	fmt.Fprintf(&b, "📚 Lecciones completadas: %d\n", totalLessons)
	if len(practiced) > 0 {
		fmt.Fprintf(&b, "🧠 Practicaste: %s\n", strings.Join(practiced, ", "))
	}
	b.WriteString("\n¡Buen trabajo! Nos vemos en la próxima lección.")
	return b.String()
}
