package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bold", "Say **hello** now", "Say hello now"},
		{"underscore bold", "__Great__ job", "Great job"},
		{"italic star", "This is *very* good", "This is very good"},
		{"italic underscore", "_Escuché_ bien", "Escuché bien"},
		{"code span", "Use `I am` here", "Use I am here"},
		{"link", "See [the guide](https://example.com) please", "See the guide please"},
		{"header", "## Lesson 1\nHello", "Lesson 1\nHello"},
		{"bullets", "- one\n* two\n3. three", "one\ntwo\nthree"},
		{"plain", "Hola, ¿cómo estás?", "Hola, ¿cómo estás?"},
		{"snake_case kept", "file_name_here", "file_name_here"},
		{"underscore after accented letter kept", "está_bien_hoy", "está_bien_hoy"},
		{"underscore after ñ kept", "año_niño_x", "año_niño_x"},
		{"italic accented word", "Dijiste _café_ bien", "Dijiste café bien"},
		{"italic after opening sign", "¡_Muy_ bien!", "¡Muy bien!"},
		{"level up suffix", "Bien.\n\n🎉 ¡Felicidades! ¡Has subido a *Básico*!", "Bien.\n\n🎉 ¡Felicidades! ¡Has subido a Básico!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripMarkdown(tt.in))
		})
	}
}
