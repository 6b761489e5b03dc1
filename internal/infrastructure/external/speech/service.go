// Package speech turns tutor replies into voice notes and voice notes into text.
// Providers are interchangeable; the Service adds markdown stripping, circuit
// breaking and error classification on top of them.
package speech

import (
	"context"
	"log/slog"
	"strings"

	"github.com/englishprofesor/tutor-bot/internal/domain/shared"
	"github.com/englishprofesor/tutor-bot/pkg/circuitbreaker"
)

// Synthesizer is a TTS provider.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Transcriber is an STT provider. filename hints the container format.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Service is the speech facade used by the application layer.
type Service struct {
	tts      Synthesizer
	stt      Transcriber
	ttsBreak *circuitbreaker.CircuitBreaker
	sttBreak *circuitbreaker.CircuitBreaker
	logger   *slog.Logger
}

// NewService wires providers. Breakers may be nil.
func NewService(tts Synthesizer, stt Transcriber, ttsBreaker, sttBreaker *circuitbreaker.CircuitBreaker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		tts:      tts,
		stt:      stt,
		ttsBreak: ttsBreaker,
		sttBreak: sttBreaker,
		logger:   logger.With("component", "speech"),
	}
}

// Synthesize strips markdown and renders text as audio.
// Empty text after stripping yields no audio and no error.
func (s *Service) Synthesize(ctx context.Context, text string) ([]byte, error) {
	clean := StripMarkdown(text)
	if clean == "" {
		return nil, nil
	}

	var audio []byte
	err := execute(ctx, s.ttsBreak, func(ctx context.Context) error {
		var err error
		audio, err = s.tts.Synthesize(ctx, clean)
		return err
	})
	if err != nil {
		s.logger.Warn("synthesis failed", "error", err)
		return nil, shared.WrapError("speech", "Synthesize", shared.ErrExternalService, "speech synthesis failed", err)
	}
	return audio, nil
}

// Transcribe converts a voice note to text.
func (s *Service) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	var text string
	err := execute(ctx, s.sttBreak, func(ctx context.Context) error {
		var err error
		text, err = s.stt.Transcribe(ctx, audio, filename)
		return err
	})
	if err != nil {
		s.logger.Warn("transcription failed", "error", err)
		return "", shared.WrapError("speech", "Transcribe", shared.ErrExternalService, "speech transcription failed", err)
	}
	text = strings.TrimSpace(text)
	if text != "" {
		s.logger.Info("audio transcribed", "preview", preview(text, 50))
	}
	return text, nil
}

func execute(ctx context.Context, cb *circuitbreaker.CircuitBreaker, fn func(context.Context) error) error {
	if cb == nil {
		return fn(ctx)
	}
	return cb.Execute(ctx, fn)
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
