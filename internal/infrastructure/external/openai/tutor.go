package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/englishprofesor/tutor-bot/internal/domain/conversation"
	"github.com/englishprofesor/tutor-bot/internal/domain/lesson"
	"github.com/englishprofesor/tutor-bot/internal/domain/shared"
)

// Tutor adapts Client to the generation contract of the turn orchestrator.
type Tutor struct {
	client   *Client
	chatTemp float64
	evalTemp float64
	logger   *slog.Logger
}

// NewTutor creates a Tutor. Temperatures default to 0.7 (replies) and 0.3 (evaluation).
func NewTutor(client *Client, chatTemp, evalTemp float64, logger *slog.Logger) *Tutor {
	if chatTemp <= 0 {
		chatTemp = 0.7
	}
	if evalTemp <= 0 {
		evalTemp = 0.3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tutor{client: client, chatTemp: chatTemp, evalTemp: evalTemp, logger: logger.With("component", "tutor")}
}

// Reply generates the tutor answer for the full history.
func (t *Tutor) Reply(ctx context.Context, history []conversation.Message) (string, error) {
	msgs := make([]ChatMessage, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, ChatMessage{Role: string(m.Role), Content: m.Content})
	}

	text, err := t.client.ChatCompletion(ctx, msgs, t.chatTemp)
	if err != nil {
		return "", shared.WrapError("generation", "Reply", shared.ErrExternalService, "tutor reply generation failed", err)
	}
	return text, nil
}

// Evaluate scores a transcript. Malformed JSON is a failure of this call.
func (t *Tutor) Evaluate(ctx context.Context, transcript, levelCode string) (*lesson.Evaluation, error) {
	prompt := fmt.Sprintf(evaluationPrompt, transcript, levelCode)

	raw, err := t.client.ChatCompletion(ctx, []ChatMessage{{Role: "user", Content: prompt}}, t.evalTemp)
	if err != nil {
		return nil, shared.WrapError("generation", "Evaluate", shared.ErrExternalService, "conversation evaluation failed", err)
	}

	eval, err := lesson.ParseEvaluation(raw)
	if err != nil {
		t.logger.Warn("evaluation payload rejected", "error", err)
		return nil, err
	}
	return eval, nil
}

const evaluationPrompt = `Analiza la siguiente conversación de una lección de inglés y proporciona una evaluación estructurada.

Conversación:
%s

Nivel del estudiante: %s

Proporciona tu evaluación en el siguiente formato JSON:
{
    "vocabulary_score": <0-100>,
    "grammar_score": <0-100>,
    "fluency_score": <0-100>,
    "comprehension_score": <0-100>,
    "topics_covered": ["topic1", "topic2"],
    "skills_practiced": ["SPEAKING", "LISTENING", "VOCABULARY", "GRAMMAR"],
    "errors_noted": ["error1", "error2"],
    "recommendations": ["recommendation1", "recommendation2"],
    "ready_for_level_up": <true/false>,
    "summary": "Breve resumen de la lección"
}

Responde SOLO con el JSON, sin texto adicional.`
