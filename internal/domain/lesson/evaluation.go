package lesson

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/englishprofesor/tutor-bot/internal/domain/catalog"
	"github.com/englishprofesor/tutor-bot/internal/domain/shared"
)

// Evaluation is the structured assessment produced by the generation service.
// Scores are pointers: a missing field leaves the matching skill untouched.
type Evaluation struct {
	VocabularyScore    *float64 `json:"vocabulary_score"`
	GrammarScore       *float64 `json:"grammar_score"`
	FluencyScore       *float64 `json:"fluency_score"`
	ComprehensionScore *float64 `json:"comprehension_score"`
	TopicsCovered      []string `json:"topics_covered"`
	SkillsPracticed    []string `json:"skills_practiced"`
	ErrorsNoted        []string `json:"errors_noted"`
	Recommendations    []string `json:"recommendations"`
	ReadyForLevelUp    bool     `json:"ready_for_level_up"`
	Summary            string   `json:"summary"`
}

// ParseEvaluation decodes the model output. A surrounding ```json fence is
// tolerated; anything else that is not a single JSON object is rejected.
func ParseEvaluation(raw string) (*Evaluation, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return nil, ErrInvalidEvaluation
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	var e Evaluation
	if err := dec.Decode(&e); err != nil {
		return nil, shared.WrapError("lesson", "ParseEvaluation", shared.ErrValidation, "malformed evaluation payload", err)
	}
	if dec.More() {
		return nil, ErrInvalidEvaluation
	}
	return &e, nil
}

// SkillScores maps evaluation fields onto skills:
// vocabulary→VOCABULARY, grammar→GRAMMAR, fluency→SPEAKING, comprehension→LISTENING.
// Scores are clamped to 0..100 and keep their fraction; smoothing floors later.
func (e *Evaluation) SkillScores() map[catalog.SkillCode]float64 {
	out := make(map[catalog.SkillCode]float64, 4)
	put := func(code catalog.SkillCode, v *float64) {
		if v == nil || math.IsNaN(*v) {
			return
		}
		out[code] = math.Max(0, math.Min(100, *v))
	}
	put(catalog.SkillVocabulary, e.VocabularyScore)
	put(catalog.SkillGrammar, e.GrammarScore)
	put(catalog.SkillSpeaking, e.FluencyScore)
	put(catalog.SkillListening, e.ComprehensionScore)
	return out
}

// PracticedSkills returns the known skill codes from skills_practiced,
// upper-cased and de-duplicated, in the order given.
func (e *Evaluation) PracticedSkills() []catalog.SkillCode {
	out := make([]catalog.SkillCode, 0, len(e.SkillsPracticed))
	seen := make(map[catalog.SkillCode]struct{}, len(e.SkillsPracticed))
	for _, s := range e.SkillsPracticed {
		code := catalog.SkillCode(strings.ToUpper(strings.TrimSpace(s)))
		if !code.IsValid() {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // drop language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
