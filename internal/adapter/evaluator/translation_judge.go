package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"leblingo/internal/domain"
	"leblingo/internal/logger"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

// judgeTemperature is kept near zero so verdicts are stable across retries.
const judgeTemperature = 0.1

const llmTimeout = 20 * time.Second

// translationJudge implements domain.TranslationJudge
type translationJudge struct {
	model llms.Model
}

// NewTranslationJudge creates a judge backed by the given model.
func NewTranslationJudge(model llms.Model) domain.TranslationJudge {
	return &translationJudge{model: model}
}

// llmVerdict mirrors the JSON object the model is instructed to return.
type llmVerdict struct {
	IsCorrect  bool    `json:"is_correct"`
	Confidence float64 `json:"confidence"`
	Errors     []struct {
		Type     string `json:"type"`
		Token    string `json:"token"`
		Hint     string `json:"hint"`
		Severity string `json:"severity"`
	} `json:"errors"`
	Suggestion string `json:"suggestion"`
	Rationale  string `json:"rationale"`
}

// JudgeTranslation asks the model whether the learner's answer is an
// acceptable translation. When the model is unreachable or returns garbage,
// the judge falls back to a word-by-word comparison instead of failing the
// evaluation.
func (j *translationJudge) JudgeTranslation(ctx context.Context, question, expected, userAnswer string) (*domain.TranslationJudgment, error) {
	l := logger.Get()
	l.Info("Judging translation with LLM",
		zap.String("question", question))

	prompt := fmt.Sprintf(`You are a Lebanese Arabic teacher grading a learner's translation. Decide whether the learner's answer is an acceptable Lebanese Arabic translation. Respond with ONLY a JSON object in the following format:
{
    "is_correct": false,
    "confidence": 0.0,
    "errors": [{"type": "vocab", "token": "word", "hint": "short hint here", "severity": "medium"}],
    "suggestion": "a corrected answer, if one is needed",
    "rationale": "one sentence explaining the verdict"
}

Question: %s
Expected Answer: %s
Learner's Answer: %s

Rules:
1. Accept transliteration spelling variants when the pronunciation matches (7 for ha, 3 for ayn, 2 for hamza)
2. "type" must be one of: english_in_arabic, spelling_translit, grammar, vocab, omission, extra
3. "severity" must be one of: low, medium, high
4. "confidence" must be between 0 and 1
5. "errors" must be empty when is_correct is true`, question, expected, userAnswer)

	rawResponse, err := j.callLLM(ctx, prompt)
	if err != nil {
		l.Warn("LLM unavailable, falling back to lexical comparison", zap.Error(err))
		return fallbackJudgment(expected, userAnswer), nil
	}

	l.Debug("Raw LLM response received", zap.String("raw_response", rawResponse))

	cleanedResponse := strings.TrimSpace(rawResponse)
	if thinkStart := strings.Index(cleanedResponse, "<think>"); thinkStart != -1 {
		if thinkEnd := strings.Index(cleanedResponse, "</think>"); thinkEnd != -1 && thinkEnd > thinkStart {
			cleanedResponse = cleanedResponse[:thinkStart] + cleanedResponse[thinkEnd+len("</think>"):]
			cleanedResponse = strings.TrimSpace(cleanedResponse)
		}
	}
	cleanedResponse = strings.TrimPrefix(cleanedResponse, "```json")
	cleanedResponse = strings.TrimPrefix(cleanedResponse, "```")
	cleanedResponse = strings.TrimSuffix(cleanedResponse, "```")
	cleanedResponse = strings.TrimSpace(cleanedResponse)

	jsonStart := strings.Index(cleanedResponse, "{")
	jsonEnd := strings.LastIndex(cleanedResponse, "}")
	if jsonStart == -1 || jsonEnd <= jsonStart {
		l.Warn("No JSON object in LLM verdict, falling back to lexical comparison",
			zap.String("cleaned_response", cleanedResponse))
		return fallbackJudgment(expected, userAnswer), nil
	}

	var verdict llmVerdict
	if err := json.Unmarshal([]byte(cleanedResponse[jsonStart:jsonEnd+1]), &verdict); err != nil {
		l.Warn("Failed to unmarshal LLM verdict, falling back to lexical comparison",
			zap.Error(err),
			zap.String("json_string_tried_to_parse", cleanedResponse[jsonStart:jsonEnd+1]))
		return fallbackJudgment(expected, userAnswer), nil
	}

	judgment := &domain.TranslationJudgment{
		IsCorrect:  verdict.IsCorrect,
		Confidence: clampConfidence(verdict.Confidence),
		Suggestion: strings.TrimSpace(verdict.Suggestion),
		Rationale:  strings.TrimSpace(verdict.Rationale),
	}
	for _, e := range verdict.Errors {
		errorType, ok := parseErrorType(e.Type)
		if !ok {
			l.Debug("Dropping annotation with unknown type", zap.String("type", e.Type))
			continue
		}
		judgment.Errors = append(judgment.Errors, domain.ErrorAnnotation{
			Type:     errorType,
			Token:    strings.TrimSpace(e.Token),
			Hint:     strings.TrimSpace(e.Hint),
			Severity: parseSeverity(e.Severity),
		})
	}
	judgment.Errors = domain.DedupeAnnotations(judgment.Errors)

	return judgment, nil
}

func (j *translationJudge) callLLM(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()

	response, err := j.model.Call(ctx, prompt, llms.WithTemperature(judgeTemperature))
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("LLM request timed out: %w", err)
		}
		return "", fmt.Errorf("LLM call failed: %w", err)
	}
	return response, nil
}

// fallbackJudgment compares the answers word by word after stripping
// punctuation and case. Same word count with at most one differing word
// counts as correct.
func fallbackJudgment(expected, userAnswer string) *domain.TranslationJudgment {
	expectedWords := normalizeWords(expected)
	answerWords := normalizeWords(userAnswer)

	correct := false
	if len(expectedWords) == len(answerWords) {
		differing := 0
		for i := range expectedWords {
			if expectedWords[i] != answerWords[i] {
				differing++
			}
		}
		correct = differing <= 1
	}

	judgment := &domain.TranslationJudgment{
		IsCorrect:  correct,
		Confidence: 0.5,
		Rationale:  "Compared word by word while the model was unavailable.",
	}
	if !correct {
		judgment.Suggestion = fmt.Sprintf("Expected: %s", strings.TrimSpace(expected))
	}
	return judgment
}

func normalizeWords(s string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		}
	}
	return strings.Fields(b.String())
}

func parseErrorType(s string) (domain.ErrorType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "english_in_arabic", "english":
		return domain.ErrorTypeEnglishInArabic, true
	case "spelling_translit", "spelling", "transliteration":
		return domain.ErrorTypeSpellingTranslit, true
	case "grammar":
		return domain.ErrorTypeGrammar, true
	case "vocab", "vocabulary":
		return domain.ErrorTypeVocab, true
	case "omission":
		return domain.ErrorTypeOmission, true
	case "extra":
		return domain.ErrorTypeExtra, true
	}
	return "", false
}

func parseSeverity(s string) domain.Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return domain.SeverityLow
	case "high":
		return domain.SeverityHigh
	default:
		return domain.SeverityMedium
	}
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

var _ domain.TranslationJudge = (*translationJudge)(nil)
