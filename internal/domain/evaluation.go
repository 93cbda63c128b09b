package domain

import "strings"

// ErrorType categorizes a mistake found in a learner's answer.
type ErrorType string

const (
	ErrorTypeEnglishInArabic  ErrorType = "english_in_arabic"
	ErrorTypeSpellingTranslit ErrorType = "spelling_translit"
	ErrorTypeGrammar          ErrorType = "grammar"
	ErrorTypeVocab            ErrorType = "vocab"
	ErrorTypeOmission         ErrorType = "omission"
	ErrorTypeExtra            ErrorType = "extra"
	ErrorTypeInvalidAnswer    ErrorType = "invalid_answer"
)

// Severity grades how much an error matters.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ErrorAnnotation marks one mistake inside an answer.
type ErrorAnnotation struct {
	Type     ErrorType `json:"type"`
	Token    string    `json:"token"`
	Hint     string    `json:"hint"`
	Severity Severity  `json:"severity"`
}

// QuestionFeedback is the evaluation outcome for a single question.
type QuestionFeedback struct {
	QuestionIndex int               `json:"question_index"`
	IsCorrect     bool              `json:"is_correct"`
	Errors        []ErrorAnnotation `json:"errors"`
	Suggestion    string            `json:"suggestion,omitempty"`
	Confidence    float64           `json:"confidence"`
}

// EvaluationResult is the full outcome of evaluating a quiz attempt. It is a
// read-only value; all accessors below are pure derivations.
type EvaluationResult struct {
	Score           float64            `json:"score"`
	Feedback        []QuestionFeedback `json:"feedback"`
	OverallFeedback string             `json:"overall_feedback"`
}

// errorTypePriority orders error categories from most to least severe for
// MostSevereError. Types not listed rank below all listed ones.
var errorTypePriority = []ErrorType{
	ErrorTypeEnglishInArabic,
	ErrorTypeSpellingTranslit,
	ErrorTypeGrammar,
	ErrorTypeVocab,
	ErrorTypeOmission,
	ErrorTypeExtra,
}

// PassThreshold is the minimum score that counts as passing.
const PassThreshold = 0.7

// ErrorHistogram counts annotations per error type across all feedback.
func (r EvaluationResult) ErrorHistogram() map[ErrorType]int {
	histogram := map[ErrorType]int{}
	for _, fb := range r.Feedback {
		for _, e := range fb.Errors {
			histogram[e.Type]++
		}
	}
	return histogram
}

// MostSevereError selects the highest-priority error annotation across the
// whole result. Ties within a priority level resolve to the first seen;
// annotations of unlisted types are returned only when nothing listed
// appears, again first seen. The second return is false when the result has
// no errors at all.
func (r EvaluationResult) MostSevereError() (ErrorAnnotation, bool) {
	var first *ErrorAnnotation
	for _, fb := range r.Feedback {
		for i := range fb.Errors {
			if first == nil {
				first = &fb.Errors[i]
			}
		}
	}
	if first == nil {
		return ErrorAnnotation{}, false
	}
	for _, wanted := range errorTypePriority {
		for _, fb := range r.Feedback {
			for _, e := range fb.Errors {
				if e.Type == wanted {
					return e, true
				}
			}
		}
	}
	return *first, true
}

// Grade maps the score onto a letter grade.
func (r EvaluationResult) Grade() string {
	return GradeForScore(r.Score)
}

// Passed reports whether the score meets the pass threshold. A score of
// exactly 0.7 passes.
func (r EvaluationResult) Passed() bool {
	return r.Score >= PassThreshold
}

// CorrectCount returns how many questions were judged correct.
func (r EvaluationResult) CorrectCount() int {
	count := 0
	for _, fb := range r.Feedback {
		if fb.IsCorrect {
			count++
		}
	}
	return count
}

// GradeForScore maps a score in [0, 1] onto a letter grade using fixed
// thresholds.
func GradeForScore(score float64) string {
	switch {
	case score >= 0.9:
		return "A"
	case score >= 0.8:
		return "B"
	case score >= 0.7:
		return "C"
	case score >= 0.6:
		return "D"
	default:
		return "F"
	}
}

// OverallFeedbackForScore produces the summary line shown with a result.
func OverallFeedbackForScore(score float64) string {
	switch {
	case score >= 0.9:
		return "Excellent work! Your Lebanese Arabic is really coming along."
	case score >= 0.7:
		return "Good job! A few things to polish, but you're on track."
	case score >= 0.5:
		return "Not bad. Review the feedback below and try again."
	default:
		return "Keep practicing! Go over the lesson once more before retrying."
	}
}

// DedupeAnnotations removes duplicate annotations, where two annotations are
// duplicates when they share a type and a case-insensitive token.
func DedupeAnnotations(annotations []ErrorAnnotation) []ErrorAnnotation {
	type key struct {
		t     ErrorType
		token string
	}
	seen := map[key]bool{}
	deduped := make([]ErrorAnnotation, 0, len(annotations))
	for _, a := range annotations {
		k := key{t: a.Type, token: strings.ToLower(a.Token)}
		if seen[k] {
			continue
		}
		seen[k] = true
		deduped = append(deduped, a)
	}
	return deduped
}

// HasHighSeverity reports whether any annotation is high severity.
func HasHighSeverity(annotations []ErrorAnnotation) bool {
	for _, a := range annotations {
		if a.Severity == SeverityHigh {
			return true
		}
	}
	return false
}
