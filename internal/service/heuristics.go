package service

import (
	"fmt"
	"strings"
	"unicode"

	"leblingo/internal/domain"
)

// englishStopWords are common English words that should never appear in a
// Lebanese Arabic answer. Matching any of them is a high-severity error.
var englishStopWords = map[string]bool{
	"the": true, "and": true, "is": true, "are": true, "was": true,
	"were": true, "have": true, "has": true, "had": true,
	"will": true, "would": true, "could": true, "should": true,
	"can": true, "may": true, "might": true,
	"yes": true, "no": true, "ok": true, "okay": true, "please": true,
	"thank": true, "you": true, "me": true, "my": true,
	"your": true, "his": true, "her": true, "we": true, "they": true,
	"them": true, "this": true, "that": true,
	"here": true, "there": true, "where": true, "when": true,
	"what": true, "how": true, "why": true, "who": true,
}

// transliterationVariants maps frequent nonstandard spellings to the house
// transliteration. Only genuine variants belong here; identical pairs would
// never produce an annotation.
var transliterationVariants = map[string]string{
	"shou":    "shu",
	"shoo":    "shu",
	"yala":    "yalla",
	"yallah":  "yalla",
	"marhaba": "mar7aba",
}

// transliterationDigits are the digits that stand in for Arabic sounds.
const transliterationDigits = "235789"

// heuristicAnnotations runs every lexical check over a learner's answer.
// The checks are intentionally cheap; anything subtler is the judge's job.
func heuristicAnnotations(answer, expected string) []domain.ErrorAnnotation {
	annotations := detectEnglishWords(answer)
	annotations = append(annotations, detectSpellingVariants(answer)...)
	annotations = append(annotations, detectMissingTransliterationDigits(answer, expected)...)
	return domain.DedupeAnnotations(annotations)
}

// detectEnglishWords flags stop-list English words in the answer.
func detectEnglishWords(answer string) []domain.ErrorAnnotation {
	var annotations []domain.ErrorAnnotation
	for _, word := range answerWords(answer) {
		lowered := strings.ToLower(word)
		if !englishStopWords[lowered] {
			continue
		}
		annotations = append(annotations, domain.ErrorAnnotation{
			Type:     domain.ErrorTypeEnglishInArabic,
			Token:    lowered,
			Hint:     fmt.Sprintf("Use Lebanese Arabic instead of English word '%s'", lowered),
			Severity: domain.SeverityHigh,
		})
	}
	return annotations
}

// detectSpellingVariants flags known nonstandard transliteration spellings.
func detectSpellingVariants(answer string) []domain.ErrorAnnotation {
	var annotations []domain.ErrorAnnotation
	for _, word := range answerWords(answer) {
		preferred, found := transliterationVariants[strings.ToLower(word)]
		if !found {
			continue
		}
		annotations = append(annotations, domain.ErrorAnnotation{
			Type:     domain.ErrorTypeSpellingTranslit,
			Token:    word,
			Hint:     fmt.Sprintf("Consider using '%s' instead of '%s'", preferred, word),
			Severity: domain.SeverityMedium,
		})
	}
	return annotations
}

// detectMissingTransliterationDigits flags an answer written without any of
// the sound digits when the expected answer uses them.
func detectMissingTransliterationDigits(answer, expected string) []domain.ErrorAnnotation {
	if !strings.ContainsAny(expected, transliterationDigits) || strings.ContainsAny(answer, transliterationDigits) {
		return nil
	}
	return []domain.ErrorAnnotation{{
		Type:     domain.ErrorTypeSpellingTranslit,
		Token:    answer,
		Hint:     "Lebanese Arabic transliteration should include numbers for Arabic sounds (2,3,5,7,8,9)",
		Severity: domain.SeverityMedium,
	}}
}

// answerWords splits an answer into words, keeping the learner's casing.
func answerWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
