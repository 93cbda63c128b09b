package service

import (
	"testing"

	"leblingo/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func annotationTypes(annotations []domain.ErrorAnnotation) []domain.ErrorType {
	types := make([]domain.ErrorType, 0, len(annotations))
	for _, a := range annotations {
		types = append(types, a.Type)
	}
	return types
}

func TestHeuristicsCleanAnswer(t *testing.T) {
	assert.Empty(t, heuristicAnnotations("kifak el yom", "kifak el yom"))
}

func TestHeuristicsEnglishStopWords(t *testing.T) {
	annotations := heuristicAnnotations("ana the mni7a and ok", "ana mni7a")
	require.Len(t, annotations, 3)
	for _, a := range annotations {
		assert.Equal(t, domain.ErrorTypeEnglishInArabic, a.Type)
		assert.Equal(t, domain.SeverityHigh, a.Severity)
	}
	assert.Equal(t, "the", annotations[0].Token)
	assert.Equal(t, "and", annotations[1].Token)
	assert.Equal(t, "ok", annotations[2].Token)
}

func TestHeuristicsEnglishDetectionIsCaseInsensitive(t *testing.T) {
	annotations := heuristicAnnotations("The ahwe", "el ahwe")
	require.Len(t, annotations, 1)
	assert.Equal(t, "the", annotations[0].Token)
}

func TestHeuristicsTransliterationVariants(t *testing.T) {
	annotations := heuristicAnnotations("shou baddak", "shu baddak")
	require.Len(t, annotations, 1)
	assert.Equal(t, domain.ErrorTypeSpellingTranslit, annotations[0].Type)
	assert.Equal(t, domain.SeverityMedium, annotations[0].Severity)
	assert.Equal(t, "shou", annotations[0].Token)
	assert.Contains(t, annotations[0].Hint, "'shu'")
}

func TestHeuristicsMissingTransliterationDigits(t *testing.T) {
	annotations := heuristicAnnotations("marhaba habibi", "mar7aba 7abibi")
	types := annotationTypes(annotations)
	assert.Contains(t, types, domain.ErrorTypeSpellingTranslit)

	// An answer that already uses sound digits is not flagged for them.
	annotations = heuristicAnnotations("mar7aba", "mar7aba 7abibi")
	assert.Empty(t, annotations)

	// Nothing to flag when the expected answer has no digits either.
	annotations = heuristicAnnotations("kifak", "kifak")
	assert.Empty(t, annotations)
}

func TestHeuristicsDeduplicatesRepeatedTokens(t *testing.T) {
	annotations := heuristicAnnotations("the the the", "el")
	assert.Len(t, annotations, 1)
}
