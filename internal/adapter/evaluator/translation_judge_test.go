package evaluator

import (
	"context"
	"errors"
	"os"
	"testing"

	"leblingo/internal/config"
	"leblingo/internal/domain"
	"leblingo/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(config.LoggerConfig{}); err != nil {
		panic("Failed to initialize logger for tests: " + err.Error())
	}

	exitVal := m.Run()

	_ = logger.Sync()
	os.Exit(exitVal)
}

// MockModel is a mock type for the llms.Model interface
type MockModel struct {
	mock.Mock
}

func (m *MockModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	args := m.Called(ctx, messages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llms.ContentResponse), args.Error(1)
}

var _ llms.Model = (*MockModel)(nil)

func TestTranslationJudge_JudgeTranslation(t *testing.T) {
	ctx := context.Background()

	t.Run("correct verdict", func(t *testing.T) {
		mockModel := new(MockModel)
		judge := NewTranslationJudge(mockModel)

		mockModel.On("Call", mock.Anything, mock.Anything).
			Return(`{"is_correct": true, "confidence": 0.95, "errors": [], "suggestion": "", "rationale": "Accurate translation."}`, nil).Once()

		judgment, err := judge.JudgeTranslation(ctx, "Translate 'hello'", "marhaba", "mar7aba")
		require.NoError(t, err)
		assert.True(t, judgment.IsCorrect)
		assert.InDelta(t, 0.95, judgment.Confidence, 0.001)
		assert.Empty(t, judgment.Errors)
		mockModel.AssertExpectations(t)
	})

	t.Run("incorrect verdict with annotations", func(t *testing.T) {
		mockModel := new(MockModel)
		judge := NewTranslationJudge(mockModel)

		response := `<think>the learner used an English word</think>
{"is_correct": false, "confidence": 0.9, "errors": [
	{"type": "english_in_arabic", "token": "hello", "hint": "Use 'marhaba' instead", "severity": "high"},
	{"type": "vocabulary", "token": "ktir", "hint": "Not needed here", "severity": "low"},
	{"type": "made_up_type", "token": "x", "hint": "", "severity": "low"}
], "suggestion": "marhaba", "rationale": "Mixed English into the answer."}`
		mockModel.On("Call", mock.Anything, mock.Anything).Return(response, nil).Once()

		judgment, err := judge.JudgeTranslation(ctx, "Translate 'hello'", "marhaba", "hello ktir")
		require.NoError(t, err)
		assert.False(t, judgment.IsCorrect)
		require.Len(t, judgment.Errors, 2, "unknown error types are dropped")
		assert.Equal(t, domain.ErrorTypeEnglishInArabic, judgment.Errors[0].Type)
		assert.Equal(t, domain.SeverityHigh, judgment.Errors[0].Severity)
		assert.Equal(t, domain.ErrorTypeVocab, judgment.Errors[1].Type)
		assert.Equal(t, "marhaba", judgment.Suggestion)
	})

	t.Run("duplicate annotations collapse", func(t *testing.T) {
		mockModel := new(MockModel)
		judge := NewTranslationJudge(mockModel)

		response := `{"is_correct": false, "confidence": 0.8, "errors": [
	{"type": "spelling_translit", "token": "Shou", "hint": "", "severity": "medium"},
	{"type": "spelling_translit", "token": "shou", "hint": "", "severity": "low"}
], "suggestion": "", "rationale": ""}`
		mockModel.On("Call", mock.Anything, mock.Anything).Return(response, nil).Once()

		judgment, err := judge.JudgeTranslation(ctx, "q", "shu", "shou")
		require.NoError(t, err)
		assert.Len(t, judgment.Errors, 1)
	})

	t.Run("confidence is clamped", func(t *testing.T) {
		mockModel := new(MockModel)
		judge := NewTranslationJudge(mockModel)

		mockModel.On("Call", mock.Anything, mock.Anything).
			Return(`{"is_correct": true, "confidence": 3.2, "errors": [], "suggestion": "", "rationale": ""}`, nil).Once()

		judgment, err := judge.JudgeTranslation(ctx, "q", "marhaba", "marhaba")
		require.NoError(t, err)
		assert.Equal(t, 1.0, judgment.Confidence)
	})

	t.Run("model error falls back to lexical comparison", func(t *testing.T) {
		mockModel := new(MockModel)
		judge := NewTranslationJudge(mockModel)

		mockModel.On("Call", mock.Anything, mock.Anything).
			Return("", errors.New("connection refused")).Once()

		judgment, err := judge.JudgeTranslation(ctx, "q", "kifak el yom", "kifak el yom")
		require.NoError(t, err)
		assert.True(t, judgment.IsCorrect)
		assert.InDelta(t, 0.5, judgment.Confidence, 0.001)
	})

	t.Run("garbage response falls back to lexical comparison", func(t *testing.T) {
		mockModel := new(MockModel)
		judge := NewTranslationJudge(mockModel)

		mockModel.On("Call", mock.Anything, mock.Anything).
			Return("I am not sure how to grade that.", nil).Once()

		judgment, err := judge.JudgeTranslation(ctx, "q", "kifak", "betrayal of expectations")
		require.NoError(t, err)
		assert.False(t, judgment.IsCorrect)
		assert.Contains(t, judgment.Suggestion, "Expected: kifak")
	})
}

func TestFallbackJudgment(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		answer   string
		correct  bool
	}{
		{"identical", "kifak el yom", "kifak el yom", true},
		{"case and punctuation ignored", "Kifak, el yom?", "kifak el yom", true},
		{"one word differs", "kifak el yom", "kifak il yom", true},
		{"two words differ", "kifak el yom", "shlonak hal yom", false},
		{"different word count", "kifak el yom", "kifak", false},
		{"empty answer", "kifak", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			judgment := fallbackJudgment(tt.expected, tt.answer)
			assert.Equal(t, tt.correct, judgment.IsCorrect)
		})
	}
}

func TestParseErrorType(t *testing.T) {
	for input, want := range map[string]domain.ErrorType{
		"english_in_arabic": domain.ErrorTypeEnglishInArabic,
		"english":           domain.ErrorTypeEnglishInArabic,
		"spelling":          domain.ErrorTypeSpellingTranslit,
		"transliteration":   domain.ErrorTypeSpellingTranslit,
		"Grammar":           domain.ErrorTypeGrammar,
		"vocabulary":        domain.ErrorTypeVocab,
		"omission":          domain.ErrorTypeOmission,
		"extra":             domain.ErrorTypeExtra,
	} {
		got, ok := parseErrorType(input)
		assert.True(t, ok, "input %q", input)
		assert.Equal(t, want, got, "input %q", input)
	}

	_, ok := parseErrorType("essay")
	assert.False(t, ok)
}
