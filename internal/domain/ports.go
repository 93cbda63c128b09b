package domain

import "context"

// GeneratedStory is the bilingual output the LLM produces for a lesson.
type GeneratedStory struct {
	EnText string
	LaText string
}

// StoryGenerator defines the interface for generating bilingual lesson
// stories.
type StoryGenerator interface {
	GenerateStory(ctx context.Context, topic string, level Level, seed string) (*GeneratedStory, error)
}

// QuizGenerator defines the interface for generating quiz questions from a
// lesson's texts. Implementations must return at least MinQuizQuestions
// validated questions.
type QuizGenerator interface {
	GenerateQuiz(ctx context.Context, lesson *Lesson) ([]QuizQuestion, error)
}

// TranslationJudgment is the LLM's verdict on a free-form translation
// answer.
type TranslationJudgment struct {
	IsCorrect  bool
	Confidence float64
	Errors     []ErrorAnnotation
	Suggestion string
	Rationale  string
}

// TranslationJudge defines the interface for LLM-backed judging of
// translation answers. Implementations fall back to a lexical comparison
// when the model is unavailable rather than failing the evaluation.
type TranslationJudge interface {
	JudgeTranslation(ctx context.Context, question, expected, userAnswer string) (*TranslationJudgment, error)
}

// EmbeddingService defines the interface for generating text embeddings.
type EmbeddingService interface {
	Generate(ctx context.Context, text string) ([]float32, error)
}

// TransactionManager runs a function within a database transaction. The
// callback receives a context carrying the transaction; repositories pick
// it up transparently.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// BatchService defines the interface for offline batch content generation.
type BatchService interface {
	GenerateNewLessonsAndSave(ctx context.Context) error
}
