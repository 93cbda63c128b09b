package service

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"leblingo/internal/cache"
	"leblingo/internal/config"
	"leblingo/internal/domain"
	"leblingo/internal/logger"
	"leblingo/internal/util"

	"go.uber.org/zap"
)

// CachedJudgment pairs a translation judgment with the embedding of the
// answer that produced it, so later answers can be matched by meaning
// rather than exact text.
type CachedJudgment struct {
	Judgment   *domain.TranslationJudgment `json:"judgment"`
	Embedding  []float32                   `json:"embedding"`
	UserAnswer string                      `json:"user_answer,omitempty"`
}

// TranslationJudgmentCache reuses LLM translation judgments across learners.
// Judgments are stored per question in a hash; a lookup walks the stored
// entries and returns the first one whose answer embedding is close enough
// to the incoming answer.
type TranslationJudgmentCache interface {
	// Get returns a reusable judgment for a semantically similar answer, or
	// nil when none is stored. A nil result with nil error is a plain miss.
	Get(ctx context.Context, quizID string, questionIndex int, answerEmbedding []float32, answerText string) (*domain.TranslationJudgment, error)

	// Put stores a fresh judgment keyed by the answer text.
	Put(ctx context.Context, quizID string, questionIndex int, answerText string, answerEmbedding []float32, judgment *domain.TranslationJudgment) error
}

type translationJudgmentCacheImpl struct {
	cacheImpl domain.Cache
	threshold float64
	ttl       time.Duration
}

// NewTranslationJudgmentCache creates a new instance of
// TranslationJudgmentCache. With a nil cache every lookup is a miss and
// every write is dropped.
func NewTranslationJudgmentCache(cacheImpl domain.Cache, cfg *config.Config) TranslationJudgmentCache {
	threshold := 0.92
	ttl := 24 * time.Hour
	if cfg != nil {
		if cfg.Embedding.SimilarityThreshold > 0 {
			threshold = cfg.Embedding.SimilarityThreshold
		}
		ttl = cfg.ParseTTLStringOrDefault(cfg.CacheTTLs.AnswerEvaluation, ttl)
	}
	return &translationJudgmentCacheImpl{
		cacheImpl: cacheImpl,
		threshold: threshold,
		ttl:       ttl,
	}
}

func (s *translationJudgmentCacheImpl) Get(ctx context.Context, quizID string, questionIndex int, answerEmbedding []float32, answerText string) (*domain.TranslationJudgment, error) {
	if s.cacheImpl == nil || len(answerEmbedding) == 0 {
		return nil, nil
	}

	key := cache.JudgmentKey(quizID, strconv.Itoa(questionIndex))
	stored, err := s.cacheImpl.HGetAll(ctx, key)
	if err != nil {
		if err == domain.ErrCacheMiss {
			return nil, nil
		}
		logger.Get().Error("Judgment cache HGetAll failed", zap.Error(err), zap.String("key", key))
		return nil, err
	}
	if len(stored) == 0 {
		return nil, nil
	}

	for _, raw := range stored {
		var entry CachedJudgment
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			logger.Get().Warn("Skipping corrupt cached judgment",
				zap.Error(err),
				zap.String("quizID", quizID),
				zap.Int("questionIndex", questionIndex))
			continue
		}
		if entry.Judgment == nil || len(entry.Embedding) == 0 {
			continue
		}

		similarity, err := util.CosineSimilarity(answerEmbedding, entry.Embedding)
		if err != nil {
			continue
		}
		if similarity >= s.threshold {
			logger.Get().Info("Reusing cached translation judgment",
				zap.String("quizID", quizID),
				zap.Int("questionIndex", questionIndex),
				zap.Float64("similarity", similarity),
				zap.String("cachedAnswer", entry.UserAnswer))
			return entry.Judgment, nil
		}
	}
	return nil, nil
}

func (s *translationJudgmentCacheImpl) Put(ctx context.Context, quizID string, questionIndex int, answerText string, answerEmbedding []float32, judgment *domain.TranslationJudgment) error {
	if s.cacheImpl == nil || judgment == nil {
		return nil
	}
	if len(answerEmbedding) == 0 {
		logger.Get().Debug("Not caching judgment without an answer embedding",
			zap.String("quizID", quizID),
			zap.Int("questionIndex", questionIndex))
		return nil
	}

	entry := CachedJudgment{
		Judgment:   judgment,
		Embedding:  answerEmbedding,
		UserAnswer: answerText,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		logger.Get().Error("Failed to marshal judgment for caching", zap.Error(err), zap.String("quizID", quizID))
		return err
	}

	key := cache.JudgmentKey(quizID, strconv.Itoa(questionIndex))
	if err := s.cacheImpl.HSet(ctx, key, answerText, string(raw)); err != nil {
		logger.Get().Error("Judgment cache HSet failed", zap.Error(err), zap.String("key", key))
		return err
	}
	if err := s.cacheImpl.Expire(ctx, key, s.ttl); err != nil {
		logger.Get().Error("Judgment cache Expire failed", zap.Error(err), zap.String("key", key))
		return err
	}
	return nil
}
