package service

import (
	"context"
	"fmt"
	"time"

	"leblingo/internal/config"
	"leblingo/internal/domain"
	"leblingo/internal/util"

	"go.uber.org/zap"
)

// batchService implements the domain.BatchService interface. It grows the
// lesson library offline: for every known topic it asks the model for fresh
// stories and keeps only the ones that are not near-duplicates of lessons
// already stored, judged by embedding similarity.
type batchService struct {
	lessonRepo       domain.LessonRepository
	storyGen         domain.StoryGenerator
	embeddingService domain.EmbeddingService
	cfg              *config.Config
	logger           *zap.Logger
}

// NewBatchService creates a new instance of batchService.
func NewBatchService(
	lessonRepo domain.LessonRepository,
	storyGen domain.StoryGenerator,
	embeddingService domain.EmbeddingService,
	cfg *config.Config,
	logger *zap.Logger,
) domain.BatchService {
	return &batchService{
		lessonRepo:       lessonRepo,
		storyGen:         storyGen,
		embeddingService: embeddingService,
		cfg:              cfg,
		logger:           logger,
	}
}

// GenerateNewLessonsAndSave generates lesson candidates for every existing
// topic and saves the ones that pass the similarity filter. A failure on one
// topic does not stop the run.
func (s *batchService) GenerateNewLessonsAndSave(ctx context.Context) error {
	s.logger.Info("Starting batch lesson generation", zap.Time("start_time", time.Now()))

	topics, err := s.lessonRepo.ListTopics(ctx)
	if err != nil {
		s.logger.Error("Failed to list topics", zap.Error(err))
		return fmt.Errorf("failed to list topics: %w", err)
	}
	if len(topics) == 0 {
		s.logger.Info("No topics found. Batch process finishing early.")
		return nil
	}

	perTopic := s.cfg.Batch.LessonsPerTopic
	if perTopic <= 0 {
		perTopic = 2
	}
	threshold := s.cfg.Embedding.SimilarityThreshold
	if threshold <= 0 {
		threshold = 0.92
	}

	saved := 0
	for _, topic := range topics {
		count, err := s.generateForTopic(ctx, topic, perTopic, threshold)
		if err != nil {
			s.logger.Error("Failed to generate lessons for topic",
				zap.String("topic", topic),
				zap.Error(err))
			continue
		}
		saved += count
	}

	s.logger.Info("Batch lesson generation completed", zap.Int("lessons_saved", saved))
	return nil
}

// generateForTopic produces up to want new lessons for one topic. Existing
// lesson embeddings are computed once per topic and reused for every
// candidate.
func (s *batchService) generateForTopic(ctx context.Context, topic string, want int, threshold float64) (int, error) {
	existing, _, err := s.lessonRepo.ListLessons(ctx, topic, "", 100, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list existing lessons: %w", err)
	}

	existingEmbeddings := make([][]float32, 0, len(existing))
	levels := make([]domain.Level, 0, len(existing))
	for _, lesson := range existing {
		vec, err := s.embeddingService.Generate(ctx, lesson.EnText)
		if err != nil {
			s.logger.Warn("Failed to embed existing lesson, skipping it in the duplicate check",
				zap.String("lessonID", lesson.ID),
				zap.Error(err))
			continue
		}
		existingEmbeddings = append(existingEmbeddings, vec)
		levels = append(levels, lesson.Level)
	}

	level := domain.LevelBeginner
	if len(levels) > 0 {
		level = levels[0]
	}

	saved := 0
	for attempt := 0; saved < want && attempt < want*2; attempt++ {
		seed := util.NewULID()
		story, err := s.storyGen.GenerateStory(ctx, topic, level, seed)
		if err != nil {
			s.logger.Warn("Story generation failed for candidate",
				zap.String("topic", topic),
				zap.Error(err))
			continue
		}

		candidateVec, err := s.embeddingService.Generate(ctx, story.EnText)
		if err != nil {
			s.logger.Warn("Failed to embed candidate story",
				zap.String("topic", topic),
				zap.Error(err))
			continue
		}

		if s.isNearDuplicate(candidateVec, existingEmbeddings, threshold) {
			s.logger.Info("Skipping near-duplicate candidate", zap.String("topic", topic))
			continue
		}

		lesson := domain.NewLesson(topic, level, story.EnText, story.LaText, map[string]interface{}{
			"source": "batch_generation",
			"seed":   seed,
		})
		if err := lesson.Validate(); err != nil {
			s.logger.Warn("Generated lesson failed validation",
				zap.String("topic", topic),
				zap.Error(err))
			continue
		}
		if err := s.lessonRepo.CreateLesson(ctx, lesson); err != nil {
			s.logger.Error("Failed to save generated lesson",
				zap.String("topic", topic),
				zap.Error(err))
			continue
		}

		existingEmbeddings = append(existingEmbeddings, candidateVec)
		saved++
		s.logger.Info("Saved new lesson",
			zap.String("topic", topic),
			zap.String("lessonID", lesson.ID))
	}

	return saved, nil
}

// isNearDuplicate reports whether the candidate is too similar to any
// existing lesson.
func (s *batchService) isNearDuplicate(candidate []float32, existing [][]float32, threshold float64) bool {
	for _, vec := range existing {
		similarity, err := util.CosineSimilarity(candidate, vec)
		if err != nil {
			continue
		}
		if similarity >= threshold {
			return true
		}
	}
	return false
}
