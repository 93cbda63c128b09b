package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"leblingo/cmd/seed_initial_data/internal/seedmodels"
	"leblingo/internal/config"
	"leblingo/internal/database"
	"leblingo/internal/domain"
	"leblingo/internal/logger"
	"leblingo/internal/repository"

	"go.uber.org/zap"
)

const (
	seedFilePath = "configs/seed_data/initial_lessons.json"
)

func firstN(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}

func main() {
	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.Logger); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Get()

	log.Info("Starting initial data seeding process...")
	db, err := database.NewSQLXOracleDB(cfg.DB)
	if err != nil {
		log.Fatal("Failed to connect to Oracle database", zap.Error(err))
	}
	defer db.Close()
	log.Info("Successfully connected to Oracle database.")

	log.Info("Loading seed data from file", zap.String("path", seedFilePath))
	byteValue, err := os.ReadFile(seedFilePath)
	if err != nil {
		log.Fatal("Failed to read seed file", zap.String("path", seedFilePath), zap.Error(err))
	}

	var seedTopics []seedmodels.SeedTopic
	if err := json.Unmarshal(byteValue, &seedTopics); err != nil {
		log.Fatal("Failed to unmarshal seed data", zap.Error(err))
	}
	log.Info("Successfully unmarshalled seed data", zap.Int("topics_loaded", len(seedTopics)))

	lessonRepo := repository.NewSQLXLessonRepository(db)
	quizRepo := repository.NewSQLXQuizRepository(db)
	txManager := repository.NewTransactionManagerAdapter(db)

	for _, topic := range seedTopics {
		t := topic
		err := txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			return seedTopicData(txCtx, log, lessonRepo, quizRepo, t)
		})
		if err != nil {
			// One broken topic should not stop the others.
			log.Error("Error seeding topic, transaction rolled back", zap.String("topic", t.Topic), zap.Error(err))
		}
	}
	log.Info("Initial data seeding process completed.")
}

func seedTopicData(
	ctx context.Context,
	log *zap.Logger,
	lessonRepo domain.LessonRepository,
	quizRepo domain.QuizRepository,
	seedTopic seedmodels.SeedTopic,
) error {
	log.Info("Processing topic", zap.String("topic", seedTopic.Topic))

	for _, sl := range seedTopic.Lessons {
		if !domain.IsValidLevel(sl.Level) {
			return fmt.Errorf("invalid level %q for topic %s", sl.Level, seedTopic.Topic)
		}

		lesson := domain.NewLesson(seedTopic.Topic, domain.Level(sl.Level), sl.EnText, sl.LaText, map[string]interface{}{
			"source": "initial_seed",
		})
		if err := lesson.Validate(); err != nil {
			return fmt.Errorf("invalid seed lesson '%s': %w", firstN(sl.EnText, 40), err)
		}
		// CreateLesson is idempotent on (topic, en_text); on a duplicate the
		// existing row is loaded into the lesson.
		if err := lessonRepo.CreateLesson(ctx, lesson); err != nil {
			return fmt.Errorf("failed to save lesson '%s': %w", firstN(sl.EnText, 40), err)
		}
		log.Info("Lesson ready.", zap.String("id", lesson.ID), zap.String("topic", lesson.Topic))

		if len(sl.Questions) == 0 {
			continue
		}

		existingQuiz, err := quizRepo.GetQuizByLessonID(ctx, lesson.ID)
		if err != nil {
			return fmt.Errorf("error checking quiz for lesson %s: %w", lesson.ID, err)
		}
		if existingQuiz != nil {
			log.Info("Quiz exists for lesson, skipping.", zap.String("lesson_id", lesson.ID), zap.String("quiz_id", existingQuiz.ID))
			continue
		}

		questions := make([]domain.QuizQuestion, 0, len(sl.Questions))
		for _, sq := range sl.Questions {
			questions = append(questions, domain.QuizQuestion{
				Type:         domain.QuestionType(sq.Type),
				Question:     sq.Question,
				Choices:      sq.Choices,
				AnswerIndex:  sq.AnswerIndex,
				AnswerText:   sq.AnswerText,
				AnswerBlanks: sq.AnswerBlanks,
				Rationale:    sq.Rationale,
			})
		}
		quiz := domain.NewQuiz(lesson.ID, questions, map[string]interface{}{
			"source": "initial_seed",
		})
		if err := quiz.Validate(); err != nil {
			return fmt.Errorf("invalid seed quiz for lesson %s: %w", lesson.ID, err)
		}
		if err := quizRepo.CreateQuiz(ctx, quiz); err != nil {
			return fmt.Errorf("failed to save quiz for lesson %s: %w", lesson.ID, err)
		}
		log.Info("Successfully created quiz.", zap.String("id", quiz.ID), zap.String("lesson_id", lesson.ID))
	}
	return nil
}
