package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"leblingo/internal/adapter"
	"leblingo/internal/adapter/embedding"
	"leblingo/internal/adapter/generation"
	"leblingo/internal/cache"
	"leblingo/internal/config"
	"leblingo/internal/database"
	"leblingo/internal/domain"
	"leblingo/internal/logger"
	"leblingo/internal/repository"
	"leblingo/internal/service"

	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		// Logger is not up yet for this one
		fmt.Printf("Failed to load configuration: %v\n", err)
		return
	}

	if err := logger.Initialize(cfg.Logger); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		return
	}
	defer logger.Sync()

	logger.Get().Info("Batch lesson generation starting up...")

	db, err := database.NewSQLXOracleDB(cfg.DB)
	if err != nil {
		logger.Get().Fatal("Failed to connect to Oracle database", zap.Error(err))
	}
	defer db.Close()
	logger.Get().Info("Successfully connected to Oracle database.")

	lessonRepo := repository.NewSQLXLessonRepository(db)

	var cacheAdapter domain.Cache
	if cfg.Redis.Address != "" {
		redisClient, err := cache.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Get().Fatal("Failed to initialize Redis Client", zap.Error(err))
		}
		cacheAdapter = adapter.NewRedisCacheAdapter(redisClient)
		logger.Get().Info("Redis cache initialized successfully.")
	} else {
		logger.Get().Warn("Redis cache is not configured. Running without cache.")
	}

	var embedService domain.EmbeddingService
	switch cfg.Embedding.Source {
	case "openai":
		if cfg.Embedding.OpenAI.APIKey == "" {
			logger.Get().Fatal("OpenAI API key is not configured.")
		}
		embeddingCacheTTL := cfg.ParseTTLStringOrDefault(cfg.CacheTTLs.Embedding, 24*time.Hour)
		embedService, err = embedding.NewOpenAIEmbeddingService(cfg.Embedding.OpenAI.APIKey, cfg.Embedding.OpenAI.Model, cacheAdapter, embeddingCacheTTL)
		if err != nil {
			logger.Get().Fatal("Failed to initialize OpenAI Embedding Service", zap.Error(err))
		}
		logger.Get().Info("Initialized OpenAI Embedding Service.")
	case "ollama":
		embedService, err = embedding.NewOllamaEmbeddingService(cfg.Embedding.Ollama.ServerURL, cfg.Embedding.Ollama.Model)
		if err != nil {
			logger.Get().Fatal("Failed to initialize Ollama Embedding Service", zap.Error(err))
		}
		logger.Get().Info("Initialized Ollama Embedding Service.")
	default:
		logger.Get().Fatal("Unsupported embedding source specified in configuration", zap.String("source", cfg.Embedding.Source))
	}

	ollamaHTTPClient := &http.Client{Timeout: 60 * time.Second}
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.LLM.Ollama.ServerURL),
		ollama.WithModel(cfg.LLM.Ollama.Model),
		ollama.WithHTTPClient(ollamaHTTPClient),
	)
	if err != nil {
		logger.Get().Fatal("Failed to create LLM client", zap.Error(err))
	}
	storyGenerator := generation.NewStoryGenerator(llm)
	logger.Get().Info("Initialized story generator.")

	batchSvc := service.NewBatchService(lessonRepo, storyGenerator, embedService, cfg, logger.Get())

	ctx := context.Background()

	logger.Get().Info("Starting lesson generation and saving process...")
	if err := batchSvc.GenerateNewLessonsAndSave(ctx); err != nil {
		logger.Get().Fatal("Batch process failed", zap.Error(err))
	}

	logger.Get().Info("Batch process completed successfully.")
}
