package embedding

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"time"

	"leblingo/internal/cache"
	"leblingo/internal/domain"

	"github.com/tmc/langchaingo/embeddings"
	openaiLLM "github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/sync/singleflight"
)

// OpenAIEmbeddingService implements the domain.EmbeddingService interface
// using OpenAI. Embeddings are remote and billed per call, so results are
// cached and concurrent requests for the same text are collapsed through
// singleflight.
type OpenAIEmbeddingService struct {
	embedder          embeddings.Embedder
	cache             domain.Cache
	embeddingCacheTTL time.Duration
	sfGroup           singleflight.Group
}

// NewOpenAIEmbeddingService creates a new OpenAIEmbeddingService.
func NewOpenAIEmbeddingService(apiKey, modelName string, cacheImpl domain.Cache, embeddingCacheTTL time.Duration) (*OpenAIEmbeddingService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key cannot be empty")
	}
	if modelName == "" {
		modelName = "text-embedding-3-small"
	}
	if cacheImpl == nil {
		return nil, fmt.Errorf("cache instance cannot be nil for OpenAIEmbeddingService")
	}
	if embeddingCacheTTL <= 0 {
		return nil, fmt.Errorf("embeddingCacheTTL must be positive")
	}

	llm, err := openaiLLM.New(
		openaiLLM.WithToken(apiKey),
		openaiLLM.WithModel(modelName),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create LangchainGo OpenAI LLM client for embedder: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create generic embedder from OpenAI LLM: %w", err)
	}

	return &OpenAIEmbeddingService{
		embedder:          embedder,
		cache:             cacheImpl,
		embeddingCacheTTL: embeddingCacheTTL,
	}, nil
}

// Generate creates an embedding for the given text using the OpenAI embedder.
func (s *OpenAIEmbeddingService) Generate(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("input text cannot be empty for embedding")
	}

	textHash := hashString(text)
	cacheKey := cache.GenerateCacheKey("embedding", "openai", textHash)

	if cachedData, err := s.cache.Get(ctx, cacheKey); err == nil {
		var embedding []float32
		decoder := gob.NewDecoder(bytes.NewReader([]byte(cachedData)))
		if decodeErr := decoder.Decode(&embedding); decodeErr == nil {
			return embedding, nil
		}
		// Undecodable entry, regenerate below and overwrite it.
	}

	res, err, _ := s.sfGroup.Do(cacheKey, func() (interface{}, error) {
		embedding, fetchErr := s.embedder.EmbedQuery(ctx, text)
		if fetchErr != nil {
			return nil, fmt.Errorf("failed to generate embedding using OpenAI: %w", fetchErr)
		}
		if embedding == nil {
			return nil, fmt.Errorf("received nil embedding from OpenAI without error")
		}

		var buffer bytes.Buffer
		if encodeErr := gob.NewEncoder(&buffer).Encode(embedding); encodeErr != nil {
			return embedding, nil // Return data even if caching fails
		}
		_ = s.cache.Set(ctx, cacheKey, buffer.String(), s.embeddingCacheTTL)
		return embedding, nil
	})
	if err != nil {
		return nil, err
	}

	if embedding, ok := res.([]float32); ok {
		return embedding, nil
	}
	return nil, fmt.Errorf("unexpected type from singleflight.Do for openai embedding: %T", res)
}

var _ domain.EmbeddingService = (*OpenAIEmbeddingService)(nil)
