package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockEmbedder is a mock type for the embeddings.Embedder interface
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func TestNewOllamaEmbeddingService(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		_, err := NewOllamaEmbeddingService("http://localhost:11434", "nomic-embed-text")
		assert.NoError(t, err)
	})

	t.Run("empty server URL", func(t *testing.T) {
		_, err := NewOllamaEmbeddingService("", "nomic-embed-text")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "ollama server URL cannot be empty")
	})

	t.Run("empty model name", func(t *testing.T) {
		_, err := NewOllamaEmbeddingService("http://localhost:11434", "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "ollama model name cannot be empty")
	})
}

func TestOllamaEmbeddingService_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mockEmb := new(MockEmbedder)
		service := &OllamaEmbeddingService{embedder: mockEmb}
		expected := []float32{0.1, 0.2, 0.3}

		mockEmb.On("EmbedQuery", ctx, "marhaba").Return(expected, nil).Once()

		result, err := service.Generate(ctx, "marhaba")
		assert.NoError(t, err)
		assert.Equal(t, expected, result)
		mockEmb.AssertExpectations(t)
	})

	t.Run("empty text", func(t *testing.T) {
		service := &OllamaEmbeddingService{embedder: new(MockEmbedder)}
		_, err := service.Generate(ctx, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "input text cannot be empty")
	})

	t.Run("embedder error", func(t *testing.T) {
		mockEmb := new(MockEmbedder)
		service := &OllamaEmbeddingService{embedder: mockEmb}

		mockEmb.On("EmbedQuery", ctx, "marhaba").Return(nil, errors.New("ollama down")).Once()

		_, err := service.Generate(ctx, "marhaba")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to generate embedding using Ollama")
		mockEmb.AssertExpectations(t)
	})
}

func TestHashString(t *testing.T) {
	a := hashString("marhaba")
	b := hashString("marhaba")
	c := hashString("mar7aba")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
