package service

import (
	"context"
	"fmt"
	"testing"

	"leblingo/internal/config"
	"leblingo/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type batchFixture struct {
	topics   []string
	existing map[string][]domain.Lesson
	saved    []*domain.Lesson
	// embeddingFor maps english text onto a fixed vector.
	embeddingFor map[string][]float32
	// stories are handed out in order per topic.
	stories map[string][]*domain.GeneratedStory
	calls   map[string]int
}

func (f *batchFixture) service(cfg *config.Config) domain.BatchService {
	lessonRepo := &mockLessonRepository{
		ListTopicsFunc: func(ctx context.Context) ([]string, error) {
			return f.topics, nil
		},
		ListLessonsFunc: func(ctx context.Context, topic string, level domain.Level, limit, offset int) ([]domain.Lesson, int, error) {
			lessons := f.existing[topic]
			return lessons, len(lessons), nil
		},
		CreateLessonFunc: func(ctx context.Context, lesson *domain.Lesson) error {
			lesson.ID = fmt.Sprintf("saved-%d", len(f.saved))
			f.saved = append(f.saved, lesson)
			return nil
		},
	}
	storyGen := &mockStoryGenerator{
		GenerateStoryFunc: func(ctx context.Context, topic string, level domain.Level, seed string) (*domain.GeneratedStory, error) {
			queue := f.stories[topic]
			index := f.calls[topic]
			f.calls[topic]++
			if index >= len(queue) {
				index = len(queue) - 1
			}
			return queue[index], nil
		},
	}
	embeddings := &mockEmbeddingService{
		GenerateFunc: func(ctx context.Context, text string) ([]float32, error) {
			if vec, ok := f.embeddingFor[text]; ok {
				return vec, nil
			}
			return []float32{1, 0, 0}, nil
		},
	}
	return NewBatchService(lessonRepo, storyGen, embeddings, cfg, zap.NewNop())
}

func TestBatchGeneratesPerTopic(t *testing.T) {
	f := &batchFixture{
		topics: []string{"food"},
		existing: map[string][]domain.Lesson{
			"food": {{ID: "l1", Topic: "food", Level: domain.LevelBeginner, EnText: "old food story", LaText: "x"}},
		},
		embeddingFor: map[string][]float32{
			"old food story": {1, 0, 0},
			"new story one":  {0, 1, 0},
			"new story two":  {0, 0, 1},
		},
		stories: map[string][]*domain.GeneratedStory{
			"food": {
				{EnText: "new story one", LaText: "ktir tayyeb"},
				{EnText: "new story two", LaText: "ktir zaki"},
			},
		},
		calls: map[string]int{},
	}
	svc := f.service(&config.Config{Batch: config.BatchConfig{LessonsPerTopic: 2}})

	require.NoError(t, svc.GenerateNewLessonsAndSave(context.Background()))
	require.Len(t, f.saved, 2)
	assert.Equal(t, "new story one", f.saved[0].EnText)
	assert.Equal(t, "new story two", f.saved[1].EnText)
	assert.Equal(t, "food", f.saved[0].Topic)
	assert.Equal(t, "batch_generation", f.saved[0].Metadata["source"])
	assert.NotEmpty(t, f.saved[0].Metadata["seed"])
}

func TestBatchSkipsNearDuplicates(t *testing.T) {
	f := &batchFixture{
		topics: []string{"food"},
		existing: map[string][]domain.Lesson{
			"food": {{ID: "l1", Topic: "food", Level: domain.LevelBeginner, EnText: "old food story", LaText: "x"}},
		},
		embeddingFor: map[string][]float32{
			"old food story": {1, 0, 0},
			// The candidate embeds onto the same vector as the existing
			// lesson, so it is a near-duplicate.
			"near duplicate": {1, 0, 0},
		},
		stories: map[string][]*domain.GeneratedStory{
			"food": {{EnText: "near duplicate", LaText: "x"}},
		},
		calls: map[string]int{},
	}
	svc := f.service(&config.Config{Batch: config.BatchConfig{LessonsPerTopic: 1}})

	require.NoError(t, svc.GenerateNewLessonsAndSave(context.Background()))
	assert.Empty(t, f.saved)
	// The attempt budget is twice the per-topic target.
	assert.Equal(t, 2, f.calls["food"])
}

func TestBatchNoTopicsFinishesEarly(t *testing.T) {
	f := &batchFixture{topics: nil, calls: map[string]int{}}
	svc := f.service(&config.Config{})

	assert.NoError(t, svc.GenerateNewLessonsAndSave(context.Background()))
	assert.Empty(t, f.saved)
}

func TestBatchSavedLessonsJoinDuplicateCheck(t *testing.T) {
	// The second candidate repeats the first one's text and must be skipped
	// even though it was not in the repository when the run started.
	f := &batchFixture{
		topics:   []string{"food"},
		existing: map[string][]domain.Lesson{},
		embeddingFor: map[string][]float32{
			"fresh story": {0, 1, 0},
		},
		stories: map[string][]*domain.GeneratedStory{
			"food": {
				{EnText: "fresh story", LaText: "x"},
				{EnText: "fresh story", LaText: "x"},
			},
		},
		calls: map[string]int{},
	}
	svc := f.service(&config.Config{Batch: config.BatchConfig{LessonsPerTopic: 2}})

	require.NoError(t, svc.GenerateNewLessonsAndSave(context.Background()))
	assert.Len(t, f.saved, 1)
}
