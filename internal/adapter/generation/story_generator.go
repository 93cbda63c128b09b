package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"leblingo/internal/domain"
	"leblingo/internal/logger"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

// storyTemperature keeps story output varied between seeds.
const storyTemperature = 0.7

type storyGenerator struct {
	model llms.Model
}

// NewStoryGenerator creates a story generator backed by the given model.
func NewStoryGenerator(model llms.Model) domain.StoryGenerator {
	return &storyGenerator{model: model}
}

// GenerateStory produces a short bilingual story for the topic and level.
// The seed only perturbs sampling so repeat requests can get fresh stories;
// it carries no meaning of its own.
func (g *storyGenerator) GenerateStory(ctx context.Context, topic string, level domain.Level, seed string) (*domain.GeneratedStory, error) {
	l := logger.Get()
	l.Info("Generating story with LLM",
		zap.String("topic", topic),
		zap.String("level", string(level)))

	prompt := fmt.Sprintf(`You are a Lebanese Arabic language tutor. Write a short story of 3 to 6 sentences about "%s" for a %s learner.

Respond with ONLY a JSON object in the following format:
{
    "en_text": "the story in English",
    "la_text": "the same story in Lebanese Arabic written in Latin script (arabizi)"
}

Rules:
1. la_text must use only Latin letters, digits and basic punctuation. Digits like 3, 7 and 2 stand in for Arabic sounds.
2. Never use Arabic script.
3. Keep the vocabulary appropriate for a %s learner.
4. en_text and la_text must tell the same story, sentence for sentence.
Variation seed: %s`, topic, level, level, seed)

	rawResponse, err := callModel(ctx, g.model, prompt, storyTemperature)
	if err != nil {
		return nil, domain.NewLLMServiceError(fmt.Errorf("story generation call failed: %w", err))
	}

	extracted, err := extractJSON(rawResponse)
	if err != nil {
		l.Error("Could not locate JSON in story response",
			zap.Error(err),
			zap.String("raw_response", rawResponse))
		return nil, domain.NewLLMServiceError(err)
	}

	var story struct {
		EnText string `json:"en_text"`
		LaText string `json:"la_text"`
	}
	if err := json.Unmarshal([]byte(extracted), &story); err != nil {
		l.Error("Failed to unmarshal story JSON from LLM response",
			zap.Error(err),
			zap.String("json_string_tried_to_parse", extracted))
		return nil, domain.NewLLMServiceError(fmt.Errorf("failed to unmarshal story JSON: %w", err))
	}

	story.EnText = strings.TrimSpace(story.EnText)
	story.LaText = strings.TrimSpace(story.LaText)
	if story.EnText == "" || story.LaText == "" {
		return nil, domain.NewLLMServiceError(fmt.Errorf("LLM story is missing en_text or la_text"))
	}

	return &domain.GeneratedStory{
		EnText: story.EnText,
		LaText: story.LaText,
	}, nil
}

var _ domain.StoryGenerator = (*storyGenerator)(nil)
