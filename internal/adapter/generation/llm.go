package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"leblingo/internal/logger"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

const llmTimeout = 20 * time.Second

// callModel sends a prompt to the model with the given sampling temperature.
// The call is capped at llmTimeout regardless of the caller's context.
func callModel(ctx context.Context, model llms.Model, prompt string, temperature float64) (string, error) {
	l := logger.Get()

	ctx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()

	response, err := model.Call(ctx, prompt, llms.WithTemperature(temperature))
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			l.Error("LLM request timed out", zap.Error(err))
			return "", fmt.Errorf("LLM request timed out: %w", err)
		}
		l.Error("Failed to get response from LLM", zap.Error(err))
		return "", fmt.Errorf("LLM call failed: %w", err)
	}

	return response, nil
}

// extractJSON pulls the JSON document out of a raw model response. Models
// wrap their output in <think> blocks and markdown code fences; both are
// stripped before locating the outermost object or array.
func extractJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)

	if thinkStart := strings.Index(s, "<think>"); thinkStart != -1 {
		if thinkEnd := strings.Index(s, "</think>"); thinkEnd != -1 && thinkEnd > thinkStart {
			s = s[:thinkStart] + s[thinkEnd+len("</think>"):]
			s = strings.TrimSpace(s)
		}
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	objStart := strings.Index(s, "{")
	arrStart := strings.Index(s, "[")

	if arrStart != -1 && (objStart == -1 || arrStart < objStart) {
		if arrEnd := strings.LastIndex(s, "]"); arrEnd > arrStart {
			return s[arrStart : arrEnd+1], nil
		}
		return "", fmt.Errorf("no closing bracket in LLM response: %s", s)
	}
	if objStart != -1 {
		if objEnd := strings.LastIndex(s, "}"); objEnd > objStart {
			return s[objStart : objEnd+1], nil
		}
		return "", fmt.Errorf("no closing brace in LLM response: %s", s)
	}
	return "", fmt.Errorf("no JSON document found in LLM response: %s", s)
}
