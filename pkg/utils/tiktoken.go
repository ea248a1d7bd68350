// Package utils provides token counting and type assertion helpers.
package utils

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"

	"paperwright/pkg/config"
)

// TokenCounter provides approximate token counting for the supported models.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a token counter for the given model. Claude and
// Gemini tokenize differently from GPT-4, but the GPT-4 encoding is close
// enough for the estimates this is used for.
func NewTokenCounter(model string) (*TokenCounter, error) {
	var tikModel tokenizer.Model
	switch model {
	case config.ModelClaudeHaiku45, config.ModelClaudeSonnet45, config.ModelClaudeOpus45:
		tikModel = tokenizer.GPT4
	case config.ModelGeminiFlash25:
		tikModel = tokenizer.GPT4
	default:
		tikModel = tokenizer.GPT4
	}

	codec, err := tokenizer.ForModel(tikModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec for model %s: %w", model, err)
	}

	return &TokenCounter{codec: codec}, nil
}

// CountTokens returns the number of tokens in the given text.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc.codec == nil {
		// Fallback to character-based estimation (4 chars ≈ 1 token)
		return len(text) / 4
	}

	count, err := tc.codec.Count(text)
	if err != nil {
		// Fallback to character-based estimation on error
		return len(text) / 4
	}

	return count
}

// CountTokensSimple provides a simple token counting function without
// requiring a TokenCounter instance. Uses GPT-4 encoding.
func CountTokensSimple(text string) int {
	counter, err := NewTokenCounter("gpt-4")
	if err != nil {
		// Fallback to character-based estimation
		return len(text) / 4
	}
	return counter.CountTokens(text)
}

// EstimateUsage approximates token usage for a run whose producer reported
// none: the prompt counts as input, the accumulated narration as output.
func EstimateUsage(model, prompt, narration string) (inputTokens, outputTokens int64) {
	counter, err := NewTokenCounter(model)
	if err != nil {
		return int64(len(prompt) / 4), int64(len(narration) / 4)
	}
	return int64(counter.CountTokens(prompt)), int64(counter.CountTokens(narration))
}
