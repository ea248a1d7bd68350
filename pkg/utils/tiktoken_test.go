package utils

import (
	"strings"
	"testing"
)

func TestNewTokenCounter(t *testing.T) {
	models := []string{
		"claude-haiku-4-5",
		"claude-sonnet-4-5",
		"claude-opus-4-5",
		"gemini-2.5-flash",
		"gpt-4",
		"unknown-model", // defaults to gpt-4 encoding
	}

	for _, model := range models {
		t.Run(model, func(t *testing.T) {
			counter, err := NewTokenCounter(model)
			if err != nil {
				t.Errorf("NewTokenCounter(%s) failed: %v", model, err)
			}
			if counter == nil {
				t.Errorf("NewTokenCounter(%s) returned nil counter", model)
			}
		})
	}
}

func TestCountTokens(t *testing.T) {
	counter, err := NewTokenCounter("claude-sonnet-4-5")
	if err != nil {
		t.Fatalf("Failed to create token counter: %v", err)
	}

	tests := []struct {
		text      string
		minTokens int
		maxTokens int
	}{
		{"", 0, 0},
		{"Hello", 1, 2},
		{"Write a review paper on adaptive optics.", 7, 12},
		{strings.Repeat("word ", 100), 90, 110}, // ~100 tokens
	}

	for _, tt := range tests {
		name := tt.text
		if len(name) > 20 {
			name = name[:20]
		}
		t.Run(name, func(t *testing.T) {
			tokens := counter.CountTokens(tt.text)
			if tokens < tt.minTokens || tokens > tt.maxTokens {
				t.Errorf("CountTokens(%q) = %d, want between %d and %d",
					tt.text, tokens, tt.minTokens, tt.maxTokens)
			}
		})
	}
}

func TestCountTokensSimple(t *testing.T) {
	if got := CountTokensSimple("Hello world"); got < 2 || got > 3 {
		t.Errorf("CountTokensSimple(\"Hello world\") = %d, want 2-3", got)
	}
}

func TestEstimateUsage(t *testing.T) {
	input, output := EstimateUsage("claude-sonnet-4-5",
		"Write a short paper about coral reefs.",
		"Planning the paper structure. Writing the introduction section now.")
	if input <= 0 {
		t.Errorf("expected positive input estimate, got %d", input)
	}
	if output <= 0 {
		t.Errorf("expected positive output estimate, got %d", output)
	}

	input, output = EstimateUsage("claude-sonnet-4-5", "", "")
	if input != 0 || output != 0 {
		t.Errorf("empty text should estimate zero, got %d/%d", input, output)
	}
}
