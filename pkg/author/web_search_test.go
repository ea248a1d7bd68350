package author

import (
	"context"
	"fmt"
	"testing"
)

// fakeSearchProvider returns canned results for testing.
type fakeSearchProvider struct {
	results []SearchResult
	err     error
	queries []string
}

func (p *fakeSearchProvider) Name() string { return "fake" }

func (p *fakeSearchProvider) Search(_ context.Context, query string, _ int) ([]SearchResult, error) {
	p.queries = append(p.queries, query)
	return p.results, p.err
}

func TestWebSearchTool_Definition(t *testing.T) {
	tool := NewWebSearchTool()

	if tool.Name() != ToolWebSearch {
		t.Errorf("Name() = %q, want %q", tool.Name(), ToolWebSearch)
	}

	def := tool.Definition()
	if def.Name != ToolWebSearch {
		t.Errorf("Definition().Name = %q, want %q", def.Name, ToolWebSearch)
	}
	if len(def.InputSchema.Required) != 1 || def.InputSchema.Required[0] != "query" {
		t.Errorf("expected 'query' to be required, got: %v", def.InputSchema.Required)
	}
	if _, ok := def.InputSchema.Properties["query"]; !ok {
		t.Error("expected 'query' property in input schema")
	}
}

func TestWebSearchTool_ExecMissingQuery(t *testing.T) {
	tool := NewWebSearchToolWithProvider(&fakeSearchProvider{})

	if _, err := tool.Exec(context.Background(), map[string]any{}); err == nil {
		t.Error("expected error for missing query parameter")
	}
	if _, err := tool.Exec(context.Background(), map[string]any{"query": ""}); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestWebSearchTool_ExecReturnsResults(t *testing.T) {
	provider := &fakeSearchProvider{
		results: []SearchResult{
			{Title: "Transformer architectures", Description: "A survey", URL: "https://example.org/survey"},
			{Title: "Attention mechanisms", Description: "Another survey", URL: "https://example.org/attention"},
		},
	}
	tool := NewWebSearchToolWithProvider(provider)

	res, err := tool.Exec(context.Background(), map[string]any{"query": "transformer survey"})
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	payload := decodeResult(t, res)

	if payload["success"] != true {
		t.Fatalf("expected success, got %v", payload)
	}
	if payload["provider"] != "fake" {
		t.Errorf("expected provider 'fake', got %v", payload["provider"])
	}
	if payload["result_count"].(float64) != 2 {
		t.Errorf("expected 2 results, got %v", payload["result_count"])
	}
	if len(provider.queries) != 1 || provider.queries[0] != "transformer survey" {
		t.Errorf("provider saw queries %v", provider.queries)
	}
}

func TestWebSearchTool_ExecEmptyResults(t *testing.T) {
	tool := NewWebSearchToolWithProvider(&fakeSearchProvider{})

	res, err := tool.Exec(context.Background(), map[string]any{"query": "nothing matches this"})
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	payload := decodeResult(t, res)

	if payload["success"] != true {
		t.Fatalf("expected success for empty result set, got %v", payload)
	}
	if _, ok := payload["note"]; !ok {
		t.Error("expected a note suggesting a different query")
	}
}

func TestWebSearchTool_ExecProviderFailure(t *testing.T) {
	tool := NewWebSearchToolWithProvider(&fakeSearchProvider{err: fmt.Errorf("quota exceeded")})

	res, err := tool.Exec(context.Background(), map[string]any{"query": "anything"})
	if err != nil {
		t.Fatalf("expected structured error, got hard error: %v", err)
	}
	payload := decodeResult(t, res)
	if payload["success"] != false {
		t.Errorf("expected success=false on provider failure, got %v", payload)
	}
}

func TestSelectSearchProvider(t *testing.T) {
	t.Run("google when keys present", func(t *testing.T) {
		t.Setenv("GOOGLE_SEARCH_API_KEY", "key")
		t.Setenv("GOOGLE_SEARCH_CX", "cx")

		provider := selectSearchProvider()
		if provider.Name() != "google" {
			t.Errorf("expected google provider, got %q", provider.Name())
		}
	})

	t.Run("duckduckgo fallback", func(t *testing.T) {
		t.Setenv("GOOGLE_SEARCH_API_KEY", "")
		t.Setenv("GOOGLE_SEARCH_CX", "")

		provider := selectSearchProvider()
		if provider.Name() != "duckduckgo" {
			t.Errorf("expected duckduckgo fallback, got %q", provider.Name())
		}
	})
}
