package author

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const crossrefFixture = `{
	"status": "ok",
	"message": {
		"items": [
			{
				"DOI": "10.1000/demo.2021.42",
				"type": "journal-article",
				"title": ["Deep learning for protein folding"],
				"container-title": ["Journal of Computational Biology"],
				"author": [
					{"given": "Ada", "family": "Lovelace"},
					{"given": "Alan", "family": "Turing"}
				],
				"issued": {"date-parts": [[2021, 6]]}
			}
		]
	}
}`

func TestResearchLookupTool_Definition(t *testing.T) {
	tool := NewResearchLookupTool()

	if tool.Name() != ToolResearchLookup {
		t.Errorf("Name() = %q, want %q", tool.Name(), ToolResearchLookup)
	}
	def := tool.Definition()
	if len(def.InputSchema.Required) != 1 || def.InputSchema.Required[0] != "query" {
		t.Errorf("expected 'query' to be required, got %v", def.InputSchema.Required)
	}
}

func TestResearchLookupTool_ExecReturnsWorks(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query.bibliographic")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(crossrefFixture))
	}))
	defer server.Close()

	tool := NewResearchLookupToolWithEndpoint(server.URL)
	res, err := tool.Exec(context.Background(), map[string]any{"query": "protein folding deep learning"})
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	payload := decodeResult(t, res)

	if payload["success"] != true {
		t.Fatalf("expected success, got %v", payload)
	}
	if gotQuery != "protein folding deep learning" {
		t.Errorf("server saw query %q", gotQuery)
	}
	if payload["result_count"].(float64) != 1 {
		t.Fatalf("expected 1 work, got %v", payload["result_count"])
	}

	works := payload["works"].([]any)
	work := works[0].(map[string]any)
	if work["title"] != "Deep learning for protein folding" {
		t.Errorf("unexpected title: %v", work["title"])
	}
	if work["venue"] != "Journal of Computational Biology" {
		t.Errorf("unexpected venue: %v", work["venue"])
	}
	if work["year"].(float64) != 2021 {
		t.Errorf("unexpected year: %v", work["year"])
	}
	if work["doi"] != "10.1000/demo.2021.42" {
		t.Errorf("unexpected DOI: %v", work["doi"])
	}

	authors := work["authors"].([]any)
	if len(authors) != 2 || authors[0] != "Lovelace, Ada" {
		t.Errorf("unexpected authors: %v", authors)
	}
}

func TestResearchLookupTool_ExecEmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","message":{"items":[]}}`))
	}))
	defer server.Close()

	tool := NewResearchLookupToolWithEndpoint(server.URL)
	res, err := tool.Exec(context.Background(), map[string]any{"query": "xyzzy"})
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	payload := decodeResult(t, res)

	if payload["success"] != true {
		t.Fatalf("expected success for empty set, got %v", payload)
	}
	if _, ok := payload["note"]; !ok {
		t.Error("expected a note about broadening the query")
	}
}

func TestResearchLookupTool_ExecBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","message":{"items":[]}}`))
	}))
	defer server.Close()

	tool := NewResearchLookupToolWithEndpoint(server.URL)
	res, err := tool.Exec(context.Background(), map[string]any{"query": "anything"})
	if err != nil {
		t.Fatalf("expected structured error: %v", err)
	}
	payload := decodeResult(t, res)
	if payload["success"] != false {
		t.Errorf("expected failure payload, got %v", payload)
	}
}

func TestResearchLookupTool_ExecMissingQuery(t *testing.T) {
	tool := NewResearchLookupTool()
	if _, err := tool.Exec(context.Background(), map[string]any{}); err == nil {
		t.Error("expected hard error for missing query")
	}
}
