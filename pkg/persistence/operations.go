package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Operations provides run-history reads and writes over a database handle.
type Operations struct {
	db *sql.DB
}

// NewOperations creates an Operations instance.
func NewOperations(db *sql.DB) *Operations {
	return &Operations{db: db}
}

// InsertRun records a finished run. Re-inserting the same run ID overwrites
// the earlier record.
func (ops *Operations) InsertRun(run *Run) error {
	query := `
		INSERT INTO runs (
			id, prompt, model, source_mode, status,
			paper_dir, paper_name, title, errors,
			word_count, figures, citations, compilation_ok,
			input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens,
			cost_usd, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			prompt = excluded.prompt,
			model = excluded.model,
			source_mode = excluded.source_mode,
			status = excluded.status,
			paper_dir = excluded.paper_dir,
			paper_name = excluded.paper_name,
			title = excluded.title,
			errors = excluded.errors,
			word_count = excluded.word_count,
			figures = excluded.figures,
			citations = excluded.citations,
			compilation_ok = excluded.compilation_ok,
			input_tokens = excluded.input_tokens,
			output_tokens = excluded.output_tokens,
			cache_creation_tokens = excluded.cache_creation_tokens,
			cache_read_tokens = excluded.cache_read_tokens,
			cost_usd = excluded.cost_usd,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at
	`

	_, err := ops.db.Exec(query,
		run.ID, run.Prompt, run.Model, run.SourceMode, run.Status,
		run.PaperDir, run.PaperName, run.Title, run.Errors,
		run.WordCount, run.Figures, run.Citations, run.CompilationOK,
		run.InputTokens, run.OutputTokens, run.CacheCreationTokens, run.CacheReadTokens,
		run.CostUSD, run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun returns a run by its ID.
func (ops *Operations) GetRun(runID string) (*Run, error) {
	query := `
		SELECT id, prompt, model, source_mode, status,
		       paper_dir, paper_name, title, errors,
		       word_count, figures, citations, compilation_ok,
		       input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens,
		       cost_usd, started_at, finished_at
		FROM runs WHERE id = ?
	`

	run := &Run{}
	err := ops.db.QueryRow(query, runID).Scan(
		&run.ID, &run.Prompt, &run.Model, &run.SourceMode, &run.Status,
		&run.PaperDir, &run.PaperName, &run.Title, &run.Errors,
		&run.WordCount, &run.Figures, &run.Citations, &run.CompilationOK,
		&run.InputTokens, &run.OutputTokens, &run.CacheCreationTokens, &run.CacheReadTokens,
		&run.CostUSD, &run.StartedAt, &run.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 returns
// everything.
func (ops *Operations) ListRuns(limit int) ([]*Run, error) {
	query := `
		SELECT id, prompt, model, source_mode, status,
		       paper_dir, paper_name, title, errors,
		       word_count, figures, citations, compilation_ok,
		       input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens,
		       cost_usd, started_at, finished_at
		FROM runs ORDER BY started_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := ops.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		if err := rows.Scan(
			&run.ID, &run.Prompt, &run.Model, &run.SourceMode, &run.Status,
			&run.PaperDir, &run.PaperName, &run.Title, &run.Errors,
			&run.WordCount, &run.Figures, &run.Citations, &run.CompilationOK,
			&run.InputTokens, &run.OutputTokens, &run.CacheCreationTokens, &run.CacheReadTokens,
			&run.CostUSD, &run.StartedAt, &run.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// Summary aggregates run history over a time window.
type Summary struct {
	Runs         int     `json:"runs"`
	Succeeded    int     `json:"succeeded"`
	Partial      int     `json:"partial"`
	Failed       int     `json:"failed"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Summarize aggregates all runs started at or after the given time.
func (ops *Operations) Summarize(since time.Time) (Summary, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'partial' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(input_tokens), 0),
		       COALESCE(SUM(output_tokens), 0),
		       COALESCE(SUM(cost_usd), 0)
		FROM runs WHERE started_at >= ?
	`

	var summary Summary
	err := ops.db.QueryRow(query, since.UTC()).Scan(
		&summary.Runs, &summary.Succeeded, &summary.Partial, &summary.Failed,
		&summary.InputTokens, &summary.OutputTokens, &summary.CostUSD,
	)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to summarize runs: %w", err)
	}
	return summary, nil
}
