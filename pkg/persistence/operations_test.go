package persistence

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database with the runs schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := ensureSchema(db); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleRun(id string, startedAt time.Time) *Run {
	return &Run{
		ID:            id,
		Prompt:        "Write a short review of adaptive optics",
		Model:         "claude-sonnet-4-5",
		SourceMode:    "api",
		Status:        RunStatusSuccess,
		PaperDir:      "writing_outputs/paper_20260825_100000_adaptive_optics",
		PaperName:     "paper_20260825_100000_adaptive_optics",
		Title:         "Adaptive Optics in Ground-Based Astronomy",
		WordCount:     4200,
		Figures:       3,
		Citations:     18,
		CompilationOK: true,
		InputTokens:   1000,
		OutputTokens:  2500,
		CostUSD:       0.42,
		StartedAt:     startedAt,
		FinishedAt:    startedAt.Add(12 * time.Minute),
	}
}

func TestInsertAndGetRun(t *testing.T) {
	ops := NewOperations(setupTestDB(t))
	started := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	run := sampleRun("run-1", started)
	run.Errors = "minor warning\nanother note"
	require.NoError(t, ops.InsertRun(run))

	got, err := ops.GetRun("run-1")
	require.NoError(t, err)

	assert.Equal(t, run.Prompt, got.Prompt)
	assert.Equal(t, run.Model, got.Model)
	assert.Equal(t, run.SourceMode, got.SourceMode)
	assert.Equal(t, RunStatusSuccess, got.Status)
	assert.Equal(t, run.PaperDir, got.PaperDir)
	assert.Equal(t, run.Title, got.Title)
	assert.Equal(t, run.Errors, got.Errors)
	assert.Equal(t, 4200, got.WordCount)
	assert.Equal(t, 3, got.Figures)
	assert.Equal(t, 18, got.Citations)
	assert.True(t, got.CompilationOK)
	assert.Equal(t, int64(1000), got.InputTokens)
	assert.Equal(t, int64(2500), got.OutputTokens)
	assert.InDelta(t, 0.42, got.CostUSD, 1e-9)
	assert.True(t, got.StartedAt.Equal(started), "started_at should roundtrip, got %v", got.StartedAt)
	assert.True(t, got.FinishedAt.Equal(started.Add(12*time.Minute)))
}

func TestInsertRunOverwritesSameID(t *testing.T) {
	ops := NewOperations(setupTestDB(t))
	started := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	run := sampleRun("run-1", started)
	require.NoError(t, ops.InsertRun(run))

	run.Status = RunStatusPartial
	run.CompilationOK = false
	require.NoError(t, ops.InsertRun(run))

	runs, err := ops.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunStatusPartial, runs[0].Status)
	assert.False(t, runs[0].CompilationOK)
}

func TestGetRunNotFound(t *testing.T) {
	ops := NewOperations(setupTestDB(t))
	_, err := ops.GetRun("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListRunsNewestFirst(t *testing.T) {
	ops := NewOperations(setupTestDB(t))
	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	require.NoError(t, ops.InsertRun(sampleRun("run-old", base.Add(-48*time.Hour))))
	require.NoError(t, ops.InsertRun(sampleRun("run-mid", base.Add(-24*time.Hour))))
	require.NoError(t, ops.InsertRun(sampleRun("run-new", base)))

	runs, err := ops.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-new", runs[0].ID)
	assert.Equal(t, "run-mid", runs[1].ID)

	all, err := ops.ListRuns(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSummarize(t *testing.T) {
	ops := NewOperations(setupTestDB(t))
	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	old := sampleRun("run-old", base.Add(-72*time.Hour))
	require.NoError(t, ops.InsertRun(old))

	ok := sampleRun("run-ok", base.Add(-2*time.Hour))
	require.NoError(t, ops.InsertRun(ok))

	partial := sampleRun("run-partial", base.Add(-1*time.Hour))
	partial.Status = RunStatusPartial
	require.NoError(t, ops.InsertRun(partial))

	failed := sampleRun("run-failed", base)
	failed.Status = RunStatusFailed
	failed.InputTokens = 10
	failed.OutputTokens = 20
	failed.CostUSD = 0.01
	require.NoError(t, ops.InsertRun(failed))

	summary, err := ops.Summarize(base.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Runs)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Partial)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, int64(2010), summary.InputTokens)
	assert.Equal(t, int64(5020), summary.OutputTokens)
	assert.InDelta(t, 0.85, summary.CostUSD, 1e-9)
}

func TestSingletonLifecycle(t *testing.T) {
	require.NoError(t, Reset())
	t.Cleanup(func() { _ = Reset() })

	dbPath := filepath.Join(t.TempDir(), "history.db")
	require.NoError(t, Initialize(dbPath))
	assert.True(t, IsInitialized())

	// A second call is a no-op and keeps the original connection.
	require.NoError(t, Initialize(filepath.Join(t.TempDir(), "other.db")))

	run := sampleRun(GenerateRunID(), time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC))
	require.NoError(t, Ops().InsertRun(run))

	got, err := Ops().GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Title, got.Title)
}
