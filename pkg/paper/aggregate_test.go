package paper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicFromName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"paper_20250114_quantum_error_correction", "quantum error correction"},
		{"run_001_topic", "topic"},
		{"paper_20250114", ""},
		{"flat", ""},
		{"", ""},
	}

	for _, tc := range tests {
		if got := topicFromName(tc.name); got != tc.want {
			t.Errorf("topicFromName(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestBuildResultSuccess(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "paper_20250114_adaptive_mesh_refinement")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.tex"), []byte(sampleTex), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.pdf"), []byte("%PDF"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "references.bib"),
		[]byte("@article{a1,\n year = {2020}\n}\n"), 0o644))

	inv, err := Scan(dir)
	require.NoError(t, err)

	res := BuildResult(dir, inv)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.True(t, res.CompilationSuccess)
	assert.Equal(t, "paper_20250114_adaptive_mesh_refinement", res.Name)
	assert.Equal(t, "adaptive mesh refinement", res.Metadata.Topic)
	assert.Equal(t, "Adaptive Mesh Refinement in Practice", res.Metadata.Title)
	assert.Equal(t, 15, res.Metadata.WordCount)
	assert.False(t, res.Metadata.CreatedAt.IsZero())
	assert.Equal(t, 1, res.Citations.Count)
	assert.Equal(t, "bibtex", res.Citations.Style)
	assert.Equal(t, "references.bib", res.Citations.File)
	assert.Empty(t, res.Errors)
}

func TestBuildResultPartial(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.tex"), []byte(sampleTex), 0o644))

	inv, err := Scan(dir)
	require.NoError(t, err)

	res := BuildResult(dir, inv)

	assert.Equal(t, StatusPartial, res.Status)
	assert.False(t, res.CompilationSuccess)
	assert.Equal(t, "Adaptive Mesh Refinement in Practice", res.Metadata.Title)
}

func TestBuildResultFailedWithoutManuscript(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("notes"), 0o644))

	inv, err := Scan(dir)
	require.NoError(t, err)

	res := BuildResult(dir, inv)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Empty(t, res.Metadata.Title)
	assert.Zero(t, res.Metadata.WordCount)
}

func TestBuildResultDraftFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "drafts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "drafts", "v1.tex"),
		[]byte(sampleTex), 0o644))

	inv, err := Scan(dir)
	require.NoError(t, err)
	require.Empty(t, inv.FinalTeX)

	res := BuildResult(dir, inv)

	// Metadata falls back to the first draft when no final source exists.
	assert.Equal(t, "Adaptive Mesh Refinement in Practice", res.Metadata.Title)
	assert.Equal(t, 15, res.Metadata.WordCount)
	assert.Equal(t, StatusFailed, res.Status)
}

func TestBuildResultCountsFigures(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, "figures/a.png", "figures/b.svg", "figures/c.pdf")

	inv, err := Scan(dir)
	require.NoError(t, err)

	res := BuildResult(dir, inv)
	assert.Equal(t, 2, res.FiguresCount, "a nested pdf is a draft, not a figure")
}

func TestFailedResult(t *testing.T) {
	res := FailedResult("output directory not found after generation")

	assert.Equal(t, StatusFailed, res.Status)
	assert.Empty(t, res.Directory)
	assert.Empty(t, res.Name)
	assert.Empty(t, res.Metadata.Title)
	assert.True(t, res.Metadata.CreatedAt.IsZero())
	assert.False(t, res.CompilationSuccess)
	assert.Equal(t, []string{"output directory not found after generation"}, res.Errors)
	assert.NotNil(t, res.Files.DraftPDFs)
	assert.Empty(t, res.Files.DraftPDFs)
}
