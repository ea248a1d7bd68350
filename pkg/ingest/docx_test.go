package ingest

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildDocx writes a minimal .docx-shaped zip with the given members.
func buildDocx(t *testing.T, dir string, members map[string][]byte) string {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range members {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	path := filepath.Join(dir, "report.docx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestExtractImages(t *testing.T) {
	dir := t.TempDir()
	figures := filepath.Join(dir, "figures")
	require.NoError(t, os.MkdirAll(figures, 0o755))

	docx := buildDocx(t, dir, map[string][]byte{
		"word/document.xml":     []byte("<doc/>"),
		"word/media/image1.png": []byte("png-1"),
		"word/media/image2.jpg": []byte("jpg-2"),
		"word/media/thumbs.db":  []byte("not an image"),
		"media/outside.png":     []byte("wrong prefix"),
	})

	records := ExtractImages(docx, figures)
	require.Len(t, records, 2)

	byName := map[string]FileRecord{}
	for _, r := range records {
		byName[r.Name] = r
		assert.Equal(t, "report.docx", r.SourceDoc)
		assert.FileExists(t, r.Path)
	}
	require.Contains(t, byName, "image1.png")
	require.Contains(t, byName, "image2.jpg")

	content, err := os.ReadFile(filepath.Join(figures, "image1.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-1", string(content))
}

func TestExtractImagesCorruptArchive(t *testing.T) {
	dir := t.TempDir()
	bogus := filepath.Join(dir, "broken.docx")
	require.NoError(t, os.WriteFile(bogus, []byte("this is not a zip"), 0o644))

	records := ExtractImages(bogus, dir)
	assert.Empty(t, records)
}

func TestExtractImagesMissingFile(t *testing.T) {
	dir := t.TempDir()
	records := ExtractImages(filepath.Join(dir, "absent.docx"), dir)
	assert.Empty(t, records)
}

func TestProcessDocxInput(t *testing.T) {
	inputs := t.TempDir()
	out := t.TempDir()

	docx := buildDocx(t, inputs, map[string][]byte{
		"word/document.xml":     []byte("<doc/>"),
		"word/media/image1.png": []byte("png-1"),
	})

	report, err := Process([]string{docx}, out, false)
	require.NoError(t, err)

	// The archive itself lands in sources/ and its embedded image in
	// figures/.
	assert.Len(t, report.Sources, 1)
	require.Len(t, report.Images, 1)
	assert.Equal(t, "report.docx", report.Images[0].SourceDoc)
	assert.FileExists(t, filepath.Join(out, "sources", "report.docx"))
	assert.FileExists(t, filepath.Join(out, "figures", "image1.png"))
	assert.Equal(t, 1, report.Processed)
}
