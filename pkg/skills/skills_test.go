package skills

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallCopiesBundle(t *testing.T) {
	workDir := t.TempDir()

	Install(workDir)

	require.True(t, Installed(workDir))

	instructions, err := os.ReadFile(filepath.Join(workDir, TargetDir, "WRITER.md"))
	require.NoError(t, err)
	assert.Contains(t, string(instructions), "present a plan")

	skill, err := os.ReadFile(filepath.Join(workDir, TargetDir, "skills", "scientific-schematics", "SKILL.md"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(skill), "---\n"))
}

func TestInstallLeavesExistingBundleAlone(t *testing.T) {
	workDir := t.TempDir()
	dest := filepath.Join(workDir, TargetDir)
	require.NoError(t, os.MkdirAll(dest, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "WRITER.md"), []byte("my own rules"), 0o644))

	Install(workDir)

	data, err := os.ReadFile(filepath.Join(dest, "WRITER.md"))
	require.NoError(t, err)
	assert.Equal(t, "my own rules", string(data))

	_, err = os.Stat(filepath.Join(dest, "skills"))
	assert.True(t, os.IsNotExist(err), "existing bundle should not be extended")
}

func TestInstructions(t *testing.T) {
	t.Run("falls back without a bundle", func(t *testing.T) {
		assert.Equal(t, DefaultInstructions, Instructions(t.TempDir()))
	})

	t.Run("reads the working directory copy", func(t *testing.T) {
		workDir := t.TempDir()
		dest := filepath.Join(workDir, TargetDir)
		require.NoError(t, os.MkdirAll(dest, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dest, "WRITER.md"), []byte("tuned instructions"), 0o644))

		assert.Equal(t, "tuned instructions", Instructions(workDir))
	})
}

func TestList(t *testing.T) {
	manifests, err := List()
	require.NoError(t, err)
	require.NotEmpty(t, manifests)

	byName := make(map[string]Manifest, len(manifests))
	for _, m := range manifests {
		byName[m.Name] = m
	}
	schematics, ok := byName["scientific-schematics"]
	require.True(t, ok)
	assert.NotEmpty(t, schematics.Description)
}

func TestParseFrontMatter(t *testing.T) {
	manifest, body, err := parseFrontMatter([]byte("---\nname: demo\ndescription: a demo skill\n---\n\n# Demo\n\nBody text.\n"))
	require.NoError(t, err)
	assert.Equal(t, "demo", manifest.Name)
	assert.Equal(t, "a demo skill", manifest.Description)
	assert.Equal(t, "# Demo\n\nBody text.\n", body)

	_, _, err = parseFrontMatter([]byte("# No front matter\n"))
	assert.Error(t, err)

	_, _, err = parseFrontMatter([]byte("---\nname: broken\n"))
	assert.Error(t, err)

	_, _, err = parseFrontMatter([]byte("---\ndescription: nameless\n---\nbody\n"))
	assert.ErrorContains(t, err, "missing name")
}
