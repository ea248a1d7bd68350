// Package skills carries the bundled writing instructions and agent skills
// and installs them into a working directory before a run.
//
// The bundle is embedded at build time so the binary is self-contained: a
// fresh working directory gets a .claude/ tree with WRITER.md (the system
// instructions) and one subdirectory per skill, each described by a SKILL.md
// with a YAML front-matter manifest.
package skills

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"paperwright/pkg/logx"
)

//go:embed assets
var bundleFS embed.FS

const (
	bundleRoot = "assets"

	// TargetDir is the bundle directory created under the working directory.
	TargetDir = ".claude"

	instructionsName = "WRITER.md"
)

// DefaultInstructions is used when the working directory has no
// .claude/WRITER.md, so a bare workspace still behaves sensibly.
const DefaultInstructions = "You are a scientific writing assistant. Follow best practices for " +
	"scientific communication and always present a plan before execution."

//nolint:gochecknoglobals // Package-level logger.
var logger = logx.NewLogger("skills")

// Manifest is the YAML front matter at the top of a SKILL.md file.
type Manifest struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Install copies the embedded bundle into workDir/.claude. An existing
// .claude directory is left untouched so user edits survive reruns. Errors
// are logged and swallowed: a run without skills still works, it just
// produces plainer output.
func Install(workDir string) {
	dest := filepath.Join(workDir, TargetDir)
	if _, err := os.Stat(dest); err == nil {
		logger.Debug("skills bundle already present at %s", dest)
		return
	}

	err := fs.WalkDir(bundleFS, bundleRoot, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, bundleRoot), "/")
		target := filepath.Join(dest, filepath.FromSlash(rel))
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, readErr := bundleFS.ReadFile(p)
		if readErr != nil {
			return readErr
		}
		return os.WriteFile(target, data, 0o644)
	})
	if err != nil {
		logger.Warn("could not install skills bundle to %s: %v", dest, err)
		return
	}
	logger.Debug("installed skills bundle to %s", dest)
}

// Installed reports whether a working directory has a skills bundle.
func Installed(workDir string) bool {
	info, err := os.Stat(filepath.Join(workDir, TargetDir))
	return err == nil && info.IsDir()
}

// Instructions returns the system instructions for a run: the working
// directory's .claude/WRITER.md when present, DefaultInstructions otherwise.
func Instructions(workDir string) string {
	data, err := os.ReadFile(filepath.Join(workDir, TargetDir, instructionsName))
	if err != nil {
		return DefaultInstructions
	}
	return string(data)
}

// List parses the manifest of every embedded skill.
func List() ([]Manifest, error) {
	skillsDir := path.Join(bundleRoot, "skills")
	entries, err := fs.ReadDir(bundleFS, skillsDir)
	if err != nil {
		return nil, fmt.Errorf("read embedded skills: %w", err)
	}

	manifests := make([]Manifest, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := bundleFS.ReadFile(path.Join(skillsDir, entry.Name(), "SKILL.md"))
		if err != nil {
			return nil, fmt.Errorf("skill %q has no SKILL.md: %w", entry.Name(), err)
		}
		manifest, _, err := parseFrontMatter(data)
		if err != nil {
			return nil, fmt.Errorf("skill %q: %w", entry.Name(), err)
		}
		manifests = append(manifests, manifest)
	}
	return manifests, nil
}

// parseFrontMatter splits a SKILL.md into its YAML manifest and markdown body.
func parseFrontMatter(data []byte) (Manifest, string, error) {
	var manifest Manifest

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if !strings.HasPrefix(text, "---\n") {
		return manifest, "", fmt.Errorf("missing front-matter fence")
	}
	rest := text[len("---\n"):]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		return manifest, "", fmt.Errorf("unterminated front matter")
	}

	head := rest[:end]
	body := strings.TrimPrefix(rest[end+len("\n---\n"):], "\n")

	if err := yaml.Unmarshal([]byte(head), &manifest); err != nil {
		return manifest, "", fmt.Errorf("parse front matter: %w", err)
	}
	if manifest.Name == "" {
		return manifest, "", fmt.Errorf("front matter missing name")
	}
	return manifest, body, nil
}
