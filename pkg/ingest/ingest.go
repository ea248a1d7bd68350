// Package ingest routes caller-supplied input files into a run's output
// directory, pulling figure material out of document archives along the way.
package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"paperwright/pkg/logx"
	"paperwright/pkg/paper"
)

var logger = logx.NewLogger("ingest")

// FileRecord describes one file placed into the output tree.
type FileRecord struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Original  string `json:"original,omitempty"`
	Extension string `json:"extension,omitempty"`

	// SourceDoc names the archive this file was extracted from, when it
	// was not provided directly.
	SourceDoc string `json:"source_docx,omitempty"`
}

// Report summarizes one ingestion pass, bucketed by destination.
type Report struct {
	Manuscripts []FileRecord
	Images      []FileRecord
	Data        []FileRecord
	Sources     []FileRecord

	// Processed counts the inputs the pass accounted for: copies under
	// Process, classifications under Plan. Images extracted from archives
	// do not count.
	Processed int
}

// Empty reports whether the pass placed anything at all.
func (r *Report) Empty() bool {
	return r == nil || r.Processed == 0
}

// Discover resolves the input file list for a run. Explicit paths win as
// given; otherwise the flat contents of workDir/data are used when that
// folder exists.
func Discover(workDir string, explicit []string) []string {
	if len(explicit) > 0 {
		files := make([]string, 0, len(explicit))
		for _, f := range explicit {
			if abs, err := filepath.Abs(f); err == nil {
				files = append(files, abs)
			} else {
				files = append(files, f)
			}
		}
		return files
	}

	dataDir := filepath.Join(workDir, "data")
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, filepath.Join(dataDir, entry.Name()))
	}
	return files
}

// Plan classifies each input without copying anything. Record paths are the
// category-relative destinations the files will land at, so the initial
// prompt can describe the material before any output directory exists.
// Archive contents are not inspected; extraction happens during Process.
func Plan(files []string) *Report {
	if len(files) == 0 {
		return nil
	}

	report := &Report{}
	for _, file := range files {
		name := filepath.Base(file)
		ext := strings.ToLower(filepath.Ext(file))
		cat := paper.Classify(file)

		rec := FileRecord{
			Name:      name,
			Path:      filepath.Join(cat.Subdir(), name),
			Original:  file,
			Extension: ext,
		}
		switch cat {
		case paper.CategoryManuscript:
			report.Manuscripts = append(report.Manuscripts, rec)
		case paper.CategoryImage:
			report.Images = append(report.Images, rec)
		case paper.CategoryData:
			report.Data = append(report.Data, rec)
		default:
			report.Sources = append(report.Sources, rec)
		}
		report.Processed++
	}
	return report
}

// Process copies each input into the category subdirectory of outputDir that
// its extension selects, extracting embedded images from .docx inputs as it
// goes. Files that cannot be read are skipped with a warning rather than
// failing the pass. With deleteOriginals set, successfully copied inputs are
// removed afterwards.
func Process(files []string, outputDir string, deleteOriginals bool) (*Report, error) {
	if len(files) == 0 {
		return nil, nil
	}

	for _, cat := range []paper.Category{
		paper.CategoryManuscript, paper.CategoryImage, paper.CategoryData, paper.CategorySource,
	} {
		dir := filepath.Join(outputDir, cat.Subdir())
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s directory: %w", cat.Subdir(), err)
		}
	}

	figuresDir := filepath.Join(outputDir, paper.CategoryImage.Subdir())
	report := &Report{}

	for _, file := range files {
		name := filepath.Base(file)
		ext := strings.ToLower(filepath.Ext(file))
		cat := paper.Classify(file)
		dest := filepath.Join(outputDir, cat.Subdir(), name)

		if err := copyFile(file, dest); err != nil {
			logger.Warn("could not process %s: %v", name, err)
			continue
		}

		rec := FileRecord{Name: name, Path: dest, Original: file, Extension: ext}
		switch cat {
		case paper.CategoryManuscript:
			report.Manuscripts = append(report.Manuscripts, rec)
		case paper.CategoryImage:
			report.Images = append(report.Images, rec)
		case paper.CategoryData:
			report.Data = append(report.Data, rec)
		default:
			report.Sources = append(report.Sources, rec)
		}
		report.Processed++

		if ext == ".docx" {
			report.Images = append(report.Images, ExtractImages(file, figuresDir)...)
		}

		if deleteOriginals {
			if err := os.Remove(file); err != nil {
				logger.Warn("could not delete original %s: %v", name, err)
			}
		}
	}

	return report, nil
}

// copyFile copies src to dest preserving mode and modification time.
func copyFile(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", src)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dest, info.ModTime(), info.ModTime())
}
