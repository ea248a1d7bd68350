package paper

import (
	"os"
	"path/filepath"
	"strings"
)

// BuildResult assembles the terminal Result for a scanned output directory.
// Metadata comes from the primary manuscript, which is the final typeset
// source when present and the first draft otherwise. The inventory's
// relative paths are resolved against dir when files are read.
func BuildResult(dir string, inv Inventory) Result {
	name := filepath.Base(dir)

	res := Result{
		Directory:          dir,
		Name:               name,
		Files:              inv,
		FiguresCount:       len(inv.Figures),
		CompilationSuccess: inv.FinalPDF != "",
		Metadata: Metadata{
			Topic: topicFromName(name),
		},
	}

	if info, err := os.Stat(dir); err == nil {
		res.Metadata.CreatedAt = info.ModTime().UTC()
	}

	if manuscript := primaryManuscript(inv); manuscript != "" {
		full := filepath.Join(dir, filepath.FromSlash(manuscript))
		res.Metadata.Title = ExtractTitle(full)
		res.Metadata.WordCount = CountWords(full)
	}

	if inv.Bibliography != "" {
		full := filepath.Join(dir, filepath.FromSlash(inv.Bibliography))
		count, style := SniffBibliography(full)
		res.Citations = Citations{Count: count, Style: style, File: inv.Bibliography}
	}

	switch {
	case res.CompilationSuccess:
		res.Status = StatusSuccess
	case inv.FinalTeX != "":
		res.Status = StatusPartial
	default:
		res.Status = StatusFailed
	}
	return res
}

// FailedResult is the outcome for a run that produced nothing to scan. Every
// optional field stays absent and errors carries the single reason.
func FailedResult(reason string) Result {
	return Result{
		Status: StatusFailed,
		Files: Inventory{
			DraftPDFs: []string{},
			DraftTeXs: []string{},
			Figures:   []string{},
			DataFiles: []string{},
		},
		Errors: []string{reason},
	}
}

// primaryManuscript returns the manuscript metadata is read from.
func primaryManuscript(inv Inventory) string {
	if inv.FinalTeX != "" {
		return inv.FinalTeX
	}
	if len(inv.DraftTeXs) > 0 {
		return inv.DraftTeXs[0]
	}
	return ""
}

// topicFromName derives a human topic from a directory name of the form
// prefix_timestamp_some_topic_words: everything after the second underscore,
// with the remaining underscores read as spaces. Names without that shape
// have no topic.
func topicFromName(name string) string {
	parts := strings.SplitN(name, "_", 3)
	if len(parts) < 3 {
		return ""
	}
	return strings.ReplaceAll(parts[2], "_", " ")
}
