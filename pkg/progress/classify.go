package progress

import (
	"path/filepath"
	"strings"
)

// sectionNames maps filename keywords to section names for descriptive
// messages. When several keywords match, the longest one wins, so
// "methodology" beats the "method" substring inside it; ties keep the
// earlier entry.
var sectionNames = []struct {
	key     string
	section string
}{
	{"abstract", "abstract"},
	{"intro", "introduction"},
	{"introduction", "introduction"},
	{"method", "methods"},
	{"methods", "methods"},
	{"methodology", "methodology"},
	{"result", "results"},
	{"results", "results"},
	{"discussion", "discussion"},
	{"conclusion", "conclusion"},
	{"conclusions", "conclusions"},
	{"background", "background"},
	{"related", "related work"},
	{"experiment", "experiments"},
	{"experiments", "experiments"},
	{"evaluation", "evaluation"},
	{"appendix", "appendix"},
	{"supplement", "supplementary material"},
}

// sectionFromFilename infers a manuscript section from a filename, matching
// case-insensitively with the .tex/.md extension stripped.
func sectionFromFilename(filename string) (string, bool) {
	name := strings.ToLower(filename)
	name = strings.ReplaceAll(name, ".tex", "")
	name = strings.ReplaceAll(name, ".md", "")

	bestLen := 0
	section := ""
	for _, m := range sectionNames {
		if strings.Contains(name, m.key) && len(m.key) > bestLen {
			bestLen = len(m.key)
			section = m.section
		}
	}
	return section, bestLen > 0
}

// detectDocType infers the document type from substrings of the full path.
func detectDocType(path string) string {
	p := strings.ToLower(path)
	switch {
	case strings.Contains(p, "slide") || strings.Contains(p, "presentation") || strings.Contains(p, "beamer"):
		return "slides"
	case strings.Contains(p, "poster"):
		return "poster"
	case strings.Contains(p, "report"):
		return "report"
	case strings.Contains(p, "grant") || strings.Contains(p, "proposal"):
		return "grant"
	default:
		return "document"
	}
}

// truncateQuery shortens q to max runes with an ellipsis marker.
func truncateQuery(q string, max int) string {
	runes := []rune(q)
	if len(runes) > max {
		return string(runes[:max]) + "..."
	}
	return q
}

// stringArg extracts a string argument, tolerating absent or non-string
// values.
func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// pathArg returns the target path of a file tool, checking the common
// argument spellings.
func pathArg(args map[string]any) string {
	if p := stringArg(args, "file_path"); p != "" {
		return p
	}
	return stringArg(args, "path")
}

// ClassifyTool maps one tool invocation to an optional (stage, message)
// pair. It never fails: missing or malformed arguments degrade to a generic
// message or to no signal at all. The returned bool reports whether a
// progress-worthy signal was found.
func ClassifyTool(name string, args map[string]any, current Stage) (Stage, string, bool) {
	if args == nil {
		args = map[string]any{}
	}

	filePath := pathArg(args)
	command := stringArg(args, "command")
	filename := ""
	if filePath != "" {
		filename = filepath.Base(filePath)
	}
	docType := detectDocType(filePath)

	switch strings.ToLower(name) {
	case "read":
		return classifyRead(filePath, filename, current)
	case "write":
		return classifyWrite(filePath, filename, docType, current)
	case "edit":
		return classifyEdit(filePath, filename, current)
	case "bash":
		return classifyCommand(command, current)
	}

	lower := strings.ToLower(name)
	if strings.Contains(lower, "research") || strings.Contains(lower, "lookup") {
		if q := stringArg(args, "query"); q != "" {
			return StageResearch, "Searching: " + truncateQuery(q, 50), true
		}
		return StageResearch, "Searching literature databases", true
	}
	if strings.Contains(lower, "search") || strings.Contains(lower, "web") {
		q := stringArg(args, "query")
		if q == "" {
			q = stringArg(args, "search_term")
		}
		if q != "" {
			return StageResearch, "Web search: " + truncateQuery(q, 40), true
		}
		return StageResearch, "Searching online resources", true
	}

	return current, "", false
}

func classifyRead(filePath, filename string, current Stage) (Stage, string, bool) {
	switch {
	case strings.Contains(filePath, ".bib"):
		return StageWriting, "Reading bibliography: " + filename, true
	case strings.Contains(filePath, ".tex"):
		if section, ok := sectionFromFilename(filename); ok {
			return StageWriting, "Reading " + section + " section", true
		}
		return StageWriting, "Reading " + filename, true
	case strings.Contains(filePath, ".pdf"):
		return StageResearch, "Analyzing PDF: " + filename, true
	case strings.Contains(filePath, ".csv"):
		return StageResearch, "Loading data from " + filename, true
	case strings.Contains(filePath, ".json"):
		return StageResearch, "Reading configuration: " + filename, true
	case strings.Contains(filePath, ".md"):
		return StagePlanning, "Reading " + filename, true
	case filePath != "":
		return current, "Reading " + filename, true
	}
	return current, "", false
}

func classifyWrite(filePath, filename, docType string, current Stage) (Stage, string, bool) {
	switch {
	case strings.Contains(filePath, ".bib"):
		return StageWriting, "Creating bibliography with references", true
	case strings.Contains(filePath, ".tex"):
		if section, ok := sectionFromFilename(filename); ok {
			return StageWriting, "Writing " + section + " section", true
		}
		if strings.Contains(strings.ToLower(filename), "main") {
			return StageWriting, "Creating main " + docType + " structure", true
		}
		if current.Before(StageWriting) {
			return StageWriting, "Writing " + docType + ": " + filename, true
		}
		return StageCompilation, "Updating " + filename, true
	case strings.Contains(filePath, ".md"):
		lower := strings.ToLower(filename)
		if strings.Contains(lower, "progress") {
			return StageWriting, "Updating progress log", true
		}
		if strings.Contains(lower, "readme") {
			return StageComplete, "Creating documentation", true
		}
		return StageWriting, "Writing " + filename, true
	case strings.Contains(filePath, ".sty"):
		return StageWriting, "Creating style file: " + filename, true
	case strings.Contains(filePath, ".cls"):
		return StageWriting, "Creating document class: " + filename, true
	case filePath != "":
		return current, "Creating " + filename, true
	}
	return current, "", false
}

func classifyEdit(filePath, filename string, current Stage) (Stage, string, bool) {
	switch {
	case strings.Contains(filePath, ".tex"):
		if section, ok := sectionFromFilename(filename); ok {
			return StageWriting, "Refining " + section + " section", true
		}
		return StageWriting, "Editing " + filename, true
	case strings.Contains(filePath, ".bib"):
		return StageWriting, "Updating bibliography", true
	case filePath != "":
		return current, "Editing " + filename, true
	}
	return current, "", false
}

// classifyCommand matches shell commands in priority order: typesetting
// engines first, then directory setup, then file organization. Pure
// inspection commands are suppressed so the narrative is not flooded with
// ls/cat noise.
func classifyCommand(command string, current Stage) (Stage, string, bool) {
	switch {
	case strings.Contains(command, "pdflatex"):
		if strings.Contains(command, "-output-directory") {
			return StageCompilation, "Compiling PDF with output directory", true
		}
		return StageCompilation, "Compiling LaTeX to PDF", true
	case strings.Contains(command, "latexmk"):
		return StageCompilation, "Running full LaTeX compilation pipeline", true
	case strings.Contains(command, "bibtex"):
		return StageCompilation, "Processing bibliography citations", true
	case strings.Contains(command, "makeindex"):
		return StageCompilation, "Building document index", true
	case strings.Contains(command, "mkdir"):
		// Specific directory purposes win over the generic output match:
		// "mkdir -p output/figures" is figures setup, not output setup.
		lower := strings.ToLower(command)
		switch {
		case strings.Contains(lower, "figures"):
			return StageInitialization, "Setting up figures directory", true
		case strings.Contains(lower, "drafts"):
			return StageInitialization, "Setting up drafts directory", true
		case strings.Contains(command, "writing_outputs") || strings.Contains(lower, "output"):
			return StageInitialization, "Creating output directory", true
		}
		return StageInitialization, "Creating directory structure", true
	case strings.Contains(command, "cp "):
		switch {
		case strings.Contains(command, ".pdf"):
			return StageComplete, "Copying final PDF to output", true
		case strings.Contains(command, ".tex"):
			return StageComplete, "Archiving LaTeX source", true
		}
		return StageComplete, "Organizing files", true
	case strings.Contains(command, "mv "):
		return StageComplete, "Moving files to final location", true
	case strings.Contains(command, "ls ") || strings.Contains(command, "cat "):
		return current, "", false
	case command != "":
		fields := strings.Fields(command)
		preview := command
		if len(fields) > 0 {
			preview = fields[0]
		} else if runes := []rune(command); len(runes) > 30 {
			preview = string(runes[:30])
		}
		return current, "Running " + preview, true
	}
	return current, "", false
}
