package paper

import (
	"os"
	"regexp"
	"strings"
)

var bibEntry = regexp.MustCompile(`(?m)^\s*@([a-zA-Z]+)\s*[{(]`)

// Non-citation entry types that still open with an @ marker.
var bibDirectives = map[string]struct{}{
	"comment":  {},
	"string":   {},
	"preamble": {},
}

// Entry types introduced by the biblatex dialect. Seeing one marks the file
// as biblatex rather than classic bibtex.
var biblatexEntries = map[string]struct{}{
	"online": {}, "electronic": {}, "software": {}, "dataset": {},
	"thesis": {}, "report": {}, "collection": {}, "mvbook": {},
}

var biblatexFields = regexp.MustCompile(`(?mi)^\s*(date|urldate|journaltitle|location|institution)\s*=`)

// SniffBibliography reads a bibliography file and reports how many citation
// entries it defines and which dialect it appears to use ("bibtex",
// "biblatex", or empty when nothing was recognized). A missing or unreadable
// file yields zero and empty.
func SniffBibliography(path string) (int, string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, ""
	}

	count := 0
	biblatex := false
	for _, m := range bibEntry.FindAllStringSubmatch(string(data), -1) {
		entryType := strings.ToLower(m[1])
		if _, skip := bibDirectives[entryType]; skip {
			continue
		}
		count++
		if _, ok := biblatexEntries[entryType]; ok {
			biblatex = true
		}
	}
	if count == 0 {
		return 0, ""
	}
	if biblatex || biblatexFields.Match(data) {
		return count, "biblatex"
	}
	return count, "bibtex"
}
