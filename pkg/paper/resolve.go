package paper

import (
	"os"
	"path/filepath"
	"time"
)

// resolveTolerance absorbs filesystem timestamp granularity and small clock
// skew between the process and the storage layer.
const resolveTolerance = 5 * time.Second

// ResolveOutputDir picks the subdirectory of parent that the run starting at
// start most plausibly wrote. Candidates are subdirectories modified no
// earlier than start minus the tolerance; when none qualify, every
// subdirectory is considered instead. The most recently modified candidate
// wins. Returns false when parent has no subdirectories or cannot be read.
func ResolveOutputDir(parent string, start time.Time) (string, bool) {
	entries, err := os.ReadDir(parent)
	if err != nil {
		return "", false
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var all []candidate
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		all = append(all, candidate{
			path:    filepath.Join(parent, entry.Name()),
			modTime: info.ModTime(),
		})
	}
	if len(all) == 0 {
		return "", false
	}

	cutoff := start.Add(-resolveTolerance)
	var recent []candidate
	for _, c := range all {
		if !c.modTime.Before(cutoff) {
			recent = append(recent, c)
		}
	}
	if len(recent) == 0 {
		recent = all
	}

	best := recent[0]
	for _, c := range recent[1:] {
		if c.modTime.After(best.modTime) {
			best = c
		}
	}
	return best.path, true
}
