package paper

import (
	"io/fs"
	"path"
	"path/filepath"
	"strings"
)

// Placement ranks for final-slot selection. A typeset file sitting in a
// final/ directory outranks one at the top level, which outranks anything
// nested elsewhere.
const (
	rankFinalDir = iota
	rankTopLevel
	rankNested
)

type typesetFile struct {
	rel  string
	rank int
}

// Scan walks an output directory and classifies every visible file into an
// Inventory. Hidden files and directories are skipped, and files that match
// no slot are ignored rather than treated as errors.
func Scan(dir string) (Inventory, error) {
	inv := Inventory{
		DraftPDFs: []string{},
		DraftTeXs: []string{},
		Figures:   []string{},
		DataFiles: []string{},
	}

	var pdfs, texs []typesetFile

	root := filepath.Clean(dir)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		ext := strings.ToLower(path.Ext(rel))
		base := strings.ToLower(strings.TrimSuffix(path.Base(rel), path.Ext(rel)))

		switch {
		case ext == ".md" && strings.Contains(base, "progress"):
			if inv.ProgressLog == "" {
				inv.ProgressLog = rel
			}
		case ext == ".md" && strings.Contains(base, "summary"):
			if inv.Summary == "" {
				inv.Summary = rel
			}
		case ext == ".pdf":
			pdfs = append(pdfs, typesetFile{rel: rel, rank: placementRank(rel)})
		case ext == ".tex":
			texs = append(texs, typesetFile{rel: rel, rank: placementRank(rel)})
		case ext == ".bib":
			if inv.Bibliography == "" {
				inv.Bibliography = rel
			}
		case isImageExt(ext):
			inv.Figures = append(inv.Figures, rel)
		case isDataExt(ext):
			inv.DataFiles = append(inv.DataFiles, rel)
		}
		return nil
	})
	if err != nil {
		return Inventory{}, err
	}

	inv.FinalPDF, inv.DraftPDFs = splitFinal(pdfs)
	inv.FinalTeX, inv.DraftTeXs = splitFinal(texs)
	return inv, nil
}

// placementRank scores a slash-relative path by where it sits in the tree.
func placementRank(rel string) int {
	parent := path.Dir(rel)
	if parent == "." {
		return rankTopLevel
	}
	if path.Base(parent) == "final" {
		return rankFinalDir
	}
	return rankNested
}

// splitFinal picks the best-ranked file as the final slot and returns the
// rest, in walk order, as drafts. Ties within a rank go to the first file
// encountered, which is lexicographic under WalkDir.
func splitFinal(files []typesetFile) (string, []string) {
	finalIdx := -1
	for i, f := range files {
		if f.rank == rankNested {
			continue
		}
		if finalIdx == -1 || f.rank < files[finalIdx].rank {
			finalIdx = i
		}
	}

	drafts := []string{}
	for i, f := range files {
		if i != finalIdx {
			drafts = append(drafts, f.rel)
		}
	}
	if finalIdx == -1 {
		return "", drafts
	}
	return files[finalIdx].rel, drafts
}
