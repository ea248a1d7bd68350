// Package paper defines the artifact model of an authoring run: the file
// taxonomy shared by ingestion and scanning, the output-directory resolver,
// the output-tree scanner, and the terminal result aggregator.
package paper

import (
	"path/filepath"
	"strings"
)

// Category is the destination class of a file routed into a run's output
// directory.
type Category string

const (
	// CategoryManuscript is typeset-markup source, routed to drafts/.
	CategoryManuscript Category = "manuscript"

	// CategoryImage is figure material, routed to figures/.
	CategoryImage Category = "image"

	// CategoryData is tabular or structured data, routed to data/.
	CategoryData Category = "data"

	// CategorySource is narrative or reference material and the fallback
	// for anything unrecognized, routed to sources/.
	CategorySource Category = "source"
)

// Subdir returns the output subdirectory conventionally holding files of
// this category.
func (c Category) Subdir() string {
	switch c {
	case CategoryManuscript:
		return "drafts"
	case CategoryImage:
		return "figures"
	case CategoryData:
		return "data"
	default:
		return "sources"
	}
}

var manuscriptExts = map[string]struct{}{
	".tex": {},
}

var imageExts = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {},
	".tiff": {}, ".tif": {}, ".svg": {}, ".webp": {}, ".ico": {},
}

var dataExts = map[string]struct{}{
	".csv": {}, ".json": {}, ".txt": {}, ".xlsx": {}, ".xls": {},
	".tsv": {}, ".xml": {}, ".yaml": {}, ".yml": {}, ".sql": {},
}

// Classify resolves a path to exactly one category by its extension. The
// lookup is ordered (manuscript, image, data, source) and total: an
// extension matching an earlier set never falls through to a later one.
// Narrative formats like .md, .docx and .pdf land in source, as does any
// extension nothing else claims.
func Classify(path string) Category {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case isManuscriptExt(ext):
		return CategoryManuscript
	case isImageExt(ext):
		return CategoryImage
	case isDataExt(ext):
		return CategoryData
	default:
		return CategorySource
	}
}

func isManuscriptExt(ext string) bool {
	_, ok := manuscriptExts[ext]
	return ok
}

// IsImageExt reports whether ext (with leading dot, any case) is a known
// image extension.
func IsImageExt(ext string) bool {
	return isImageExt(strings.ToLower(ext))
}

func isImageExt(ext string) bool {
	_, ok := imageExts[ext]
	return ok
}

func isDataExt(ext string) bool {
	_, ok := dataExts[ext]
	return ok
}
