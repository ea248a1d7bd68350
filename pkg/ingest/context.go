package ingest

import (
	"fmt"
	"strings"
)

// ContextMessage renders an ingestion report as a prompt block telling the
// authoring agent what material is already in place and where. Returns the
// empty string when nothing was ingested.
func ContextMessage(r *Report) string {
	if r.Empty() {
		return ""
	}

	var parts []string
	parts = append(parts, "\n[DATA FILES AVAILABLE]")

	// Manuscript inputs flip the run from authoring to editing, so they
	// come first and get the loudest framing.
	if len(r.Manuscripts) > 0 {
		parts = append(parts, "\nEDITING MODE - Manuscript files (.tex) detected!")
		parts = append(parts, "\nManuscript files (in drafts/ folder for editing):")
		for _, f := range r.Manuscripts {
			parts = append(parts, fmt.Sprintf("  - %s (%s): %s", f.Name, f.Extension, f.Path))
		}
		parts = append(parts, "\nTASK: This is an EDITING task, not creating from scratch.")
		parts = append(parts, "   -> Read the existing manuscript from drafts/")
		parts = append(parts, "   -> Apply the requested changes/improvements")
		parts = append(parts, "   -> Create a new version following the version numbering protocol")
		parts = append(parts, "   -> Document changes in revision_notes.md")
	}

	if len(r.Sources) > 0 {
		parts = append(parts, "\nSource/Context files (in sources/ folder for reference):")
		for _, f := range r.Sources {
			parts = append(parts, fmt.Sprintf("  - %s (%s): %s", f.Name, f.Extension, f.Path))
		}
		parts = append(parts, "\nNote: These files are available as reference/context material.")
	}

	if len(r.Data) > 0 {
		parts = append(parts, "\nData files (in data/ folder):")
		for _, f := range r.Data {
			parts = append(parts, fmt.Sprintf("  - %s: %s", f.Name, f.Path))
		}
	}

	if len(r.Images) > 0 {
		direct, fromDocs := splitImagesBySource(r.Images)

		parts = append(parts, "\nImage files (in figures/ folder):")
		if len(direct) > 0 {
			parts = append(parts, "  Directly provided:")
			for _, f := range direct {
				parts = append(parts, fmt.Sprintf("    - %s: %s", f.Name, f.Path))
			}
		}
		if len(fromDocs) > 0 {
			parts = append(parts, "  Extracted from .docx files:")
			for _, group := range fromDocs {
				parts = append(parts, fmt.Sprintf("    - From %s: %s", group.source, strings.Join(group.names, ", ")))
			}
		}
		parts = append(parts, "\nNote: These images can be referenced as figures in the paper.")
	}

	parts = append(parts, "[END DATA FILES]\n")
	return strings.Join(parts, "\n")
}

type imageGroup struct {
	source string
	names  []string
}

// splitImagesBySource separates directly provided images from extracted
// ones, grouping the latter by originating archive in first-seen order.
func splitImagesBySource(images []FileRecord) ([]FileRecord, []imageGroup) {
	var direct []FileRecord
	var groups []imageGroup
	index := map[string]int{}

	for _, img := range images {
		if img.SourceDoc == "" {
			direct = append(direct, img)
			continue
		}
		i, ok := index[img.SourceDoc]
		if !ok {
			i = len(groups)
			index[img.SourceDoc] = i
			groups = append(groups, imageGroup{source: img.SourceDoc})
		}
		groups[i].names = append(groups[i].names, img.Name)
	}
	return direct, groups
}
