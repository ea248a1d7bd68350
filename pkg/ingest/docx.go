package ingest

import (
	"archive/zip"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"paperwright/pkg/paper"
)

// docx archives keep embedded media under this prefix.
const mediaPrefix = "word/media/"

// ExtractImages pulls every embedded image out of a .docx archive and writes
// it, flattened to its base name, into destDir. Extraction is best effort: a
// corrupted archive or an unreadable member yields however many records were
// recovered before the problem, never an error.
func ExtractImages(docxPath, destDir string) []FileRecord {
	source := filepath.Base(docxPath)

	reader, err := zip.OpenReader(docxPath)
	if err != nil {
		logger.Warn("%s is not a readable .docx archive: %v", source, err)
		return nil
	}
	defer reader.Close()

	var extracted []FileRecord
	for _, member := range reader.File {
		if !strings.HasPrefix(member.Name, mediaPrefix) {
			continue
		}
		ext := strings.ToLower(path.Ext(member.Name))
		if !paper.IsImageExt(ext) {
			continue
		}

		name := path.Base(member.Name)
		dest := filepath.Join(destDir, name)
		if err := extractMember(member, dest); err != nil {
			logger.Warn("could not extract %s from %s: %v", name, source, err)
			continue
		}

		extracted = append(extracted, FileRecord{
			Name:      name,
			Path:      dest,
			Extension: ext,
			SourceDoc: source,
		})
	}
	return extracted
}

func extractMember(member *zip.File, dest string) error {
	in, err := member.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
