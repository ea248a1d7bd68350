package paper

import (
	"os"
	"path/filepath"
	"testing"
)

func writeBib(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "references.bib")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write bib: %v", err)
	}
	return path
}

func TestSniffBibliographyBibtex(t *testing.T) {
	path := writeBib(t, `@string{acm = "ACM"}
@comment{internal note}
@article{smith2020,
  author = {Smith, J.},
  journal = {Nature},
  year = {2020}
}
@inproceedings{doe2021,
  author = {Doe, R.},
  booktitle = {Proc. of Things},
}
@book(lee1999,
  publisher = {Springer}
)
`)

	count, style := SniffBibliography(path)
	if count != 3 {
		t.Errorf("count = %d, want 3 (directives excluded)", count)
	}
	if style != "bibtex" {
		t.Errorf("style = %q, want %q", style, "bibtex")
	}
}

func TestSniffBibliographyBiblatexEntryType(t *testing.T) {
	path := writeBib(t, `@online{rfc2023,
  title = {An Internet Standard},
  url = {https://example.org},
}
@article{smith2020,
  year = {2020}
}
`)

	count, style := SniffBibliography(path)
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if style != "biblatex" {
		t.Errorf("style = %q, want %q", style, "biblatex")
	}
}

func TestSniffBibliographyBiblatexFields(t *testing.T) {
	path := writeBib(t, `@article{smith2020,
  journaltitle = {Nature},
  date = {2020-04-01},
}
`)

	count, style := SniffBibliography(path)
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if style != "biblatex" {
		t.Errorf("style = %q, want %q", style, "biblatex")
	}
}

func TestSniffBibliographyEmpty(t *testing.T) {
	count, style := SniffBibliography(writeBib(t, "% nothing here\n"))
	if count != 0 || style != "" {
		t.Errorf("got (%d, %q), want (0, \"\")", count, style)
	}
}

func TestSniffBibliographyMissingFile(t *testing.T) {
	count, style := SniffBibliography(filepath.Join(t.TempDir(), "absent.bib"))
	if count != 0 || style != "" {
		t.Errorf("got (%d, %q), want (0, \"\")", count, style)
	}
}
