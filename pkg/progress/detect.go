package progress

import "strings"

// DetectStage is the text fallback for the two transitions that tool
// analysis can miss when the producer narrates instead of acting. It
// operates on the full accumulated narration, fires only while the current
// stage strictly precedes the target, and therefore never regresses and
// never re-fires once its target has been reached.
func DetectStage(accumulated string, current Stage) (Stage, string, bool) {
	text := strings.ToLower(accumulated)

	if current.Before(StageCompilation) {
		if strings.Contains(text, "pdflatex") || strings.Contains(text, "latexmk") || strings.Contains(text, "compiling") {
			return StageCompilation, "Compiling document", true
		}
	}

	if current.Before(StageComplete) {
		if strings.Contains(text, "successfully compiled") || strings.Contains(text, "pdf generated") {
			return StageComplete, "Finalizing output", true
		}
	}

	return current, "", false
}
