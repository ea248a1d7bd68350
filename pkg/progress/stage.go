// Package progress infers stage-labeled progress events from the raw event
// stream of an authoring run. Classification is split between two pure
// strategy functions (ClassifyTool for tool invocations, DetectStage for
// accumulated narration) and a Tracker that owns the mutable run state and
// enforces duplicate suppression.
package progress

// Stage identifies where an authoring run currently is in its lifecycle.
// Stages are ordered; later stages loosely supersede earlier ones, but
// regressions are permitted: a late edit may legitimately report a
// writing-stage message after compilation has begun.
type Stage string

const (
	// StageInitialization covers workspace and directory setup.
	StageInitialization Stage = "initialization"

	// StagePlanning covers outline and reference-material review.
	StagePlanning Stage = "planning"

	// StageResearch covers literature and data gathering.
	StageResearch Stage = "research"

	// StageWriting covers manuscript drafting and revision.
	StageWriting Stage = "writing"

	// StageCompilation covers typesetting and bibliography processing.
	StageCompilation Stage = "compilation"

	// StageComplete covers final output organization.
	StageComplete Stage = "complete"
)

// stageOrder fixes the progression used by ordering comparisons.
var stageOrder = []Stage{
	StageInitialization,
	StagePlanning,
	StageResearch,
	StageWriting,
	StageCompilation,
	StageComplete,
}

// Index returns the position of s in the stage progression. Unknown values
// map to 0 so that a corrupted stage degrades to the earliest position
// instead of failing.
func (s Stage) Index() int {
	for i, stage := range stageOrder {
		if s == stage {
			return i
		}
	}
	return 0
}

// Before reports whether s strictly precedes other in the progression.
func (s Stage) Before(other Stage) bool {
	return s.Index() < other.Index()
}

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	for _, stage := range stageOrder {
		if s == stage {
			return true
		}
	}
	return false
}

// Stages returns the full progression in order.
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// Event is one emitted progress record. Events are immutable once emitted
// and ordered by emission time; Details is populated only for
// tool-originated events.
type Event struct {
	Stage   Stage          `json:"stage"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
