package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerSuppressesDuplicateMessages(t *testing.T) {
	tr := NewTracker()
	args := map[string]any{"file_path": "output/main.tex"}

	ev := tr.ObserveTool("write", args)
	require.NotNil(t, ev)
	assert.Equal(t, StageWriting, ev.Stage)
	assert.Equal(t, "Creating main document structure", ev.Message)

	// The identical invocation again produces nothing.
	assert.Nil(t, tr.ObserveTool("write", args))
	assert.Equal(t, 2, tr.ToolCalls())
}

func TestTrackerNeverEmitsConsecutiveIdenticalMessages(t *testing.T) {
	tr := NewTracker()
	events := []struct {
		name string
		args map[string]any
	}{
		{"bash", map[string]any{"command": "mkdir figures"}},
		{"bash", map[string]any{"command": "mkdir -p paper/figures"}},
		{"write", map[string]any{"file_path": "refs.bib"}},
		{"write", map[string]any{"file_path": "citations.bib"}},
		{"bash", map[string]any{"command": "pdflatex main.tex"}},
		{"bash", map[string]any{"command": "pdflatex main.tex"}},
	}

	var messages []string
	for _, e := range events {
		if ev := tr.ObserveTool(e.name, e.args); ev != nil {
			messages = append(messages, ev.Message)
		}
	}

	require.NotEmpty(t, messages)
	for i := 1; i < len(messages); i++ {
		assert.NotEqual(t, messages[i-1], messages[i], "consecutive duplicate at %d", i)
	}
	// Both bibliography writes share one message, so only the first emits.
	assert.Equal(t, []string{
		"Setting up figures directory",
		"Creating bibliography with references",
		"Compiling LaTeX to PDF",
	}, messages)
}

func TestTrackerToolDetails(t *testing.T) {
	tr := NewTracker()

	tr.ObserveTool("read", map[string]any{"file_path": "outline.md"})
	tr.ObserveTool("write", map[string]any{"file_path": "sections/intro.tex"})
	ev := tr.ObserveTool("write", map[string]any{"file_path": "sections/methods.tex"})

	require.NotNil(t, ev)
	require.NotNil(t, ev.Details)
	assert.Equal(t, "write", ev.Details["tool"])
	assert.Equal(t, 3, ev.Details["tool_calls"])
	assert.Equal(t, 2, ev.Details["files_created"])

	// Rewriting an already-seen target does not grow the distinct count.
	tr.ObserveTool("write", map[string]any{"file_path": "sections/intro.tex"})
	assert.Equal(t, 2, tr.FilesCreated())
	assert.Equal(t, 4, tr.ToolCalls())
}

func TestTrackerTextTransitions(t *testing.T) {
	tr := NewTracker()

	assert.Nil(t, tr.ObserveText("Let me draft the outline first. "))
	assert.Equal(t, StageInitialization, tr.Stage())

	ev := tr.ObserveText("Now compiling the document with pdflatex. ")
	require.NotNil(t, ev)
	assert.Equal(t, StageCompilation, ev.Stage)
	assert.Equal(t, "Compiling document", ev.Message)
	assert.Nil(t, ev.Details)

	// The trigger word stays in the accumulated buffer but the detector
	// only fires while the stage precedes its target.
	assert.Nil(t, tr.ObserveText("Still compiling. "))

	ev = tr.ObserveText("PDF generated successfully. ")
	require.NotNil(t, ev)
	assert.Equal(t, StageComplete, ev.Stage)
	assert.Equal(t, "Finalizing output", ev.Message)
}

func TestTrackerAllowsStageRegression(t *testing.T) {
	tr := NewTracker()

	ev := tr.ObserveTool("bash", map[string]any{"command": "pdflatex main.tex"})
	require.NotNil(t, ev)
	require.Equal(t, StageCompilation, tr.Stage())

	// An edit after compilation still reports a writing-stage message.
	ev = tr.ObserveTool("edit", map[string]any{"file_path": "sections/results.tex"})
	require.NotNil(t, ev)
	assert.Equal(t, StageWriting, ev.Stage)
	assert.Equal(t, "Refining results section", ev.Message)
	assert.Equal(t, StageWriting, tr.Stage())
}

func TestTrackerTransitionHistory(t *testing.T) {
	tr := NewTracker()
	tr.ObserveTool("bash", map[string]any{"command": "mkdir drafts"})
	tr.ObserveTool("write", map[string]any{"file_path": "main.tex"})

	transitions := tr.Transitions()
	require.Len(t, transitions, 2)
	assert.Equal(t, StageInitialization, transitions[0].From)
	assert.Equal(t, StageInitialization, transitions[0].To)
	assert.Equal(t, StageInitialization, transitions[1].From)
	assert.Equal(t, StageWriting, transitions[1].To)
	assert.Equal(t, "Creating main document structure", transitions[1].Message)
	assert.False(t, transitions[0].At.IsZero())
}

func TestTrackerAccumulatesText(t *testing.T) {
	tr := NewTracker()
	tr.ObserveText("first ")
	tr.ObserveText("second")
	assert.Equal(t, "first second", tr.Text())
}
