package progress

import (
	"strings"
	"time"
)

// Transition is one accepted stage/message change, recorded for auditing.
type Transition struct {
	At      time.Time
	From    Stage
	To      Stage
	Message string
}

// Tracker owns the mutable state of the progress inference engine for one
// run: the current stage, the accumulated narration buffer, the last
// emitted message, and running tool counters. It drives the pure
// classifiers over the live event stream and suppresses any candidate whose
// message equals the immediately preceding emitted message.
//
// A Tracker is driven by a single consumer goroutine and is not safe for
// concurrent use.
type Tracker struct {
	current      Stage
	accumulated  strings.Builder
	lastMessage  string
	toolCalls    int
	writeTargets map[string]struct{}
	transitions  []Transition
}

// NewTracker returns a Tracker in the initialization stage.
func NewTracker() *Tracker {
	return &Tracker{
		current:      StageInitialization,
		writeTargets: make(map[string]struct{}),
	}
}

// ObserveText appends one narration fragment to the accumulated buffer and
// returns a progress event when the text reveals a stage transition, or nil.
func (t *Tracker) ObserveText(content string) *Event {
	t.accumulated.WriteString(content)

	stage, msg, ok := DetectStage(t.accumulated.String(), t.current)
	if !ok || stage == t.current || msg == "" || msg == t.lastMessage {
		return nil
	}

	t.push(stage, msg)
	return &Event{Stage: stage, Message: msg}
}

// ObserveTool feeds one tool invocation through the classifier and returns
// a progress event, or nil when the tool carries no progress-worthy signal
// or would repeat the previous message. Tool and write-target counters
// advance for every invocation, emitted or not.
func (t *Tracker) ObserveTool(name string, args map[string]any) *Event {
	t.toolCalls++
	if strings.EqualFold(name, "write") {
		if p := pathArg(args); p != "" {
			t.writeTargets[p] = struct{}{}
		}
	}

	stage, msg, ok := ClassifyTool(name, args, t.current)
	if !ok || msg == t.lastMessage {
		return nil
	}

	t.push(stage, msg)
	return &Event{
		Stage:   stage,
		Message: msg,
		Details: map[string]any{
			"tool":          name,
			"tool_calls":    t.toolCalls,
			"files_created": len(t.writeTargets),
		},
	}
}

// push accepts a transition: current stage and last message update before
// the next event is processed.
func (t *Tracker) push(stage Stage, msg string) {
	t.transitions = append(t.transitions, Transition{
		At:      time.Now().UTC(),
		From:    t.current,
		To:      stage,
		Message: msg,
	})
	t.current = stage
	t.lastMessage = msg
}

// Stage returns the current stage.
func (t *Tracker) Stage() Stage {
	return t.current
}

// LastMessage returns the most recently emitted message.
func (t *Tracker) LastMessage() string {
	return t.lastMessage
}

// ToolCalls returns the number of tool invocations observed so far.
func (t *Tracker) ToolCalls() int {
	return t.toolCalls
}

// FilesCreated returns the number of distinct write targets observed.
func (t *Tracker) FilesCreated() int {
	return len(t.writeTargets)
}

// Text returns the accumulated narration seen so far.
func (t *Tracker) Text() string {
	return t.accumulated.String()
}

// Transitions returns the accepted transition history in order.
func (t *Tracker) Transitions() []Transition {
	out := make([]Transition, len(t.transitions))
	copy(out, t.transitions)
	return out
}
