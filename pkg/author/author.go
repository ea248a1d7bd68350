// Package author drives a document-authoring agent session and streams its
// activity back to the caller as a flat sequence of events.
//
// Two interchangeable sources produce the same event stream: APISource talks
// to the Anthropic Messages API directly and executes tools locally, while
// CLISource delegates the session to the claude CLI and parses its
// stream-json output. Callers consume events without caring which source
// produced them.
package author

import (
	"context"

	"paperwright/pkg/config"
)

// EventKind identifies what a stream event carries.
type EventKind string

// Event kinds emitted by a Source.
const (
	// EventText is a narration block from the model.
	EventText EventKind = "text"
	// EventToolUse marks a tool invocation by the model.
	EventToolUse EventKind = "tool_use"
	// EventResult is the terminal event of a session. It carries the
	// accumulated usage and, on failure, the session error.
	EventResult EventKind = "result"
)

// Event is a single item in the session stream. A Source emits zero or more
// text and tool events followed by exactly one result event, then closes the
// channel.
type Event struct {
	Kind     EventKind
	Text     string         // narration for EventText, final summary for EventResult
	ToolName string         // set for EventToolUse
	ToolID   string         // provider-assigned call ID, may be empty in CLI mode
	ToolArgs map[string]any // tool input for EventToolUse, nil when unavailable
	Usage    Usage          // populated on EventResult
	Err      error          // terminal error, only ever set on EventResult
}

// Usage accumulates token and cost accounting across a session.
type Usage struct {
	InputTokens         int64
	OutputTokens        int64
	CacheCreationTokens int64
	CacheReadTokens     int64
	CostUSD             float64
	// Estimated is true when the counts come from a tokenizer estimate
	// rather than provider-reported usage.
	Estimated bool
}

// Add accumulates another usage sample into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationTokens += other.CacheCreationTokens
	u.CacheReadTokens += other.CacheReadTokens
	u.CostUSD += other.CostUSD
}

// TotalTokens returns input plus output tokens.
func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

// HasTokens reports whether any provider-reported counts were collected.
// When false the caller should fall back to a tokenizer estimate.
func (u Usage) HasTokens() bool {
	return u.InputTokens > 0 || u.OutputTokens > 0
}

// CostForTokens prices a token count against the known-model price table.
// Models without pricing information cost zero.
func CostForTokens(model string, inputTokens, outputTokens int64) float64 {
	info, _ := config.GetModelInfo(model)
	return float64(inputTokens)/1e6*info.InputCPM + float64(outputTokens)/1e6*info.OutputCPM
}

// Request describes a single authoring session.
type Request struct {
	// WorkDir is the directory the agent works in. Tool paths resolve
	// relative to it and the CLI subprocess runs with it as cwd.
	WorkDir string

	// Model names the model to drive. Empty selects the default writer
	// model.
	Model string

	// SystemPrompt is prepended as the system message. Optional.
	SystemPrompt string

	// Prompt is the initial user message. Required.
	Prompt string

	// MaxTurns caps the number of model calls in the session. Zero selects
	// the default cap.
	MaxTurns int

	// Temperature for sampling. Zero leaves the provider default.
	Temperature float64

	// AllowedTools restricts which tools the agent may call. Nil selects
	// the full writer tool set, filtered by search availability.
	AllowedTools []string

	// AutoContinue nudges the session to keep going the first time the
	// model stops without finishing. The CLI mode has no equivalent
	// control and ignores it.
	AutoContinue bool
}

// Source runs authoring sessions. Run returns a channel that yields the
// session's events and is closed after the terminal result event. Run itself
// only fails on startup problems (bad request, missing binary); runtime
// failures arrive as the result event's Err.
type Source interface {
	Name() string
	Run(ctx context.Context, req Request) (<-chan Event, error)
}

// applyRequestDefaults fills the zero fields of a request in place.
func applyRequestDefaults(req *Request) {
	if req.Model == "" {
		req.Model = config.DefaultWriterModel
	}
	if req.MaxTurns <= 0 {
		req.MaxTurns = config.DefaultMaxTurns
	}
	if req.AllowedTools == nil {
		req.AllowedTools = FilterSearchTools(WriterTools)
	}
}

// emit sends an event unless the context is cancelled first. Returns false
// when the send was abandoned.
func emit(ctx context.Context, events chan<- Event, evt Event) bool {
	select {
	case events <- evt:
		return true
	case <-ctx.Done():
		return false
	}
}
