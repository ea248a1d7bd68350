package author

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Stream event types emitted by the claude CLI in stream-json mode.
const (
	streamTypeAssistant = "assistant"
	streamTypeResult    = "result"
	streamTypeError     = "error"
)

// StreamEvent represents a parsed line of claude CLI stream-json output.
// Assistant events carry the message with its content blocks and per-message
// usage; the final result event carries the aggregate usage and cost inline.
type StreamEvent struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`

	// Message contains assistant message content (for type="assistant").
	Message *AssistantMessage `json:"message,omitempty"`

	// Result fields (for type="result").
	Result       string     `json:"result,omitempty"`
	IsError      bool       `json:"is_error,omitempty"`
	NumTurns     int        `json:"num_turns,omitempty"`
	TotalCostUSD float64    `json:"total_cost_usd,omitempty"`
	Usage        *UsageInfo `json:"usage,omitempty"`

	// Error contains error information (for type="error").
	Error *ErrorInfo `json:"error,omitempty"`

	SessionID string `json:"session_id,omitempty"`

	// Raw is the raw JSON line for debugging.
	Raw string `json:"-"`
}

// AssistantMessage represents an assistant message in the stream.
type AssistantMessage struct {
	ID      string         `json:"id,omitempty"`
	Role    string         `json:"role,omitempty"`
	Model   string         `json:"model,omitempty"`
	Content []ContentBlock `json:"content,omitempty"`
	Usage   *UsageInfo     `json:"usage,omitempty"`
}

// ContentBlock represents a content block in an assistant message.
type ContentBlock struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Input any    `json:"input,omitempty"`
}

// UsageInfo contains token usage counts as reported in the stream.
type UsageInfo struct {
	InputTokens         int64 `json:"input_tokens,omitempty"`
	OutputTokens        int64 `json:"output_tokens,omitempty"`
	CacheCreationTokens int64 `json:"cache_creation_input_tokens,omitempty"`
	CacheReadTokens     int64 `json:"cache_read_input_tokens,omitempty"`
}

// asUsage converts reported counts to the session usage type.
func (u *UsageInfo) asUsage() Usage {
	if u == nil {
		return Usage{}
	}
	return Usage{
		InputTokens:         u.InputTokens,
		OutputTokens:        u.OutputTokens,
		CacheCreationTokens: u.CacheCreationTokens,
		CacheReadTokens:     u.CacheReadTokens,
	}
}

// ErrorInfo contains error details from the stream.
type ErrorInfo struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
}

// StreamParser parses claude CLI stream-json output line by line.
type StreamParser struct {
	onEvent   func(StreamEvent)
	onError   func(error)
	lineCount int
}

// NewStreamParser creates a new parser with event callbacks.
func NewStreamParser(onEvent func(StreamEvent), onError func(error)) *StreamParser {
	return &StreamParser{
		onEvent: onEvent,
		onError: onError,
	}
}

// ParseLine parses a single line of stream-json output. Unparseable lines
// fall back to a type-only parse so one malformed event does not kill the
// stream; lines that are not JSON at all are reported and skipped.
func (p *StreamParser) ParseLine(line string) *StreamEvent {
	p.lineCount++
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	var event StreamEvent
	event.Raw = line

	if err := json.Unmarshal([]byte(line), &event); err != nil {
		var typeOnly struct {
			Type string `json:"type"`
		}
		if json.Unmarshal([]byte(line), &typeOnly) == nil {
			event.Type = typeOnly.Type
		} else {
			if p.onError != nil {
				p.onError(err)
			}
			return nil
		}
	}

	if p.onEvent != nil {
		p.onEvent(event)
	}

	return &event
}

// ParseReader reads and parses stream-json until the reader is exhausted.
func (p *StreamParser) ParseReader(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	// Assistant messages holding whole file contents produce long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	for scanner.Scan() {
		p.ParseLine(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	return nil
}

// LineCount returns the number of lines handed to the parser.
func (p *StreamParser) LineCount() int {
	return p.lineCount
}

// ExtractTextContent returns the concatenated narration text of an event,
// or an empty string when it carries none.
func ExtractTextContent(event *StreamEvent) string {
	if event.Message == nil {
		return ""
	}
	var parts []string
	for i := range event.Message.Content {
		if event.Message.Content[i].Type == "text" && event.Message.Content[i].Text != "" {
			parts = append(parts, event.Message.Content[i].Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ExtractToolUses returns the tool invocations announced in an event.
func ExtractToolUses(event *StreamEvent) []ContentBlock {
	if event.Message == nil {
		return nil
	}
	var uses []ContentBlock
	for i := range event.Message.Content {
		if event.Message.Content[i].Type == "tool_use" {
			uses = append(uses, event.Message.Content[i])
		}
	}
	return uses
}
