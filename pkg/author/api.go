package author

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"paperwright/pkg/config"
	"paperwright/pkg/logx"
)

// Conversation roles. The Messages API requires strict user/assistant
// alternation, which the loop maintains by construction: tool results are
// flattened into the next user turn.
const (
	roleUser      = "user"
	roleAssistant = "assistant"
)

// autoContinueNudge is sent when the model stops before it is allowed to.
// One nudge only: a second stop ends the session.
const autoContinueNudge = "Continue working until the document is fully " +
	"generated: finish every remaining section, compile the PDF, and verify " +
	"the output directory contains the final files before stopping."

// turn is one message in the flattened conversation history.
type turn struct {
	role    string
	content string
}

// toolCall is a tool invocation requested by the model.
type toolCall struct {
	id   string
	name string
	args map[string]any
}

// completionRequest is one model call in the session loop.
type completionRequest struct {
	model       string
	system      string
	turns       []turn
	tools       []ToolDefinition
	maxTokens   int
	temperature float64
}

// completion is the model's reply to a single call.
type completion struct {
	text       string
	toolCalls  []toolCall
	stopReason string
	usage      Usage
}

// completer abstracts the provider call so the session loop can be tested
// against scripted replies.
type completer interface {
	complete(ctx context.Context, in completionRequest) (completion, error)
}

// APISource drives an authoring session against the Anthropic Messages API,
// executing the model's tool calls locally between turns.
type APISource struct {
	completer completer
	logger    *logx.Logger
}

// NewAPISource creates a source authenticated with the given API key.
func NewAPISource(apiKey string) (*APISource, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required for API mode")
	}

	return &APISource{
		completer: &anthropicCompleter{
			client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		},
		logger: logx.NewLogger("author-api"),
	}, nil
}

// Name identifies the source mode.
func (s *APISource) Name() string {
	return config.SourceModeAPI
}

// Run starts the session loop in a goroutine and returns its event stream.
func (s *APISource) Run(ctx context.Context, req Request) (<-chan Event, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}
	applyRequestDefaults(&req)

	provider := NewProvider(req.WorkDir, req.AllowedTools)
	events := make(chan Event, 64)

	go s.loop(ctx, req, provider, events)
	return events, nil
}

// loop is the session driver: call the model, execute every requested tool,
// fold the results into the next user turn, repeat until the model stops
// requesting tools or the turn cap is hit.
func (s *APISource) loop(ctx context.Context, req Request, provider *Provider, events chan<- Event) {
	defer close(events)

	defs := provider.List()
	info, _ := config.GetModelInfo(req.Model)
	turns := []turn{{role: roleUser, content: req.Prompt}}
	var usage Usage
	var nudged bool

	finish := func(text string, err error) {
		usage.CostUSD = CostForTokens(req.Model, usage.InputTokens, usage.OutputTokens)
		emit(ctx, events, Event{Kind: EventResult, Text: text, Usage: usage, Err: err})
	}

	for iteration := 0; iteration < req.MaxTurns; iteration++ {
		if ctx.Err() != nil {
			finish("", ctx.Err())
			return
		}

		s.logger.Debug("Model call %d/%d: %d messages, %d tools", iteration+1, req.MaxTurns, len(turns), len(defs))

		start := time.Now()
		comp, err := s.completer.complete(ctx, completionRequest{
			model:       req.Model,
			system:      req.SystemPrompt,
			turns:       turns,
			tools:       defs,
			maxTokens:   info.MaxOutputTokens,
			temperature: req.Temperature,
		})
		if err != nil {
			s.logger.Error("Model call failed after %.3gs: %v", time.Since(start).Seconds(), err)
			finish("", fmt.Errorf("completion failed: %w", err))
			return
		}
		usage.Add(comp.usage)

		if comp.text != "" {
			if !emit(ctx, events, Event{Kind: EventText, Text: comp.text}) {
				finish("", ctx.Err())
				return
			}
		}

		if len(comp.toolCalls) == 0 {
			if req.AutoContinue && !nudged {
				nudged = true
				s.logger.Info("🔄 Model stopped with no tool calls; prompting it to continue")
				if comp.text != "" {
					turns = append(turns, turn{role: roleAssistant, content: comp.text})
				}
				turns = append(turns, turn{role: roleUser, content: autoContinueNudge})
				continue
			}
			s.logger.Info("✅ Session complete after %d model calls (stop: %s)", iteration+1, comp.stopReason)
			finish(comp.text, nil)
			return
		}

		turns = append(turns, turn{role: roleAssistant, content: renderAssistantTurn(comp.text, comp.toolCalls)})

		// Execute ALL requested tools: every call must produce a result
		// before the conversation can continue.
		outputs := make([]string, len(comp.toolCalls))
		for i := range comp.toolCalls {
			call := &comp.toolCalls[i]
			if !emit(ctx, events, Event{Kind: EventToolUse, ToolName: call.name, ToolID: call.id, ToolArgs: call.args}) {
				finish("", ctx.Err())
				return
			}
			outputs[i] = s.execTool(ctx, provider, call)
		}
		turns = append(turns, turn{role: roleUser, content: renderToolResults(comp.toolCalls, outputs)})
	}

	s.logger.Warn("⚠️  Maximum model calls (%d) reached", req.MaxTurns)
	finish("", fmt.Errorf("session exceeded %d model calls without completing", req.MaxTurns))
}

// execTool runs one tool call and formats its outcome for the next turn.
func (s *APISource) execTool(ctx context.Context, provider *Provider, call *toolCall) string {
	tool, err := provider.Get(call.name)
	if err != nil {
		s.logger.Error("Tool lookup failed for %s: %v", call.name, err)
		return fmt.Sprintf("Tool failed: %v", err)
	}

	start := time.Now()
	result, err := tool.Exec(ctx, call.args)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("Tool %s failed after %.3fs: %v", call.name, duration.Seconds(), err)
		return fmt.Sprintf("Tool failed: %v", err)
	}

	s.logger.Debug("Tool %s completed in %.3fs", call.name, duration.Seconds())
	if result == nil {
		return ""
	}
	return result.Content
}

// renderAssistantTurn flattens an assistant reply with tool calls into plain
// text for the conversation history.
func renderAssistantTurn(text string, calls []toolCall) string {
	parts := make([]string, 0, len(calls)+1)
	if text != "" {
		parts = append(parts, text)
	}
	for i := range calls {
		args, _ := json.Marshal(calls[i].args)
		parts = append(parts, fmt.Sprintf("[tool call %s] %s %s", calls[i].id, calls[i].name, args))
	}
	return strings.Join(parts, "\n\n")
}

// renderToolResults flattens tool outputs into the user turn that answers
// the assistant's calls.
func renderToolResults(calls []toolCall, outputs []string) string {
	parts := make([]string, 0, len(calls))
	for i := range calls {
		parts = append(parts, fmt.Sprintf("[tool result %s] %s:\n%s", calls[i].id, calls[i].name, outputs[i]))
	}
	return strings.Join(parts, "\n\n")
}

// anthropicCompleter implements completer against the Anthropic SDK.
type anthropicCompleter struct {
	client anthropic.Client
}

// complete sends one Messages API request and normalizes the reply.
func (c *anthropicCompleter) complete(ctx context.Context, in completionRequest) (completion, error) {
	messages := make([]anthropic.MessageParam, 0, len(in.turns))
	for i := range in.turns {
		messages = append(messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRole(in.turns[i].role),
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(in.turns[i].content)},
		})
	}

	maxTokens := int64(in.maxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(in.model),
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if in.temperature > 0 {
		params.Temperature = anthropic.Float(in.temperature)
	}
	if in.system != "" {
		params.System = []anthropic.TextBlockParam{{
			Text: in.system,
			Type: "text",
		}}
	}

	if len(in.tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(in.tools))
		for i := range in.tools {
			def := &in.tools[i]

			var properties any
			if len(def.InputSchema.Properties) > 0 {
				props := make(map[string]any, len(def.InputSchema.Properties))
				for name := range def.InputSchema.Properties {
					prop := def.InputSchema.Properties[name]
					propMap := map[string]any{"type": prop.Type}
					if prop.Description != "" {
						propMap["description"] = prop.Description
					}
					if len(prop.Enum) > 0 {
						propMap["enum"] = prop.Enum
					}
					props[name] = propMap
				}
				properties = props
			}

			schema := anthropic.ToolInputSchemaParam{
				Type:       "object",
				Properties: properties,
				Required:   def.InputSchema.Required,
			}
			tools = append(tools, anthropic.ToolUnionParamOfTool(schema, def.Name))
		}
		params.Tools = tools
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfAuto: &anthropic.ToolChoiceAutoParam{},
		}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return completion{}, fmt.Errorf("anthropic API request failed: %w", err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return completion{}, fmt.Errorf("received empty response from the API")
	}

	out := completion{
		stopReason: string(resp.StopReason),
		usage: Usage{
			InputTokens:         resp.Usage.InputTokens,
			OutputTokens:        resp.Usage.OutputTokens,
			CacheCreationTokens: resp.Usage.CacheCreationInputTokens,
			CacheReadTokens:     resp.Usage.CacheReadInputTokens,
		},
	}

	for i := range resp.Content {
		block := &resp.Content[i]
		switch block.Type {
		case "text":
			out.text += block.AsText().Text
		case "tool_use":
			use := block.AsToolUse()
			var args map[string]any
			if unmarshalErr := json.Unmarshal(use.Input, &args); unmarshalErr != nil {
				return completion{}, fmt.Errorf("failed to parse tool input for %s: %w", use.Name, unmarshalErr)
			}
			out.toolCalls = append(out.toolCalls, toolCall{
				id:   use.ID,
				name: use.Name,
				args: args,
			})
		}
	}

	return out, nil
}
