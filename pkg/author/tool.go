package author

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"paperwright/pkg/config"
)

// Tool name constants - use these instead of magic strings to prevent typos.
const (
	ToolReadFile       = "read_file"
	ToolWriteFile      = "write_file"
	ToolFileEdit       = "file_edit"
	ToolShell          = "shell"
	ToolWebSearch      = "web_search"
	ToolResearchLookup = "research_lookup"
)

// WriterTools is the full tool set offered to authoring runs.
//
//nolint:gochecknoglobals // Static tool registry shared across sessions
var WriterTools = []string{
	ToolReadFile,
	ToolWriteFile,
	ToolFileEdit,
	ToolShell,
	ToolWebSearch,
	ToolResearchLookup,
}

// searchTools contains the tools that require a search API key.
//
//nolint:gochecknoglobals // Static filter set
var searchTools = map[string]struct{}{
	ToolWebSearch:      {},
	ToolResearchLookup: {},
}

// FilterSearchTools removes network search tools from the list when no search
// API is configured. The run then proceeds in offline authoring mode.
func FilterSearchTools(names []string) []string {
	if config.IsSearchEnabled() {
		return names
	}

	result := make([]string, 0, len(names))
	for _, name := range names {
		if _, isSearch := searchTools[name]; !isSearch {
			result = append(result, name)
		}
	}
	return result
}

// ToolDefinition describes a tool to the model.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// InputSchema is the JSON schema for a tool's arguments.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes a single schema property.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// ExecResult is the string payload a tool hands back to the model.
type ExecResult struct {
	Content string
}

// Tool is a locally executed capability offered to the model in API mode.
type Tool interface {
	Name() string
	Definition() ToolDefinition
	Exec(ctx context.Context, args map[string]any) (*ExecResult, error)
}

// jsonResult marshals a result map into an ExecResult.
func jsonResult(payload map[string]any) (*ExecResult, error) {
	content, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool result: %w", err)
	}
	return &ExecResult{Content: string(content)}, nil
}

// errorResult builds a structured failure payload the model can recover from.
// Tools reserve hard errors for broken arguments; everything else comes back
// as success=false so the model can adjust and retry.
func errorResult(msg string) (*ExecResult, error) {
	return jsonResult(map[string]any{
		"success": false,
		"error":   msg,
	})
}

// Provider creates and caches tool instances for one authoring session.
// Instances are created lazily on first Get and reused afterwards.
type Provider struct {
	workDir  string
	tools    map[string]Tool
	allowSet map[string]struct{}
	mu       sync.Mutex
}

// NewProvider builds a provider rooted at workDir offering the allowed tools.
func NewProvider(workDir string, allowed []string) *Provider {
	allowSet := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		allowSet[name] = struct{}{}
	}

	return &Provider{
		workDir:  workDir,
		tools:    make(map[string]Tool),
		allowSet: allowSet,
	}
}

// Get retrieves a tool instance, creating it lazily if needed.
func (p *Provider) Get(name string) (Tool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.allowSet[name]; !ok {
		return nil, fmt.Errorf("tool '%s' not allowed in this session", name)
	}

	if tool, ok := p.tools[name]; ok {
		return tool, nil
	}

	tool, err := newTool(name, p.workDir)
	if err != nil {
		return nil, err
	}

	p.tools[name] = tool
	return tool, nil
}

// List returns the definitions of all allowed tools in a stable order.
func (p *Provider) List() []ToolDefinition {
	p.mu.Lock()
	names := make([]string, 0, len(p.allowSet))
	for name := range p.allowSet {
		names = append(names, name)
	}
	p.mu.Unlock()
	sort.Strings(names)

	defs := make([]ToolDefinition, 0, len(names))
	for _, name := range names {
		tool, err := p.Get(name)
		if err != nil {
			continue
		}
		defs = append(defs, tool.Definition())
	}
	return defs
}

// newTool constructs a tool implementation by name.
func newTool(name, workDir string) (Tool, error) {
	switch name {
	case ToolReadFile:
		return NewReadFileTool(workDir, 0), nil
	case ToolWriteFile:
		return NewWriteFileTool(workDir), nil
	case ToolFileEdit:
		return NewFileEditTool(workDir), nil
	case ToolShell:
		return NewShellTool(workDir, 0), nil
	case ToolWebSearch:
		return NewWebSearchTool(), nil
	case ToolResearchLookup:
		return NewResearchLookupTool(), nil
	default:
		return nil, fmt.Errorf("tool '%s' not registered", name)
	}
}
