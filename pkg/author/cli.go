package author

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"paperwright/pkg/config"
	"paperwright/pkg/logx"
)

// cliBuiltinTools maps session tool names to the claude CLI's built-in tool
// names for the --allowedTools flag. research_lookup has no CLI equivalent;
// the CLI's own WebSearch covers that ground.
//
//nolint:gochecknoglobals // Static name mapping
var cliBuiltinTools = map[string]string{
	ToolReadFile:  "Read",
	ToolWriteFile: "Write",
	ToolFileEdit:  "Edit",
	ToolShell:     "Bash",
	ToolWebSearch: "WebSearch",
}

// CLISource drives an authoring session through the claude CLI as a
// subprocess, parsing its stream-json output into session events. The CLI
// brings its own tool implementations and sandboxing, so tools are not
// executed locally in this mode.
type CLISource struct {
	binary string
	logger *logx.Logger
}

// NewCLISource creates a source that invokes the claude binary from PATH.
func NewCLISource() *CLISource {
	return &CLISource{
		binary: "claude",
		logger: logx.NewLogger("author-cli"),
	}
}

// NewCLISourceWithBinary creates a source invoking a specific binary.
// Useful for testing with a stub executable.
func NewCLISourceWithBinary(binary string) *CLISource {
	s := NewCLISource()
	s.binary = binary
	return s
}

// Name identifies the source mode.
func (s *CLISource) Name() string {
	return config.SourceModeCLI
}

// Run starts the subprocess and returns its event stream.
func (s *CLISource) Run(ctx context.Context, req Request) (<-chan Event, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}
	applyRequestDefaults(&req)

	args := buildCLIArgs(&req)
	cmd := exec.CommandContext(ctx, s.binary, args...)
	cmd.Dir = req.WorkDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start claude CLI (is it installed and on PATH?): %w", err)
	}

	s.logger.Info("Started claude CLI: model=%s workdir=%s", req.Model, req.WorkDir)

	events := make(chan Event, 64)
	go s.consume(ctx, cmd, stdout, &stderr, req.Model, events)
	return events, nil
}

// consume parses the subprocess stream, forwards events, and emits the
// terminal result once the process exits.
func (s *CLISource) consume(ctx context.Context, cmd *exec.Cmd, stdout io.Reader, stderrBuf *bytes.Buffer, model string, events chan<- Event) {
	defer close(events)

	var (
		usage      Usage
		finalUsage *UsageInfo
		finalCost  float64
		resultText string
		sawResult  bool
		streamErr  string
	)

	parser := NewStreamParser(func(evt StreamEvent) {
		switch evt.Type {
		case streamTypeAssistant:
			if evt.Message != nil && evt.Message.Usage != nil {
				usage.Add(evt.Message.Usage.asUsage())
			}
			if text := ExtractTextContent(&evt); text != "" {
				emit(ctx, events, Event{Kind: EventText, Text: text})
			}
			for _, use := range ExtractToolUses(&evt) {
				s.logger.Debug("CLI tool call: %s", use.Name)
				args, _ := use.Input.(map[string]any)
				emit(ctx, events, Event{Kind: EventToolUse, ToolName: use.Name, ToolID: use.ID, ToolArgs: args})
			}
		case streamTypeResult:
			sawResult = true
			resultText = evt.Result
			finalCost = evt.TotalCostUSD
			finalUsage = evt.Usage
			if evt.IsError && streamErr == "" {
				streamErr = evt.Result
				if streamErr == "" {
					streamErr = "session reported an error result"
				}
			}
		case streamTypeError:
			if evt.Error != nil && streamErr == "" {
				streamErr = evt.Error.Message
			}
		}
	}, func(err error) {
		s.logger.Debug("Stream parse error: %v", err)
	})

	parseErr := parser.ParseReader(stdout)
	waitErr := cmd.Wait()

	// The result event's aggregate usage, when present, supersedes the
	// per-message sums.
	if finalUsage != nil {
		aggregate := finalUsage.asUsage()
		if aggregate.HasTokens() {
			usage = aggregate
		}
	}
	usage.CostUSD = finalCost
	if usage.CostUSD == 0 {
		usage.CostUSD = CostForTokens(model, usage.InputTokens, usage.OutputTokens)
	}

	err := s.sessionError(ctx, waitErr, parseErr, streamErr, sawResult, stderrBuf)
	if err == nil {
		s.logger.Info("✅ claude CLI session complete: %d lines, %d tokens", parser.LineCount(), usage.TotalTokens())
	}
	emit(ctx, events, Event{Kind: EventResult, Text: resultText, Usage: usage, Err: err})
}

// sessionError folds the possible failure signals into one terminal error.
func (s *CLISource) sessionError(ctx context.Context, waitErr, parseErr error, streamErr string, sawResult bool, stderrBuf *bytes.Buffer) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if waitErr != nil {
		detail := strings.TrimSpace(stderrBuf.String())
		if detail != "" {
			return fmt.Errorf("claude CLI exited with error: %w (stderr: %s)", waitErr, tailOf(detail, 512))
		}
		return fmt.Errorf("claude CLI exited with error: %w", waitErr)
	}
	if streamErr != "" {
		return fmt.Errorf("claude CLI reported an error: %s", streamErr)
	}
	if parseErr != nil {
		return fmt.Errorf("failed to read claude CLI output: %w", parseErr)
	}
	if !sawResult {
		return fmt.Errorf("claude CLI stream ended without a result event")
	}
	return nil
}

// tailOf returns the last n bytes of s.
func tailOf(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// buildCLIArgs constructs the claude CLI argument list.
func buildCLIArgs(req *Request) []string {
	args := []string{
		"--print",
		"--output-format", "stream-json",
		"--verbose",
	}

	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	if req.SystemPrompt != "" {
		args = append(args, "--append-system-prompt", req.SystemPrompt)
	}
	if req.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(req.MaxTurns))
	}

	if allowed := cliAllowedTools(req.AllowedTools); len(allowed) > 0 {
		args = append(args, "--allowedTools", strings.Join(allowed, ","))
	}

	// -- separator protects prompts that start with a dash
	args = append(args, "--", req.Prompt)
	return args
}

// cliAllowedTools maps the session tool set onto CLI built-in names,
// dropping tools the CLI does not provide.
func cliAllowedTools(names []string) []string {
	allowed := make([]string, 0, len(names))
	for _, name := range names {
		if builtin, ok := cliBuiltinTools[name]; ok {
			allowed = append(allowed, builtin)
		}
	}
	return allowed
}
