package author

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"paperwright/pkg/utils"
)

const (
	// defaultShellTimeout bounds a single command. LaTeX compilation of a
	// long manuscript can run for minutes, so this is generous.
	defaultShellTimeout = 10 * time.Minute

	// maxShellOutputBytes caps captured stdout/stderr fed back to the model.
	maxShellOutputBytes = 262144
)

// ShellTool executes shell commands in the working directory.
type ShellTool struct {
	workDir string
	timeout time.Duration
}

// NewShellTool creates a new shell tool rooted at workDir. A zero timeout
// selects the default.
func NewShellTool(workDir string, timeout time.Duration) *ShellTool {
	if timeout <= 0 {
		timeout = defaultShellTimeout
	}
	return &ShellTool{
		workDir: workDir,
		timeout: timeout,
	}
}

// Name returns the tool name.
func (t *ShellTool) Name() string {
	return ToolShell
}

// Definition returns the tool definition for the model.
func (t *ShellTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolShell,
		Description: "Execute a shell command in the working directory and return stdout, stderr, and the exit code. Use for running pandoc, latexmk, pdflatex, bibtex, and other document tooling.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"cmd": {
					Type:        "string",
					Description: "Shell command to execute",
				},
				"cwd": {
					Type:        "string",
					Description: "Working directory for the command, relative to the session working directory. Defaults to the session working directory.",
				},
			},
			Required: []string{"cmd"},
		},
	}
}

// Exec executes the tool with the given arguments.
func (t *ShellTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	cmdStr, ok := utils.SafeAssert[string](args["cmd"])
	if !ok || cmdStr == "" {
		return nil, fmt.Errorf("cmd is required and must be a non-empty string")
	}

	dir := t.workDir
	if cwd, hasCwd := utils.SafeAssert[string](args["cwd"]); hasCwd && cwd != "" {
		resolved, err := resolveWorkPath(t.workDir, cwd)
		if err != nil {
			return errorResult(err.Error())
		}
		if _, statErr := os.Stat(resolved); os.IsNotExist(statErr) {
			return errorResult(fmt.Sprintf("working directory does not exist: %s", cwd))
		}
		dir = resolved
	}

	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "bash", "-c", cmdStr)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		// A deadline kill surfaces as an ExitError, so check the context first
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return errorResult(fmt.Sprintf("command timed out after %s", t.timeout))
		}
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			exitCode = exitError.ExitCode()
		} else {
			// Command failed to start or other error
			return nil, fmt.Errorf("failed to execute command: %w", err)
		}
	}

	return jsonResult(map[string]any{
		"success":   exitCode == 0,
		"stdout":    capOutput(stdout.String()),
		"stderr":    capOutput(stderr.String()),
		"exit_code": exitCode,
	})
}

// capOutput truncates command output to keep tool results bounded.
func capOutput(s string) string {
	if len(s) <= maxShellOutputBytes {
		return s
	}
	return s[:maxShellOutputBytes] + "\n... (output truncated)"
}
