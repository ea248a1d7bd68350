package author

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"paperwright/pkg/utils"
)

// WriteFileTool creates or overwrites files in the working directory.
type WriteFileTool struct {
	workDir string
}

// NewWriteFileTool creates a new write_file tool rooted at workDir.
func NewWriteFileTool(workDir string) *WriteFileTool {
	return &WriteFileTool{workDir: workDir}
}

// Name returns the tool name.
func (t *WriteFileTool) Name() string {
	return ToolWriteFile
}

// Definition returns the tool definition for the model.
func (t *WriteFileTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolWriteFile,
		Description: "Write content to a file in the working directory, creating parent directories as needed. Overwrites the file if it already exists.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"path": {
					Type:        "string",
					Description: "Path to the file, relative to the working directory",
				},
				"content": {
					Type:        "string",
					Description: "Full content to write to the file",
				},
			},
			Required: []string{"path", "content"},
		},
	}
}

// Exec executes the tool with the given arguments.
func (t *WriteFileTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	path, ok := utils.SafeAssert[string](args["path"])
	if !ok || path == "" {
		return nil, fmt.Errorf("path is required and must be a string")
	}

	// content can be empty (truncation), so just check type
	content, ok := utils.SafeAssert[string](args["content"])
	if !ok {
		return nil, fmt.Errorf("content is required and must be a string")
	}

	fullPath, err := resolveWorkPath(t.workDir, path)
	if err != nil {
		return errorResult(err.Error())
	}

	if mkErr := os.MkdirAll(filepath.Dir(fullPath), 0755); mkErr != nil {
		return errorResult(fmt.Sprintf("failed to create parent directory for %s: %v", path, mkErr))
	}

	if writeErr := os.WriteFile(fullPath, []byte(content), 0644); writeErr != nil {
		return errorResult(fmt.Sprintf("failed to write file %s: %v", path, writeErr))
	}

	return jsonResult(map[string]any{
		"success":       true,
		"path":          path,
		"bytes_written": len(content),
	})
}
