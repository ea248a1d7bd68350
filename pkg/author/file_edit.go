package author

import (
	"context"
	"fmt"
	"os"
	"strings"

	"paperwright/pkg/utils"
)

// FileEditTool performs targeted string replacements in files.
type FileEditTool struct {
	workDir string
}

// NewFileEditTool creates a new file_edit tool rooted at workDir.
func NewFileEditTool(workDir string) *FileEditTool {
	return &FileEditTool{workDir: workDir}
}

// Name returns the tool name.
func (t *FileEditTool) Name() string {
	return ToolFileEdit
}

// Definition returns the tool definition for the model.
func (t *FileEditTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolFileEdit,
		Description: "Replace an exact string match in a file with new content. The old_string must appear exactly once in the file. Use this for targeted edits instead of rewriting entire files.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"path": {
					Type:        "string",
					Description: "Path to the file, relative to the working directory",
				},
				"old_string": {
					Type:        "string",
					Description: "The exact string to find in the file. Must match exactly one location.",
				},
				"new_string": {
					Type:        "string",
					Description: "The replacement string. Use empty string to delete the matched text.",
				},
			},
			Required: []string{"path", "old_string", "new_string"},
		},
	}
}

// Exec executes the tool with the given arguments.
func (t *FileEditTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	path, ok := utils.SafeAssert[string](args["path"])
	if !ok || path == "" {
		return nil, fmt.Errorf("path is required and must be a string")
	}

	oldString, ok := utils.SafeAssert[string](args["old_string"])
	if !ok || oldString == "" {
		return nil, fmt.Errorf("old_string is required and must be a non-empty string")
	}

	// new_string can be empty (deletion), so just check type
	newString, ok := utils.SafeAssert[string](args["new_string"])
	if !ok {
		return nil, fmt.Errorf("new_string is required and must be a string")
	}

	fullPath, err := resolveWorkPath(t.workDir, path)
	if err != nil {
		return errorResult(err.Error())
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return errorResult(fmt.Sprintf("file not found or not readable: %s (error: %v)", path, err))
	}
	content := string(data)

	count := strings.Count(content, oldString)
	if count == 0 {
		return errorResult("old_string not found in file. Make sure it matches the file content exactly, including whitespace and indentation.")
	}
	if count > 1 {
		return errorResult(fmt.Sprintf("old_string matches %d locations in the file. It must match exactly once. Include more surrounding context to make it unique.", count))
	}

	newContent := strings.Replace(content, oldString, newString, 1)

	info, statErr := os.Stat(fullPath)
	mode := os.FileMode(0644)
	if statErr == nil {
		mode = info.Mode()
	}
	if writeErr := os.WriteFile(fullPath, []byte(newContent), mode); writeErr != nil {
		return errorResult(fmt.Sprintf("failed to write file %s: %v", path, writeErr))
	}

	return jsonResult(map[string]any{
		"success": true,
		"path":    path,
		"message": "Edit applied successfully",
	})
}
