package author

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultReadLines   = 2000 // Default number of lines to read
	maxLineLength      = 2000 // Truncate lines longer than this
	defaultStartOffset = 1    // 1-based line numbering
)

// ReadFileTool reads file contents from the working directory.
type ReadFileTool struct {
	workDir      string
	maxSizeBytes int64 // Safety cap on total output bytes
}

// NewReadFileTool creates a new read_file tool rooted at workDir.
func NewReadFileTool(workDir string, maxSizeBytes int64) *ReadFileTool {
	if maxSizeBytes <= 0 {
		maxSizeBytes = 1048576 // Default: 1MB
	}
	return &ReadFileTool{
		workDir:      workDir,
		maxSizeBytes: maxSizeBytes,
	}
}

// Name returns the tool name.
func (t *ReadFileTool) Name() string {
	return ToolReadFile
}

// Definition returns the tool definition for the model.
func (t *ReadFileTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolReadFile,
		Description: "Read contents of a file in the working directory. Output uses numbered lines. For large files, use offset and limit to read specific sections.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"path": {
					Type:        "string",
					Description: "Path to the file, relative to the working directory",
				},
				"offset": {
					Type:        "integer",
					Description: "Line number to start reading from (1-based). Defaults to 1.",
				},
				"limit": {
					Type:        "integer",
					Description: "Number of lines to read. Defaults to 2000.",
				},
			},
			Required: []string{"path"},
		},
	}
}

// intArgOrDefault extracts an integer argument from the args map, returning
// defaultVal if missing or invalid. Handles float64 (from JSON unmarshal),
// int, and int64 value types.
func intArgOrDefault(args map[string]any, key string, defaultVal int) int {
	v, exists := args[key]
	if !exists {
		return defaultVal
	}
	var n int
	switch val := v.(type) {
	case float64:
		n = int(val)
	case int:
		n = val
	case int64:
		n = int(val)
	default:
		return defaultVal
	}
	if n < 1 {
		return defaultVal
	}
	return n
}

// resolveWorkPath joins a model-supplied path onto the working directory,
// rejecting traversal outside it. Absolute paths inside the working directory
// are accepted since agents commonly echo back paths they were shown.
func resolveWorkPath(workDir, path string) (string, error) {
	if filepath.IsAbs(path) {
		cleaned := filepath.Clean(path)
		rel, err := filepath.Rel(workDir, cleaned)
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", fmt.Errorf("path is outside the working directory: %s", path)
		}
		return cleaned, nil
	}

	cleaned := filepath.Clean(path)
	if strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("path cannot contain directory traversal (..) attempts")
	}
	return filepath.Join(workDir, cleaned), nil
}

// Exec executes the tool with the given arguments.
func (t *ReadFileTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, fmt.Errorf("path is required and must be a string")
	}

	offset := intArgOrDefault(args, "offset", defaultStartOffset)
	limit := intArgOrDefault(args, "limit", defaultReadLines)

	fullPath, err := resolveWorkPath(t.workDir, path)
	if err != nil {
		return errorResult(err.Error())
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return errorResult(fmt.Sprintf("file not found or not readable: %s (error: %v)", path, err))
	}
	defer func() { _ = file.Close() }()

	endLine := offset + limit - 1
	var out strings.Builder
	totalLines := 0
	truncated := false

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	for scanner.Scan() {
		totalLines++
		if totalLines < offset || totalLines > endLine {
			continue
		}
		line := scanner.Text()
		if len(line) > maxLineLength {
			line = line[:maxLineLength]
		}
		// cat -n format: right-aligned line number, tab, content
		fmt.Fprintf(&out, "%6d\t%s\n", totalLines, line)
		if int64(out.Len()) > t.maxSizeBytes {
			truncated = true
			break
		}
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return errorResult(fmt.Sprintf("failed to read %s: %v", path, scanErr))
	}

	content := out.String()
	if int64(len(content)) > t.maxSizeBytes {
		content = content[:t.maxSizeBytes]
		truncated = true
	}
	if totalLines > endLine {
		truncated = true
	}

	return jsonResult(map[string]any{
		"success":     true,
		"content":     content,
		"path":        path,
		"truncated":   truncated,
		"offset":      offset,
		"limit":       limit,
		"total_lines": totalLines,
	})
}
