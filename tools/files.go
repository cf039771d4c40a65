// File Tools - read and list files in the sandbox roots.
//
// Information Hiding:
// - Root selection and path resolution hidden behind the Sandbox
// - Missing files reported as failed Results

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/richinex/kronologi/llm"
)

func directoryField(description string) llm.SchemaField {
	return llm.SchemaField{
		Name:        "directory",
		Type:        llm.TypeString,
		Description: description,
		Enum:        RootNames,
	}
}

// decodeInput unmarshals tool input, treating an empty input as {}.
func decodeInput(input json.RawMessage, v any) error {
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	if err := json.Unmarshal(input, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func requireStorage(tc *Context) error {
	if tc == nil || tc.Storage == nil {
		return errors.New("tool context has no storage")
	}
	return nil
}

// ReadFileTool reads a file from one of the sandbox roots.
type ReadFileTool struct{}

// NewReadFileTool creates a new read file tool.
func NewReadFileTool() *ReadFileTool {
	return &ReadFileTool{}
}

// Name returns the tool name.
func (t *ReadFileTool) Name() string { return "read_file" }

// Description returns the tool description.
func (t *ReadFileTool) Description() string {
	return "Read the contents of a file from the activity, summary, or context directory"
}

// Schema returns the tool input schema.
func (t *ReadFileTool) Schema() llm.ToolSchema {
	return llm.ToolSchema{Fields: []llm.SchemaField{
		{Name: "path", Type: llm.TypeString, Description: `Relative path to the file (e.g., "2026-01/summary.md")`},
		directoryField("Which directory to read from"),
	}}
}

type readFileArgs struct {
	Path      string `json:"path"`
	Directory Root   `json:"directory"`
}

// Execute reads the file.
func (t *ReadFileTool) Execute(ctx context.Context, input json.RawMessage, tc *Context) (Result, error) {
	var a readFileArgs
	if err := decodeInput(input, &a); err != nil {
		return FailureResult(err), nil
	}
	if err := requireStorage(tc); err != nil {
		return Result{}, err
	}

	exists, err := tc.Storage.Exists(a.Directory, a.Path)
	if err != nil {
		return FailureResult(err), nil
	}
	if !exists {
		return FailureResultf("File not found: %s", a.Path), nil
	}

	content, err := tc.Storage.ReadFile(a.Directory, a.Path)
	if err != nil {
		return FailureResult(err), nil
	}

	tc.logger().Debug("read file", "directory", a.Directory, "path", a.Path, "bytes", len(content))
	return SuccessResult(content), nil
}

// ListFilesTool lists files in a directory of one of the sandbox roots.
type ListFilesTool struct{}

// NewListFilesTool creates a new list files tool.
func NewListFilesTool() *ListFilesTool {
	return &ListFilesTool{}
}

// Name returns the tool name.
func (t *ListFilesTool) Name() string { return "list_files" }

// Description returns the tool description.
func (t *ListFilesTool) Description() string {
	return "List files in a directory"
}

// Schema returns the tool input schema.
func (t *ListFilesTool) Schema() llm.ToolSchema {
	return llm.ToolSchema{Fields: []llm.SchemaField{
		directoryField("Which directory to list from"),
		{Name: "path", Type: llm.TypeString, Description: "Subdirectory path (optional)", Optional: true},
		{Name: "pattern", Type: llm.TypeString, Description: `Glob pattern (e.g., "*.md")`, Optional: true},
	}}
}

type listFilesArgs struct {
	Directory Root   `json:"directory"`
	Path      string `json:"path"`
	Pattern   string `json:"pattern"`
}

// Execute lists the directory.
func (t *ListFilesTool) Execute(ctx context.Context, input json.RawMessage, tc *Context) (Result, error) {
	var a listFilesArgs
	if err := decodeInput(input, &a); err != nil {
		return FailureResult(err), nil
	}
	if err := requireStorage(tc); err != nil {
		return Result{}, err
	}
	if a.Pattern != "" && !doublestar.ValidatePattern(a.Pattern) {
		return FailureResultf("invalid pattern: %s", a.Pattern), nil
	}

	display := a.Path
	if display == "" {
		display = "/"
	}

	exists, err := tc.Storage.Exists(a.Directory, a.Path)
	if err != nil {
		return FailureResult(err), nil
	}
	if !exists {
		return FailureResultf("Directory not found: %s", display), nil
	}

	files, err := tc.Storage.ListFiles(a.Directory, a.Path)
	if err != nil {
		return FailureResult(err), nil
	}

	if a.Pattern == "" {
		return SuccessResult(files), nil
	}

	filtered := make([]string, 0, len(files))
	for _, f := range files {
		if ok, _ := doublestar.Match(a.Pattern, f); ok {
			filtered = append(filtered, f)
		}
	}
	return SuccessResult(filtered), nil
}

var (
	_ Tool = (*ReadFileTool)(nil)
	_ Tool = (*ListFilesTool)(nil)
)
