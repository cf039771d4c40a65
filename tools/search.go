// Search Tool - case-insensitive line search across sandbox files.

package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/richinex/kronologi/llm"
)

const (
	// DefaultSearchPattern selects the files searched when none is given.
	DefaultSearchPattern = "**/*.md"

	// maxMatchesPerFile caps the lines reported for one file.
	maxMatchesPerFile = 5
)

// SearchResult is the per-file outcome of search_files.
type SearchResult struct {
	File       string   `json:"file"`
	Matches    []string `json:"matches"`
	MatchCount int      `json:"matchCount"`
}

// SearchFilesTool searches file contents for a text query.
type SearchFilesTool struct{}

// NewSearchFilesTool creates a new search files tool.
func NewSearchFilesTool() *SearchFilesTool {
	return &SearchFilesTool{}
}

// Name returns the tool name.
func (t *SearchFilesTool) Name() string { return "search_files" }

// Description returns the tool description.
func (t *SearchFilesTool) Description() string {
	return "Search for text patterns in files"
}

// Schema returns the tool input schema.
func (t *SearchFilesTool) Schema() llm.ToolSchema {
	return llm.ToolSchema{Fields: []llm.SchemaField{
		directoryField("Which directory to search in"),
		{Name: "query", Type: llm.TypeString, Description: "Text to search for"},
		{Name: "path", Type: llm.TypeString, Description: "Subdirectory to search in (optional)", Optional: true},
		{Name: "filePattern", Type: llm.TypeString, Description: fmt.Sprintf(`File pattern (default: %q)`, DefaultSearchPattern), Optional: true},
		{Name: "limit", Type: llm.TypeNumber, Description: "Max results to return", Optional: true},
	}}
}

type searchFilesArgs struct {
	Directory   Root     `json:"directory"`
	Query       string   `json:"query"`
	Path        string   `json:"path"`
	FilePattern string   `json:"filePattern"`
	Limit       *float64 `json:"limit"`
}

// Execute runs the search. Files are visited in lexical order.
func (t *SearchFilesTool) Execute(ctx context.Context, input json.RawMessage, tc *Context) (Result, error) {
	var a searchFilesArgs
	if err := decodeInput(input, &a); err != nil {
		return FailureResult(err), nil
	}
	if err := requireStorage(tc); err != nil {
		return Result{}, err
	}

	pattern := a.FilePattern
	if pattern == "" {
		pattern = DefaultSearchPattern
	}
	query := strings.ToLower(a.Query)

	results := []SearchResult{}
	err := tc.Storage.Walk(ctx, a.Directory, a.Path, pattern, func(path string) error {
		content, err := tc.Storage.ReadFile(a.Directory, path)
		if err != nil {
			tc.logger().Debug("skipping unreadable file", "path", path, "err", err)
			return nil
		}

		if matches, count := matchLines(content, query); count > 0 {
			results = append(results, SearchResult{File: path, Matches: matches, MatchCount: count})
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, err
		}
		// A missing search directory has nothing to match.
		if errors.Is(err, fs.ErrNotExist) {
			return SuccessResult([]SearchResult{}), nil
		}
		return FailureResult(err), nil
	}

	// Limits below one or at least the result count leave results untouched.
	if a.Limit != nil {
		if l := *a.Limit; l >= 1 && l < float64(len(results)) {
			results = results[:int(l)]
		}
	}

	tc.logger().Debug("searched files", "directory", a.Directory, "query", a.Query, "files", len(results))
	return SuccessResult(results), nil
}

// matchLines returns up to maxMatchesPerFile formatted matches and the
// total number of matching lines.
func matchLines(content, query string) ([]string, int) {
	var matches []string
	count := 0

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), DefaultMaxFileSize+1)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := scanner.Text()
		if !strings.Contains(strings.ToLower(line), query) {
			continue
		}
		count++
		if len(matches) < maxMatchesPerFile {
			matches = append(matches, fmt.Sprintf("Line %d: %s", lineNo, strings.TrimSpace(line)))
		}
	}
	return matches, count
}

var _ Tool = (*SearchFilesTool)(nil)
