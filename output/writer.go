// Package output writes the files of a finished report run below
// <summaryDir>/<year>/<period>.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/richinex/kronologi/config"
	"github.com/richinex/kronologi/llm"
	"github.com/richinex/kronologi/observability"
)

// ErrOutputExists is returned when a file would be overwritten without
// replace being enabled.
var ErrOutputExists = errors.New("output file already exists")

// Writer writes run output files.
type Writer struct {
	baseDir string
	replace bool
	logger  *slog.Logger
}

// NewWriter creates a writer rooted at baseDir. With replace unset, existing
// files are never overwritten.
func NewWriter(baseDir string, replace bool, logger *slog.Logger) *Writer {
	return &Writer{baseDir: baseDir, replace: replace, logger: observability.OrNop(logger)}
}

// Path returns where pattern is written for job.
func (w *Writer) Path(job config.Job, pattern string) string {
	return filepath.Join(w.baseDir, fmt.Sprint(job.Year), job.Period(), pattern)
}

// Check fails with ErrOutputExists when the file for pattern exists and
// replace is not enabled. Runs call it before spending any tokens.
func (w *Writer) Check(job config.Job, pattern string) error {
	if w.replace {
		return nil
	}
	path := w.Path(job, pattern)
	_, err := os.Stat(path)
	if err == nil {
		return fmt.Errorf("%w: %s (use --replace to overwrite)", ErrOutputExists, path)
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Write writes content to the file for pattern, creating directories as
// needed. Strings and byte slices are written as is; anything else as
// indented JSON.
func (w *Writer) Write(job config.Job, pattern string, content any) (string, error) {
	if err := w.Check(job, pattern); err != nil {
		return "", err
	}

	var data []byte
	switch c := content.(type) {
	case string:
		data = []byte(c)
	case []byte:
		data = c
	default:
		var err error
		data, err = json.MarshalIndent(content, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode %s: %w", pattern, err)
		}
	}

	path := w.Path(job, pattern)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	w.logger.Info("output written", "path", path, "bytes", len(data))
	return path, nil
}

// Completion is the usage record written next to a summary. Its shape
// follows the chat completion response format so existing tooling can
// read it.
type Completion struct {
	Choices []CompletionChoice `json:"choices"`
	Usage   CompletionUsage    `json:"usage"`
	Model   string             `json:"model"`
}

// CompletionChoice is the single choice of a Completion.
type CompletionChoice struct {
	Message      CompletionMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

// CompletionMessage carries the generated content.
type CompletionMessage struct {
	Content string `json:"content"`
}

// CompletionUsage is token usage in prompt/completion terms.
type CompletionUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// NewCompletion builds the usage record of a run.
func NewCompletion(content, model string, usage llm.TokenUsage) Completion {
	return Completion{
		Choices: []CompletionChoice{{
			Message:      CompletionMessage{Content: content},
			FinishReason: "stop",
		}},
		Usage: CompletionUsage{
			PromptTokens:     usage.InputTokens,
			CompletionTokens: usage.OutputTokens,
			TotalTokens:      usage.TotalTokens,
		},
		Model: model,
	}
}

// Inputs records what a run sent to the model and how the session went.
type Inputs struct {
	Job        string         `json:"job"`
	Period     string         `json:"period"`
	Model      string         `json:"model"`
	Provider   string         `json:"provider"`
	Depth      InputsDepth    `json:"depth"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Messages   []llm.Message  `json:"messages"`
	ToolCalls  []llm.ToolCall `json:"toolCalls"`
	Iterations int            `json:"iterations"`
}

// InputsDepth is the effective and requested depth of a run.
type InputsDepth struct {
	History         int `json:"history"`
	Summary         int `json:"summary"`
	OriginalHistory int `json:"originalHistory"`
	OriginalSummary int `json:"originalSummary"`
}
