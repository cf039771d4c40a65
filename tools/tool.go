// Package tools provides the tool system the reasoning loop dispatches to.
//
// Information Hiding:
// - Tool execution details hidden behind interface
// - Input schemas declared structurally, independent of any vendor
// - Filesystem access confined to the Sandbox roots
// - Expected failures reported in the Result envelope, not as errors
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/richinex/kronologi/config"
	"github.com/richinex/kronologi/llm"
)

// Result is the uniform success/failure envelope every tool returns.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// String renders the result as the JSON the model sees.
func (r Result) String() string {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":%q}`, err.Error())
	}
	return string(raw)
}

// SuccessResult creates a successful tool result.
func SuccessResult(data any) Result {
	return Result{Success: true, Data: data}
}

// FailureResult creates a failed tool result.
func FailureResult(err error) Result {
	return Result{Error: err.Error()}
}

// FailureResultf creates a failed tool result with a formatted error message.
func FailureResultf(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// Context is the capability bundle handed to every tool execution.
// Tools reach the filesystem only through Storage.
type Context struct {
	Storage *Sandbox
	Job     config.Job
	Logger  *slog.Logger
}

// logger returns the context logger, falling back to a discard logger.
func (c *Context) logger() *slog.Logger {
	if c == nil || c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

// Tool is the interface that all tools must implement.
//
// Execute returns a failed Result, with a nil error, for expected failures
// such as a missing file. A non-nil error is an unexpected failure and
// ends the reasoning session.
type Tool interface {
	// Name is the unique registry key.
	Name() string

	// Description documents the tool for the model.
	Description() string

	// Schema declares the tool's input fields.
	Schema() llm.ToolSchema

	// Execute runs the tool with the given JSON object input.
	Execute(ctx context.Context, input json.RawMessage, tc *Context) (Result, error)
}

// Definition converts a tool into the declaration providers receive.
func Definition(t Tool) llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Schema:      t.Schema(),
	}
}

// Definitions converts tools into provider declarations, keeping order.
func Definitions(tools []Tool) []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = Definition(t)
	}
	return defs
}
