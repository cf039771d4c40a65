package reasoning

import (
	"errors"
	"fmt"
)

// Configuration errors returned by ExecuteWithTools before any network call.
var (
	// ErrToolsUnsupported is returned when the provider has no tool-use capability.
	ErrToolsUnsupported = errors.New("provider does not support tool execution")

	// ErrNoToolContext is returned when the client was built without a tool context.
	ErrNoToolContext = errors.New("tool context is required for tool execution")
)

// ToolNotFoundError is returned when the model requests a tool that is not
// among the tools of the session. The session is aborted.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}

// ToolExecutionError wraps an unexpected error returned by a tool. Expected
// failures come back as failed results and never produce this error.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}

// IsToolNotFound reports whether err is or wraps a ToolNotFoundError.
func IsToolNotFound(err error) bool {
	var target *ToolNotFoundError
	return errors.As(err, &target)
}

// IsToolExecution reports whether err is or wraps a ToolExecutionError.
func IsToolExecution(err error) bool {
	var target *ToolExecutionError
	return errors.As(err, &target)
}
