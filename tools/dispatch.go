// Tool Dispatch with input validation.
//
// Information Hiding:
// - Schema checking of model-supplied arguments hidden
// - Timing of tool execution hidden
//
// Tools run exactly once. Retrying is the model's decision, made after it
// reads the failed result.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/richinex/kronologi/llm"
)

// Dispatched is the outcome of one tool execution.
type Dispatched struct {
	Result   Result
	Duration time.Duration
}

// Dispatch validates input against the tool's schema and executes the tool
// once. Invalid input becomes a failed Result without running the tool.
// The returned error is non-nil only when the tool itself returned one.
func Dispatch(ctx context.Context, tool Tool, input json.RawMessage, tc *Context) (Dispatched, error) {
	start := time.Now()

	if err := ValidateInput(tool.Schema(), input); err != nil {
		return Dispatched{
			Result:   FailureResultf("invalid arguments: %v", err),
			Duration: time.Since(start),
		}, nil
	}

	result, err := tool.Execute(ctx, input, tc)
	return Dispatched{Result: result, Duration: time.Since(start)}, err
}

// ValidateInput checks a JSON object against the tool's JSON schema:
// required fields are present, values have the declared type and enum
// values are allowed. A null value counts as absent. Fields the schema does
// not declare are ignored.
func ValidateInput(schema llm.ToolSchema, input json.RawMessage) error {
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}

	var fields map[string]any
	if err := json.Unmarshal(input, &fields); err != nil {
		return fmt.Errorf("input must be a JSON object: %w", err)
	}
	if fields == nil {
		return errors.New("input must be a JSON object")
	}
	for name, value := range fields {
		if value == nil {
			delete(fields, name)
		}
	}

	compiled, err := compileSchema(schema)
	if err != nil {
		return fmt.Errorf("compile tool schema: %w", err)
	}
	if err := compiled.Validate(fields); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return describeViolation(ve)
		}
		return err
	}
	return nil
}

var schemaCache sync.Map

// compileSchema compiles a tool schema once and reuses it for every later
// call with the same schema document.
func compileSchema(schema llm.ToolSchema) (*jsonschema.Schema, error) {
	doc, err := json.Marshal(schema.JSONSchema())
	if err != nil {
		return nil, err
	}

	key := string(doc)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}

	// An absolute resource URL keeps host paths out of error messages.
	compiled, err := jsonschema.CompileString("mem://kronologi/tool.schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// describeViolation reports the first leaf violation, naming the field it
// concerns.
func describeViolation(ve *jsonschema.ValidationError) error {
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	field := strings.TrimPrefix(leaf.InstanceLocation, "/")
	if field == "" {
		return errors.New(leaf.Message)
	}
	return fmt.Errorf("field %q: %s", field, leaf.Message)
}
