package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOpenAI(t *testing.T, status int, body string) (*OpenAIProvider, *vendorLog) {
	t.Helper()
	server, log := newVendorServer(t, status, body)
	return NewOpenAIProvider("sk-test", "gpt-test", 512, 0.5, WithBaseURL(server.URL+"/v1")), log
}

func TestOpenAICompleteKeepsSystemInline(t *testing.T) {
	provider, log := newTestOpenAI(t, http.StatusOK, `{
		"id": "chatcmpl-1", "object": "chat.completion", "model": "gpt-test",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "weekly report"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 40, "completion_tokens": 10, "total_tokens": 50}
	}`)

	resp, err := provider.Complete(context.Background(), []Message{
		SystemMessage("persona"),
		UserMessage("write it"),
	})
	require.NoError(t, err)

	assert.Equal(t, "weekly report", resp.Content)
	assert.Equal(t, StopEndTurn, resp.StopReason)
	assert.Equal(t, TokenUsage{InputTokens: 40, OutputTokens: 10, TotalTokens: 50}, resp.Usage)

	requests := log.All()
	require.Len(t, requests, 1)
	assert.Equal(t, "/v1/chat/completions", requests[0].Path)
	assert.EqualValues(t, 512, requests[0].Body["max_completion_tokens"])

	messages := requests[0].Body["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
}

func TestOpenAIMissingUsageDefaultsToZero(t *testing.T) {
	provider, _ := newTestOpenAI(t, http.StatusOK, `{
		"id": "chatcmpl-2", "object": "chat.completion", "model": "gpt-test",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "cut"}, "finish_reason": "length"}]
	}`)

	resp, err := provider.Complete(context.Background(), []Message{UserMessage("go")})
	require.NoError(t, err)
	assert.Equal(t, StopMaxTokens, resp.StopReason)
	assert.Equal(t, TokenUsage{}, resp.Usage)
}

func TestOpenAIExecuteWithTools(t *testing.T) {
	provider, log := newTestOpenAI(t, http.StatusOK, `{
		"id": "chatcmpl-3", "object": "chat.completion", "model": "gpt-test",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "", "tool_calls": [
			{"id": "call_1", "type": "function", "function": {"name": "search_files", "arguments": "{\"query\":\"deploy\",\"directory\":\"activity\"}"}},
			{"id": "call_2", "type": "function", "function": {"name": "list_files", "arguments": ""}}
		]}, "finish_reason": "tool_calls"}],
		"usage": {"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8}
	}`)

	defs := []ToolDefinition{{
		Name:        "search_files",
		Description: "Search",
		Schema: ToolSchema{Fields: []SchemaField{
			{Name: "query", Type: TypeString},
			{Name: "limit", Type: TypeNumber, Optional: true},
		}},
	}}

	resp, calls, err := provider.ExecuteWithTools(context.Background(), []Message{UserMessage("go")}, defs)
	require.NoError(t, err)

	assert.Equal(t, StopSequence, resp.StopReason)
	require.Len(t, calls, 2)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "search_files", calls[0].Name)
	assert.JSONEq(t, `{"query":"deploy","directory":"activity"}`, string(calls[0].Input))
	assert.JSONEq(t, `{}`, string(calls[1].Input))

	tools := log.All()[0].Body["tools"].([]any)
	require.Len(t, tools, 1)
	params := tools[0].(map[string]any)["function"].(map[string]any)["parameters"].(map[string]any)
	assert.Equal(t, "object", params["type"])
	assert.Equal(t, []any{"query"}, params["required"])
}

func TestOpenAICapacityErrorIsTagged(t *testing.T) {
	provider, _ := newTestOpenAI(t, http.StatusTooManyRequests, `{"error":{
		"message": "Request too large for gpt-test on tokens per min (TPM): Limit 100000, Requested 120000.",
		"type": "tokens", "code": "rate_limit_exceeded"}}`)

	_, err := provider.Complete(context.Background(), []Message{UserMessage("go")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequestTooLarge))
	assert.Contains(t, err.Error(), "Limit 100000, Requested 120000")
}

func TestOpenAIRateLimitIsNotCapacity(t *testing.T) {
	provider, _ := newTestOpenAI(t, http.StatusTooManyRequests, `{"error":{
		"message": "Rate limit reached for requests", "type": "requests", "code": "rate_limit_exceeded"}}`)

	_, err := provider.Complete(context.Background(), []Message{UserMessage("go")})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRequestTooLarge))
}

func TestDeepSeekSharesOpenAIWireFormat(t *testing.T) {
	server, log := newVendorServer(t, http.StatusOK, `{
		"id": "x", "object": "chat.completion", "model": "deepseek-chat",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "ok"}, "finish_reason": "content_filter"}]
	}`)
	provider := NewDeepSeekProvider("sk-test", "deepseek-chat", 100, 0.7, WithBaseURL(server.URL+"/v1"))

	assert.Equal(t, "deepseek", provider.Name())

	resp, err := provider.Complete(context.Background(), []Message{UserMessage("go")})
	require.NoError(t, err)
	assert.Equal(t, StopSequence, resp.StopReason)
	assert.Equal(t, "/v1/chat/completions", log.All()[0].Path)
}

func TestArgumentsJSON(t *testing.T) {
	assert.True(t, json.Valid(argumentsJSON("")))
	assert.Equal(t, `{"a":1}`, string(argumentsJSON(`{"a":1}`)))
}
