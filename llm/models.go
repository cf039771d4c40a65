// Package llm provides shared data models for LLM providers.
package llm

import "encoding/json"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation. The order of a []Message is the
// turn history and is significant.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SystemMessage creates a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolCall is a vendor-issued request to invoke a tool.
// ID is the vendor-assigned correlation key.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// TokenUsage contains token usage statistics. All counters are always
// present; a vendor that reports nothing yields zeros.
type TokenUsage struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
	TotalTokens  int64 `json:"totalTokens"`
}

// NewTokenUsage builds a usage record, deriving the total from the parts.
func NewTokenUsage(input, output int64) TokenUsage {
	return TokenUsage{
		InputTokens:  input,
		OutputTokens: output,
		TotalTokens:  input + output,
	}
}

// Add returns the element-wise sum of two usage records.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
}

// StopReason is the normalized reason a completion ended.
type StopReason string

const (
	// StopEndTurn is a natural completion.
	StopEndTurn StopReason = "end_turn"
	// StopMaxTokens is truncation by length, or an exhausted tool loop.
	StopMaxTokens StopReason = "max_tokens"
	// StopSequence covers every other vendor reason (filters, tool use, ...).
	StopSequence StopReason = "stop_sequence"
)

// CompletionResponse is the vendor-independent shape of one model reply.
type CompletionResponse struct {
	Content    string     `json:"content"`
	Usage      TokenUsage `json:"usage"`
	Model      string     `json:"model"`
	StopReason StopReason `json:"stopReason"`
}

// ToolDefinition declares a tool to a provider.
type ToolDefinition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Schema      ToolSchema `json:"schema"`
}

// ReasoningConfig selects and parameterizes a provider for one session.
type ReasoningConfig struct {
	Provider    string  `json:"provider" yaml:"provider"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"maxTokens" yaml:"maxTokens"`
	APIKey      string  `json:"-" yaml:"-"`
}
