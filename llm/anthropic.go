// Anthropic Provider implementation using official anthropic-sdk-go.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for Anthropic Messages API
// - System prompt routed through the dedicated system channel

package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements Provider and ToolProvider for Anthropic Claude.
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(apiKey, model string, maxTokens int, temperature float64, opts ...ClientOption) *AnthropicProvider {
	co := applyClientOptions(opts)

	// Retries are the caller's decision; the SDK would otherwise resend
	// oversized requests before the retry controller can shrink them.
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if co.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(co.baseURL))
	}
	if co.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(co.httpClient))
	}

	return &AnthropicProvider{
		client:      anthropic.NewClient(reqOpts...),
		model:       model,
		maxTokens:   int64(maxTokens),
		temperature: temperature,
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Model returns the current model.
func (p *AnthropicProvider) Model() string {
	return p.model
}

// Complete sends a chat completion request.
func (p *AnthropicProvider) Complete(ctx context.Context, messages []Message) (CompletionResponse, error) {
	message, err := p.client.Messages.New(ctx, p.params(messages))
	if err != nil {
		return CompletionResponse{}, classifyAnthropicError(err)
	}
	return p.toCompletion(message), nil
}

// ExecuteWithTools sends a chat completion request with tool definitions.
func (p *AnthropicProvider) ExecuteWithTools(ctx context.Context, messages []Message, tools []ToolDefinition) (CompletionResponse, []ToolCall, error) {
	params := p.params(messages)
	params.Tools = convertToAnthropicTools(tools)

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return CompletionResponse{}, nil, classifyAnthropicError(err)
	}

	toolCalls := []ToolCall{}
	if message.StopReason == anthropic.StopReasonToolUse {
		for _, block := range message.Content {
			if variant, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
				toolCalls = append(toolCalls, ToolCall{
					ID:    variant.ID,
					Name:  variant.Name,
					Input: argumentsJSON(string(variant.Input)),
				})
			}
		}
	}

	return p.toCompletion(message), toolCalls, nil
}

func (p *AnthropicProvider) params(messages []Message) anthropic.MessageNewParams {
	system, rest := splitSystem(messages)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   p.maxTokens,
		Messages:    convertToAnthropicMessages(rest),
		Temperature: anthropic.Float(p.temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: system},
		}
	}
	return params
}

func (p *AnthropicProvider) toCompletion(message *anthropic.Message) CompletionResponse {
	var texts []string
	for _, block := range message.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			texts = append(texts, variant.Text)
		}
	}

	model := string(message.Model)
	if model == "" {
		model = p.model
	}

	return CompletionResponse{
		Content:    strings.Join(texts, "\n"),
		Usage:      NewTokenUsage(message.Usage.InputTokens, message.Usage.OutputTokens),
		Model:      model,
		StopReason: mapAnthropicStopReason(message.StopReason),
	}
}

// mapAnthropicStopReason normalizes Anthropic's stop_reason.
func mapAnthropicStopReason(reason anthropic.StopReason) StopReason {
	switch reason {
	case anthropic.StopReasonEndTurn:
		return StopEndTurn
	case anthropic.StopReasonMaxTokens:
		return StopMaxTokens
	default:
		return StopSequence
	}
}

// convertToAnthropicMessages converts non-system turns to Anthropic format.
func convertToAnthropicMessages(messages []Message) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case RoleAssistant:
			result = append(result, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return result
}

// convertToAnthropicTools converts tool definitions to Anthropic format.
func convertToAnthropicTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		toolParam := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: t.Schema.Properties(),
				Required:   t.Schema.Required(),
			},
		}
		result[i] = anthropic.ToolUnionParam{OfTool: &toolParam}
	}
	return result
}

// classifyAnthropicError wraps an SDK error, tagging oversized requests.
func classifyAnthropicError(err error) error {
	capacity := looksLikeCapacity(err.Error())

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusRequestEntityTooLarge {
		capacity = true
	}

	return wrapVendorError("anthropic completion failed", capacity, err)
}

// Verify AnthropicProvider implements ToolProvider
var _ ToolProvider = (*AnthropicProvider)(nil)
