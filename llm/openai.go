// OpenAI Provider implementation using go-openai library.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for OpenAI Chat Completions API
// - Finish reason normalization

package llm

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider and ToolProvider for OpenAI and
// OpenAI-compatible endpoints.
type OpenAIProvider struct {
	client      *openai.Client
	name        string
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(apiKey, model string, maxTokens int, temperature float64, opts ...ClientOption) *OpenAIProvider {
	return newOpenAICompatible("openai", apiKey, "", model, maxTokens, temperature, opts)
}

func newOpenAICompatible(name, apiKey, defaultBaseURL, model string, maxTokens int, temperature float64, opts []ClientOption) *OpenAIProvider {
	co := applyClientOptions(opts)

	config := openai.DefaultConfig(apiKey)
	if defaultBaseURL != "" {
		config.BaseURL = defaultBaseURL
	}
	if co.baseURL != "" {
		config.BaseURL = co.baseURL
	}
	if co.httpClient != nil {
		config.HTTPClient = co.httpClient
	}

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(config),
		name:        name,
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Model returns the current model.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Complete sends a chat completion request.
func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message) (CompletionResponse, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.request(messages))
	if err != nil {
		return CompletionResponse{}, p.classifyError(err)
	}
	return p.toCompletion(resp), nil
}

// ExecuteWithTools sends a chat completion request with tool definitions.
func (p *OpenAIProvider) ExecuteWithTools(ctx context.Context, messages []Message, tools []ToolDefinition) (CompletionResponse, []ToolCall, error) {
	req := p.request(messages)
	req.Tools = convertToOpenAITools(tools)

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return CompletionResponse{}, nil, p.classifyError(err)
	}

	toolCalls := []ToolCall{}
	if len(resp.Choices) > 0 {
		for _, tc := range resp.Choices[0].Message.ToolCalls {
			toolCalls = append(toolCalls, ToolCall{
				ID:    tc.ID,
				Name:  tc.Function.Name,
				Input: argumentsJSON(tc.Function.Arguments),
			})
		}
	}

	return p.toCompletion(resp), toolCalls, nil
}

func (p *OpenAIProvider) request(messages []Message) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:               p.model,
		Messages:            convertToOpenAIMessages(messages),
		MaxCompletionTokens: p.maxTokens,
		Temperature:         p.temperature,
	}
}

func (p *OpenAIProvider) toCompletion(resp openai.ChatCompletionResponse) CompletionResponse {
	content := ""
	var finish openai.FinishReason
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		finish = resp.Choices[0].FinishReason
	}

	usage := NewTokenUsage(int64(resp.Usage.PromptTokens), int64(resp.Usage.CompletionTokens))
	if resp.Usage.TotalTokens > 0 {
		usage.TotalTokens = int64(resp.Usage.TotalTokens)
	}

	model := resp.Model
	if model == "" {
		model = p.model
	}

	return CompletionResponse{
		Content:    content,
		Usage:      usage,
		Model:      model,
		StopReason: mapOpenAIFinishReason(finish),
	}
}

// classifyError wraps a go-openai error, tagging oversized requests.
func (p *OpenAIProvider) classifyError(err error) error {
	capacity := looksLikeCapacity(err.Error())

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusRequestEntityTooLarge {
		capacity = true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusRequestEntityTooLarge {
		capacity = true
	}

	return wrapVendorError(p.name+" completion failed", capacity, err)
}

// mapOpenAIFinishReason normalizes an OpenAI finish_reason.
func mapOpenAIFinishReason(reason openai.FinishReason) StopReason {
	switch reason {
	case openai.FinishReasonStop:
		return StopEndTurn
	case openai.FinishReasonLength:
		return StopMaxTokens
	default:
		return StopSequence
	}
}

// convertToOpenAIMessages converts messages to OpenAI format. System turns
// stay inline; the Chat Completions API has no separate system channel.
func convertToOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		result[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}
	return result
}

// convertToOpenAITools converts tool definitions to OpenAI format.
func convertToOpenAITools(tools []ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Schema.JSONSchema(),
			},
		}
	}
	return result
}

// argumentsJSON normalizes a function-call argument string. Empty arguments
// become an empty object so tools always receive valid JSON.
func argumentsJSON(args string) []byte {
	if args == "" {
		return []byte("{}")
	}
	return []byte(args)
}

// Verify OpenAIProvider implements ToolProvider
var _ ToolProvider = (*OpenAIProvider)(nil)
