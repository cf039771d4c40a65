// Google Gemini Provider implementation using official google.golang.org/genai SDK.
//
// Information Hiding:
// - API authentication and client creation
// - Request/response format for Gemini API
// - System instruction handling via config
// - Tool call ID generation (Gemini may omit IDs)

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// GeminiProvider implements Provider and ToolProvider for Google Gemini.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
	initErr     error // reported on first use so the constructor stays infallible
}

// NewGeminiProvider creates a new Gemini provider.
// If client initialization fails, the error is stored and returned on first use.
func NewGeminiProvider(apiKey, model string, maxTokens int, temperature float64, opts ...ClientOption) *GeminiProvider {
	co := applyClientOptions(opts)

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: co.httpClient,
	}
	if co.baseURL != "" {
		cfg.HTTPOptions.BaseURL = co.baseURL
	}

	p := &GeminiProvider{
		model:       model,
		maxTokens:   int32(maxTokens),
		temperature: float32(temperature),
	}

	client, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		p.initErr = fmt.Errorf("failed to initialize Gemini client: %w", err)
		return p
	}
	p.client = client
	return p
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Model returns the current model.
func (p *GeminiProvider) Model() string {
	return p.model
}

// Complete sends a chat completion request.
func (p *GeminiProvider) Complete(ctx context.Context, messages []Message) (CompletionResponse, error) {
	resp, _, err := p.generate(ctx, messages, nil)
	return resp, err
}

// ExecuteWithTools sends a chat completion request with tool definitions.
func (p *GeminiProvider) ExecuteWithTools(ctx context.Context, messages []Message, tools []ToolDefinition) (CompletionResponse, []ToolCall, error) {
	return p.generate(ctx, messages, convertToGeminiTools(tools))
}

func (p *GeminiProvider) generate(ctx context.Context, messages []Message, tools []*genai.Tool) (CompletionResponse, []ToolCall, error) {
	if p.initErr != nil {
		return CompletionResponse{}, nil, p.initErr
	}

	system, rest := splitSystem(messages)

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(p.temperature),
		MaxOutputTokens: p.maxTokens,
		Tools:           tools,
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	response, err := p.client.Models.GenerateContent(ctx, p.model, convertToGeminiMessages(rest), config)
	if err != nil {
		return CompletionResponse{}, nil, classifyGeminiError(err)
	}

	var texts []string
	toolCalls := []ToolCall{}
	var finish genai.FinishReason

	if len(response.Candidates) > 0 {
		candidate := response.Candidates[0]
		finish = candidate.FinishReason
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				if part.Text != "" && !part.Thought {
					texts = append(texts, part.Text)
				}
				if part.FunctionCall != nil {
					toolCalls = append(toolCalls, fromGeminiFunctionCall(part.FunctionCall))
				}
			}
		}
	}

	usage := TokenUsage{}
	if response.UsageMetadata != nil {
		usage = NewTokenUsage(int64(response.UsageMetadata.PromptTokenCount), int64(response.UsageMetadata.CandidatesTokenCount))
		if response.UsageMetadata.TotalTokenCount > 0 {
			usage.TotalTokens = int64(response.UsageMetadata.TotalTokenCount)
		}
	}

	model := response.ModelVersion
	if model == "" {
		model = p.model
	}

	return CompletionResponse{
		Content:    strings.Join(texts, ""),
		Usage:      usage,
		Model:      model,
		StopReason: mapGeminiFinishReason(finish),
	}, toolCalls, nil
}

func fromGeminiFunctionCall(fc *genai.FunctionCall) ToolCall {
	id := fc.ID
	if id == "" {
		id = "call_" + uuid.NewString()
	}
	args := fc.Args
	if args == nil {
		args = map[string]any{}
	}
	input, _ := json.Marshal(args)
	return ToolCall{ID: id, Name: fc.Name, Input: input}
}

// mapGeminiFinishReason normalizes a Gemini finish reason.
func mapGeminiFinishReason(reason genai.FinishReason) StopReason {
	switch reason {
	case genai.FinishReasonStop:
		return StopEndTurn
	case genai.FinishReasonMaxTokens:
		return StopMaxTokens
	default:
		return StopSequence
	}
}

// classifyGeminiError wraps a genai error, tagging oversized requests.
func classifyGeminiError(err error) error {
	capacity := looksLikeCapacity(err.Error())

	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusRequestEntityTooLarge {
		capacity = true
	}

	return wrapVendorError("gemini completion failed", capacity, err)
}

// convertToGeminiMessages converts non-system turns to Gemini contents.
func convertToGeminiMessages(messages []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		}
	}
	return contents
}

// convertToGeminiTools converts tool definitions to Gemini format.
func convertToGeminiTools(tools []ToolDefinition) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	declarations := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  convertToGeminiSchema(t.Schema),
		})
	}

	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// convertToGeminiSchema converts a ToolSchema to a Gemini object schema.
func convertToGeminiSchema(s ToolSchema) *genai.Schema {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(s.Fields)),
		Required:   s.Required(),
	}

	for _, f := range s.Fields {
		prop := &genai.Schema{
			Type:        mapToGeminiType(f.Type),
			Description: f.Description,
			Enum:        f.Enum,
		}
		// Gemini rejects arrays without an items schema.
		if prop.Type == genai.TypeArray {
			prop.Items = &genai.Schema{Type: genai.TypeString}
		}
		schema.Properties[f.Name] = prop
	}

	return schema
}

// mapToGeminiType maps a schema field type to Gemini type.
func mapToGeminiType(t string) genai.Type {
	switch t {
	case TypeString:
		return genai.TypeString
	case TypeInteger:
		return genai.TypeInteger
	case TypeNumber:
		return genai.TypeNumber
	case TypeBoolean:
		return genai.TypeBoolean
	case TypeArray:
		return genai.TypeArray
	case TypeObject:
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// Verify GeminiProvider implements ToolProvider
var _ ToolProvider = (*GeminiProvider)(nil)
