// LLM Provider interface - the abstract interface for LLM providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Stop reason and usage normalization
// - Provider-specific error classification

package llm

import (
	"context"
	"net/http"
)

// Provider defines the abstract interface for LLM providers.
// Constructing a provider never contacts the network; only the request
// methods do.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// Complete sends a single chat completion request.
	Complete(ctx context.Context, messages []Message) (CompletionResponse, error)
}

// ToolProvider is the optional tool-use capability of a Provider.
// Callers detect it with a type assertion.
type ToolProvider interface {
	Provider

	// ExecuteWithTools sends a completion request declaring the given tools.
	// The returned slice is empty, never an error, when the model asked for
	// tool use without emitting any tool blocks.
	ExecuteWithTools(ctx context.Context, messages []Message, tools []ToolDefinition) (CompletionResponse, []ToolCall, error)
}

// SupportsTools reports whether p exposes the tool-use capability.
func SupportsTools(p Provider) bool {
	_, ok := p.(ToolProvider)
	return ok
}

// splitSystem separates system turns from the rest of the conversation.
// Multiple system turns are joined in order.
func splitSystem(messages []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		rest = append(rest, msg)
	}
	return system, rest
}

// ClientOption adjusts how an adapter builds its vendor client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	baseURL    string
	httpClient *http.Client
}

// WithBaseURL points the vendor client at another endpoint (proxies, tests).
func WithBaseURL(url string) ClientOption {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// WithHTTPClient replaces the HTTP client used by the vendor SDK.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

func applyClientOptions(opts []ClientOption) clientOptions {
	var co clientOptions
	for _, opt := range opts {
		opt(&co)
	}
	return co
}
