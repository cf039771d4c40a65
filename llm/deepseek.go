// DeepSeek Provider implementation using go-openai library.
//
// Information Hiding:
// - Uses OpenAI-compatible API with different base URL
// - Supports deepseek-chat and deepseek-reasoner models

package llm

const deepseekBaseURL = "https://api.deepseek.com/v1"

// DeepSeekProvider implements Provider and ToolProvider for DeepSeek.
type DeepSeekProvider struct {
	*OpenAIProvider
}

// NewDeepSeekProvider creates a new DeepSeek provider.
func NewDeepSeekProvider(apiKey, model string, maxTokens int, temperature float64, opts ...ClientOption) *DeepSeekProvider {
	return &DeepSeekProvider{
		OpenAIProvider: newOpenAICompatible("deepseek", apiKey, deepseekBaseURL, model, maxTokens, temperature, opts),
	}
}

// Verify DeepSeekProvider implements ToolProvider
var _ ToolProvider = (*DeepSeekProvider)(nil)
