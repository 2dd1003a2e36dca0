package providers

import (
	"fmt"
	"strings"
)

// NewFromModel creates a Provider from a "provider/model" spec. The model
// part may itself contain slashes (ollama tags do).
func NewFromModel(modelSpec, apiKey, baseURL string) (Provider, error) {
	provider, model, ok := strings.Cut(modelSpec, "/")
	if !ok || provider == "" || model == "" {
		return nil, fmt.Errorf("model spec must be provider/model, got %q", modelSpec)
	}

	switch provider {
	case "openai":
		if apiKey == "" {
			return nil, fmt.Errorf("OpenAI API key is required")
		}
		return NewOpenAIClient(apiKey, model, baseURL), nil

	case "anthropic":
		if apiKey == "" {
			return nil, fmt.Errorf("Anthropic API key is required")
		}
		return NewAnthropicClient(apiKey, model, baseURL), nil

	case "ollama":
		return NewOllamaClient(model, baseURL), nil

	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}
