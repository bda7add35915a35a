package agent

import "fmt"

// New selects a concrete Agent implementation by provider name, so
// callers can swap vendors behind one interface.
func New(provider, apiKey, model string) (Agent, error) {
	switch provider {
	case "", "openai":
		return NewOpenAIAgent(apiKey, model), nil
	case "gemini":
		return NewGeminiAgent(apiKey, model), nil
	case "anthropic":
		return NewAnthropicAgent(apiKey, model), nil
	default:
		return nil, fmt.Errorf("agent: unknown provider %q", provider)
	}
}
