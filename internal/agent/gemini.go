package agent

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// GeminiAgent adapts Google's genai SDK to the Agent contract.
type GeminiAgent struct {
	apiKey string
	model  string
}

// NewGeminiAgent returns an Agent backed by the Gemini API.
func NewGeminiAgent(apiKey, model string) *GeminiAgent {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiAgent{apiKey: apiKey, model: model}
}

func (a *GeminiAgent) Generate(ctx context.Context, prompt, variant string, context_ map[string]any) (string, error) {
	if a.apiKey == "" {
		return "", fmt.Errorf("gemini agent: no API key configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  a.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", err
	}

	result, err := client.Models.GenerateContent(ctx, a.model, genai.Text(prompt+variant), nil)
	if err != nil {
		return "", err
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("gemini agent: empty response")
	}

	logrus.WithFields(logrus.Fields{"component": "agent.gemini", "model": a.model}).Debug("generated completion")
	return text, nil
}

func (a *GeminiAgent) Stream(ctx context.Context, prompt string, context_ map[string]any, onChunk func(chunk string)) (string, error) {
	text, err := a.Generate(ctx, prompt, "", context_)
	if err != nil {
		return "", err
	}
	if onChunk != nil {
		onChunk(text)
	}
	return text, nil
}
