package agent

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"
)

// AnthropicAgent adapts the anthropic-sdk-go client to the Agent
// contract. Pulled in from the wider example pack (teradata-labs/loom,
// beeper/ai-bridge) as a third interchangeable provider.
type AnthropicAgent struct {
	apiKey string
	model  string
}

// NewAnthropicAgent returns an Agent backed by the Claude API.
func NewAnthropicAgent(apiKey, model string) *AnthropicAgent {
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &AnthropicAgent{apiKey: apiKey, model: model}
}

func (a *AnthropicAgent) Generate(ctx context.Context, prompt, variant string, context_ map[string]any) (string, error) {
	if a.apiKey == "" {
		return "", fmt.Errorf("anthropic agent: no API key configured")
	}

	client := anthropic.NewClient(option.WithAPIKey(a.apiKey))

	msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 512,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt + variant)),
		},
	})
	if err != nil {
		return "", err
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("anthropic agent: empty response")
	}

	logrus.WithFields(logrus.Fields{"component": "agent.anthropic", "model": a.model}).Debug("generated completion")
	return text, nil
}

func (a *AnthropicAgent) Stream(ctx context.Context, prompt string, context_ map[string]any, onChunk func(chunk string)) (string, error) {
	text, err := a.Generate(ctx, prompt, "", context_)
	if err != nil {
		return "", err
	}
	if onChunk != nil {
		onChunk(text)
	}
	return text, nil
}
