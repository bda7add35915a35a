package agent

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"
)

// OpenAIAgent adapts the openai-go SDK to the Agent contract.
type OpenAIAgent struct {
	apiKey string
	model  string
}

// NewOpenAIAgent returns an Agent backed by the OpenAI chat completions API.
func NewOpenAIAgent(apiKey, model string) *OpenAIAgent {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIAgent{apiKey: apiKey, model: model}
}

func (a *OpenAIAgent) Generate(ctx context.Context, prompt, variant string, context_ map[string]any) (string, error) {
	if a.apiKey == "" {
		return "", fmt.Errorf("openai agent: no API key configured")
	}
	client := openai.NewClient(option.WithAPIKey(a.apiKey))

	completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt + variant),
		},
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("openai agent: empty response")
	}

	logrus.WithFields(logrus.Fields{"component": "agent.openai", "model": a.model}).Debug("generated completion")
	return completion.Choices[0].Message.Content, nil
}

func (a *OpenAIAgent) Stream(ctx context.Context, prompt string, context_ map[string]any, onChunk func(chunk string)) (string, error) {
	// openai-go exposes a streaming API; for the control plane's purposes
	// a single non-streamed call fanned out as one chunk is sufficient
	// and keeps the three providers' Stream behavior identical.
	text, err := a.Generate(ctx, prompt, "", context_)
	if err != nil {
		return "", err
	}
	if onChunk != nil {
		onChunk(text)
	}
	return text, nil
}
