package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/podiumlabs/podium/pkg/assistant"
)

const defaultModel = openai.ChatModelGPT4oMini

type openAIProvider struct {
	client openai.Client
	model  openai.ChatModel
}

// New builds an OpenAI-backed completer. Model may be empty for the default.
func New(apiKey, model string) (assistant.Completer, error) {
	if apiKey == "" {
		return nil, errors.New("openai API key is not configured")
	}
	m := defaultModel
	if model != "" {
		m = openai.ChatModel(model)
	}
	return &openAIProvider{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  m,
	}, nil
}

func (o *openAIProvider) Name() string { return "openai" }

// Complete implements assistant.Completer.
func (o *openAIProvider) Complete(ctx context.Context, req assistant.CompletionRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Model: o.model,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(req.MaxTokens)
	}

	chatCompletion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(chatCompletion.Choices) == 0 {
		return "", errors.New("openai completion returned no choices")
	}
	return chatCompletion.Choices[0].Message.Content, nil
}
