package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/podiumlabs/podium/pkg/assistant"
	"google.golang.org/api/option"
)

const defaultModel = "gemini-2.0-flash"

type geminiProvider struct {
	client *genai.Client
	model  string
}

// New builds a Gemini-backed completer. Model may be empty for the default.
func New(ctx context.Context, apiKey, model string) (assistant.Completer, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is not configured")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini API client: %w", err)
	}
	if model == "" {
		model = defaultModel
	}
	return &geminiProvider{client: client, model: model}, nil
}

func (g *geminiProvider) Name() string { return "gemini" }

// Complete implements assistant.Completer.
func (g *geminiProvider) Complete(ctx context.Context, req assistant.CompletionRequest) (string, error) {
	model := g.client.GenerativeModel(g.model)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.Temperature > 0 {
		model.SetTemperature(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini completion returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}
