package app

import (
	"context"
	"fmt"

	"github.com/podiumlabs/podium/internal/config"
	"github.com/podiumlabs/podium/pkg/Logger"
	"github.com/podiumlabs/podium/pkg/assistant"
	"github.com/podiumlabs/podium/pkg/assistant/providers/gemini"
	"github.com/podiumlabs/podium/pkg/assistant/providers/openai"
	"github.com/podiumlabs/podium/pkg/assistant/router"
)

// CompleterFactory builds the provider chain for speech generation and
// verdict judging from the configured API keys.
type CompleterFactory struct {
	keys   config.AssistantKeysObj
	logger *Logger.Logger
}

func NewCompleterFactory(keys config.AssistantKeysObj, logger *Logger.Logger) *CompleterFactory {
	return &CompleterFactory{keys: keys, logger: logger}
}

// CreateMux registers every provider with a configured key, in preference
// order. OpenAI leads; Gemini covers its failures. At least one key must be
// set or the engine has nothing to generate speeches with.
func (f *CompleterFactory) CreateMux(ctx context.Context) (*router.Mux, error) {
	var completers []assistant.Completer

	if f.keys.OpenAiApiKey != "" {
		provider, err := openai.New(f.keys.OpenAiApiKey, "")
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI provider: %w", err)
		}
		completers = append(completers, provider)
	}

	if f.keys.GeminiApiKey != "" {
		provider, err := gemini.New(ctx, f.keys.GeminiApiKey, "")
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini provider: %w", err)
		}
		completers = append(completers, provider)
	}

	if len(completers) == 0 {
		return nil, fmt.Errorf("no completion providers configured")
	}

	mux := router.New(completers...)
	f.logger.Infof("completion mux created with providers: %v", mux.Providers())
	return mux, nil
}
