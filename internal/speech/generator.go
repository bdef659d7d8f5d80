package speech

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/podiumlabs/podium/internal/debate"
	"github.com/podiumlabs/podium/internal/recovery"
	"github.com/podiumlabs/podium/internal/types"
	"github.com/podiumlabs/podium/pkg/Logger"
	"github.com/podiumlabs/podium/pkg/assistant"
)

var ErrEmptyCompletion = errors.New("completion produced no usable text")

// Request carries everything needed to script one AI turn.
type Request struct {
	SessionID      uuid.UUID
	Topic          string
	Speaker        types.Participant
	Phase          debate.Phase
	TranscriptTail string
	OpponentLast   string
	Difficulty     Difficulty
}

// Result is the scripted speech. FellBack marks the templated utterance used
// after generation retries were exhausted.
type Result struct {
	Text     string
	VoiceID  string
	FellBack bool
}

// Generator scripts AI speeches: persona/phase prompt in, sanitized plain
// text out. All LLM calls go through the recovery coordinator.
type Generator struct {
	completer   assistant.Completer
	coordinator *recovery.Coordinator
	logger      *Logger.Logger
}

func NewGenerator(completer assistant.Completer, coordinator *recovery.Coordinator, logger *Logger.Logger) *Generator {
	return &Generator{
		completer:   completer,
		coordinator: coordinator,
		logger:      logger,
	}
}

// Generate scripts one turn. On exhausted retries it degrades to the
// deterministic fallback utterance instead of failing the phase.
func (g *Generator) Generate(ctx context.Context, req Request) Result {
	persona := LookupPersona(req.Speaker.Persona)

	completion := assistant.CompletionRequest{
		System:      buildSystemPrompt(persona, req.Speaker.Team, req.Difficulty),
		User:        buildUserPrompt(req),
		Temperature: req.Difficulty.temperature(),
	}

	text, err := recovery.Do(ctx, g.coordinator, req.SessionID, recovery.CategoryGeneration,
		func(ctx context.Context) (string, error) {
			raw, err := g.completer.Complete(ctx, completion)
			if err != nil {
				return "", err
			}
			clean := sanitize(raw)
			if clean == "" {
				return "", ErrEmptyCompletion
			}
			return clean, nil
		})
	if err != nil {
		g.logger.Warnf("session %s: generation exhausted for %s, using templated fallback: %v",
			req.SessionID, req.Phase, err)
		return Result{
			Text:     FallbackUtterance(req.Topic, req.Speaker.Team, req.Phase, persona.DisplayName),
			VoiceID:  persona.VoiceID,
			FellBack: true,
		}
	}

	return Result{Text: text, VoiceID: persona.VoiceID}
}
