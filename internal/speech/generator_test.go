package speech

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/podiumlabs/podium/internal/debate"
	"github.com/podiumlabs/podium/internal/recovery"
	"github.com/podiumlabs/podium/internal/types"
	"github.com/podiumlabs/podium/pkg/Logger"
	"github.com/podiumlabs/podium/pkg/assistant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	text     string
	err      error
	lastReq  assistant.CompletionRequest
	calls    int
	failures int // fail this many calls before succeeding
}

func (f *fakeCompleter) Name() string { return "fake" }

func (f *fakeCompleter) Complete(ctx context.Context, req assistant.CompletionRequest) (string, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return "", f.err
	}
	if f.calls <= f.failures {
		return "", errors.New("transient")
	}
	return f.text, nil
}

func fastCoordinator() *recovery.Coordinator {
	c := recovery.New(Logger.New(true), recovery.Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	})
	return c
}

func testRequest() Request {
	return Request{
		SessionID: uuid.New(),
		Topic:     "Resolved: The United States should adopt a carbon tax",
		Speaker: types.Participant{
			ID:      uuid.New(),
			IsAI:    true,
			Team:    types.TeamCon,
			Role:    types.RoleFirstSpeaker,
			Persona: "elena",
		},
		Phase:          debate.PhaseOpeningCon,
		TranscriptTail: "[opening_pro] Ada: We affirm because...",
		OpponentLast:   "We affirm because...",
		Difficulty:     DifficultyIntermediate,
	}
}

func TestGeneratePromptContents(t *testing.T) {
	fake := &fakeCompleter{text: "We negate the resolution for two reasons."}
	g := NewGenerator(fake, fastCoordinator(), Logger.New(true))

	res := g.Generate(context.Background(), testRequest())
	require.False(t, res.FellBack)
	assert.Equal(t, "We negate the resolution for two reasons.", res.Text)
	assert.Equal(t, LookupPersona("elena").VoiceID, res.VoiceID)

	assert.Contains(t, fake.lastReq.System, "Elena", "persona name in system prompt")
	assert.Contains(t, fake.lastReq.System, "against", "con stance in system prompt")
	assert.Contains(t, fake.lastReq.User, "carbon tax", "topic in user prompt")
	assert.Contains(t, fake.lastReq.User, "constructive", "phase instructions in user prompt")
	assert.Contains(t, fake.lastReq.User, "opening_pro", "transcript tail in user prompt")
}

func TestGenerateSanitizesMarkup(t *testing.T) {
	fake := &fakeCompleter{text: "## Opening\n**First**, the evidence is clear.\n- point one\n- point two"}
	g := NewGenerator(fake, fastCoordinator(), Logger.New(true))

	res := g.Generate(context.Background(), testRequest())
	require.False(t, res.FellBack)
	assert.NotContains(t, res.Text, "**")
	assert.NotContains(t, res.Text, "#")
	assert.NotContains(t, res.Text, "- ")
	assert.Contains(t, res.Text, "First, the evidence is clear.")
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	fake := &fakeCompleter{text: "We negate.", failures: 2}
	g := NewGenerator(fake, fastCoordinator(), Logger.New(true))

	res := g.Generate(context.Background(), testRequest())
	require.False(t, res.FellBack)
	assert.Equal(t, 3, fake.calls)
	assert.Equal(t, "We negate.", res.Text)
}

func TestGenerateFallsBackWhenExhausted(t *testing.T) {
	fake := &fakeCompleter{err: errors.New("provider down")}
	g := NewGenerator(fake, fastCoordinator(), Logger.New(true))

	req := testRequest()
	res := g.Generate(context.Background(), req)
	require.True(t, res.FellBack)
	assert.NotEmpty(t, res.Text)
	assert.Contains(t, res.Text, "carbon tax", "fallback is built from the topic")

	// deterministic: same inputs, same utterance
	again := g.Generate(context.Background(), req)
	assert.Equal(t, res.Text, again.Text)
}

func TestFallbackUtteranceCoversEveryPhase(t *testing.T) {
	for _, p := range debate.PhaseOrder() {
		if p.Terminal() {
			continue
		}
		text := FallbackUtterance("any topic", types.TeamPro, p, "Marcus")
		assert.NotEmpty(t, text, "phase %s", p)
		assert.False(t, strings.Contains(text, "%"), "phase %s has unformatted verbs", p)
	}
}

func TestLookupPersonaUnknownUsesDefault(t *testing.T) {
	p := LookupPersona("nobody")
	assert.Equal(t, "default", p.Name)
	assert.NotEmpty(t, p.VoiceID)
}
