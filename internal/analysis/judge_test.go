package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/podiumlabs/podium/internal/recovery"
	"github.com/podiumlabs/podium/internal/types"
	"github.com/podiumlabs/podium/pkg/Logger"
	"github.com/podiumlabs/podium/pkg/assistant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJudgeModel struct {
	response string
	failures int
	lastUser string
}

func (f *fakeJudgeModel) Name() string { return "fake" }

func (f *fakeJudgeModel) Complete(_ context.Context, req assistant.CompletionRequest) (string, error) {
	f.lastUser = req.User
	if f.failures > 0 {
		f.failures--
		return "", errors.New("model overloaded")
	}
	return f.response, nil
}

func newTestJudge(model assistant.Completer) *Judge {
	log := Logger.New(false)
	coord := recovery.New(log, recovery.Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	})
	return NewJudge(model, coord, log)
}

const goodVerdict = `{
	"summary": "Close round decided on the economy contention.",
	"strengths": ["clear signposting"],
	"weaknesses": ["dropped the second rebuttal"],
	"suggestions": ["extend your framework into summary"],
	"winningTeam": "con",
	"userTeamScore": 72
}`

func sampleSpeeches() []types.Speech {
	return []types.Speech{
		{Phase: "opening_pro", Speaker: "Ada", Text: "We affirm because growth follows investment."},
		{Phase: "opening_con", Speaker: "Elena", Text: "We negate because the costs land on workers."},
	}
}

func TestEvaluateParsesVerdict(t *testing.T) {
	model := &fakeJudgeModel{response: goodVerdict}
	judge := newTestJudge(model)

	res, err := judge.Evaluate(context.Background(), uuid.New(), "carbon tax", sampleSpeeches(), types.TeamPro)
	require.NoError(t, err)

	assert.Equal(t, types.TeamCon, res.WinningTeam)
	assert.Equal(t, 72, res.UserTeamScore)
	assert.Len(t, res.Strengths, 1)

	assert.Contains(t, model.lastUser, "Topic: carbon tax")
	assert.Contains(t, model.lastUser, "[opening_pro] Ada:")
	assert.Contains(t, model.lastUser, "arguing pro")
}

func TestEvaluateStripsCodeFences(t *testing.T) {
	model := &fakeJudgeModel{response: "Here is my verdict:\n```json\n" + goodVerdict + "\n```"}
	judge := newTestJudge(model)

	res, err := judge.Evaluate(context.Background(), uuid.New(), "topic", sampleSpeeches(), types.TeamPro)
	require.NoError(t, err)
	assert.Equal(t, types.TeamCon, res.WinningTeam)
}

func TestEvaluateRetriesTransientFailures(t *testing.T) {
	model := &fakeJudgeModel{response: goodVerdict, failures: 2}
	judge := newTestJudge(model)

	_, err := judge.Evaluate(context.Background(), uuid.New(), "topic", sampleSpeeches(), types.TeamCon)
	require.NoError(t, err)
}

func TestEvaluateRejectsGarbageVerdict(t *testing.T) {
	model := &fakeJudgeModel{response: "the pro team was simply better"}
	judge := newTestJudge(model)

	_, err := judge.Evaluate(context.Background(), uuid.New(), "topic", sampleSpeeches(), types.TeamPro)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnparsableVerdict)
}

func TestEvaluateRejectsUnknownWinner(t *testing.T) {
	model := &fakeJudgeModel{response: `{"summary":"x","winningTeam":"neutral","userTeamScore":50}`}
	judge := newTestJudge(model)

	_, err := judge.Evaluate(context.Background(), uuid.New(), "topic", sampleSpeeches(), types.TeamPro)
	assert.ErrorIs(t, err, ErrUnparsableVerdict)
}

func TestEvaluateClampsScore(t *testing.T) {
	model := &fakeJudgeModel{response: `{"summary":"x","winningTeam":"pro","userTeamScore":140}`}
	judge := newTestJudge(model)

	res, err := judge.Evaluate(context.Background(), uuid.New(), "topic", sampleSpeeches(), types.TeamPro)
	require.NoError(t, err)
	assert.Equal(t, 100, res.UserTeamScore)
}
