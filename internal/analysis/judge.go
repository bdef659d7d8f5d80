package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/podiumlabs/podium/internal/recovery"
	"github.com/podiumlabs/podium/internal/types"
	"github.com/podiumlabs/podium/pkg/Logger"
	"github.com/podiumlabs/podium/pkg/assistant"
)

const judgeSystemPrompt = `You are an experienced Public Forum debate judge. You will receive a full
debate transcript. Evaluate the debate and respond with a single JSON object,
no prose around it, with exactly these fields:
{
  "summary": "two or three sentences on how the round went",
  "strengths": ["..."],
  "weaknesses": ["..."],
  "suggestions": ["..."],
  "winningTeam": "pro" or "con",
  "userTeamScore": integer 0-100 scoring the indicated debater's team
}`

var ErrUnparsableVerdict = errors.New("judge returned unparsable verdict")

// Judge produces post-debate feedback from a finished transcript.
type Judge struct {
	completer   assistant.Completer
	coordinator *recovery.Coordinator
	logger      *Logger.Logger
}

func NewJudge(completer assistant.Completer, coordinator *recovery.Coordinator, logger *Logger.Logger) *Judge {
	return &Judge{completer: completer, coordinator: coordinator, logger: logger}
}

// Evaluate runs the judge model over the transcript and returns structured
// feedback scored from the human debater's perspective.
func (j *Judge) Evaluate(ctx context.Context, sessionID uuid.UUID, topic string, speeches []types.Speech, userTeam types.Team) (*types.AnalysisResult, error) {
	user := buildJudgeRequest(topic, speeches, userTeam)

	result, err := recovery.Do(ctx, j.coordinator, sessionID, recovery.CategoryGeneration,
		func(ctx context.Context) (*types.AnalysisResult, error) {
			raw, err := j.completer.Complete(ctx, assistant.CompletionRequest{
				System:      judgeSystemPrompt,
				User:        user,
				Temperature: 0.3,
				MaxTokens:   1024,
			})
			if err != nil {
				return nil, err
			}
			return parseVerdict(raw)
		})
	if err != nil {
		return nil, fmt.Errorf("debate analysis: %w", err)
	}
	return result, nil
}

func buildJudgeRequest(topic string, speeches []types.Speech, userTeam types.Team) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", topic)
	fmt.Fprintf(&b, "Score the team arguing %s as the user's team.\n\nTranscript:\n", userTeam)
	for _, sp := range speeches {
		fmt.Fprintf(&b, "[%s] %s: %s\n", sp.Phase, sp.Speaker, sp.Text)
	}
	return b.String()
}

// parseVerdict tolerates models that wrap the JSON in code fences or prose.
func parseVerdict(raw string) (*types.AnalysisResult, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrUnparsableVerdict)
	}

	var out types.AnalysisResult
	if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsableVerdict, err)
	}
	if out.WinningTeam != types.TeamPro && out.WinningTeam != types.TeamCon {
		return nil, fmt.Errorf("%w: winningTeam %q", ErrUnparsableVerdict, out.WinningTeam)
	}
	if out.UserTeamScore < 0 {
		out.UserTeamScore = 0
	}
	if out.UserTeamScore > 100 {
		out.UserTeamScore = 100
	}
	return &out, nil
}
