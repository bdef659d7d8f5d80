package speech

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/podiumlabs/podium/internal/debate"
	"github.com/podiumlabs/podium/internal/types"
)

// Difficulty tunes structural expectations and sampling temperature, nothing
// else.
type Difficulty string

const (
	DifficultyNovice       Difficulty = "novice"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyChampionship Difficulty = "championship"
)

func (d Difficulty) temperature() float64 {
	switch d {
	case DifficultyNovice:
		return 0.9
	case DifficultyChampionship:
		return 0.5
	default:
		return 0.7
	}
}

func (d Difficulty) instruction() string {
	switch d {
	case DifficultyNovice:
		return "Keep arguments simple and accessible. Two contentions at most, plain language, no debate jargon."
	case DifficultyChampionship:
		return "Argue at national-circuit level: tight link chains, explicit weighing, extend or answer every live argument on the flow."
	default:
		return "Argue at a solid regional level: clear contentions with evidence, respond to the opponent's main points."
	}
}

// phaseInstructions gives the structural brief per phase group.
func phaseInstructions(p debate.Phase) string {
	switch p {
	case debate.PhaseOpeningPro, debate.PhaseOpeningCon:
		return "Deliver your constructive speech. Present your team's case: frame the resolution, then lay out your contentions with supporting evidence. Do not respond to the other team yet."
	case debate.PhaseRebuttalPro, debate.PhaseRebuttalCon:
		return "Deliver your rebuttal. Attack the opposing case contention by contention, then defend your own against the attacks made so far."
	case debate.PhaseSummaryPro, debate.PhaseSummaryCon:
		return "Deliver your summary. Collapse to the two strongest arguments in the round, extend them with warrants, and begin weighing against the opposing case."
	case debate.PhaseFinalFocusPro, debate.PhaseFinalFocusCon:
		return "Deliver your final focus. No new arguments. Weigh the round: tell the judge exactly why your side has won on the issues that matter."
	default:
		return "Respond naturally as a debater in open crossfire: ask pointed questions, give direct answers, keep each turn short."
	}
}

func buildSystemPrompt(persona Persona, team types.Team, diff Difficulty) string {
	stance := "in favor of"
	if team == types.TeamCon {
		stance = "against"
	}
	return fmt.Sprintf(
		"You are %s, %s. You are debating %s the resolution in a Public Forum round. %s Speak in plain prose suitable for text-to-speech: no markdown, no headings, no bullet points, no stage directions.",
		persona.DisplayName, persona.Style, stance, diff.instruction(),
	)
}

func buildUserPrompt(req Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Resolution: %s\n", req.Topic)
	fmt.Fprintf(&sb, "Current phase: %s\n", req.Phase)
	fmt.Fprintf(&sb, "%s\n", phaseInstructions(req.Phase))
	if req.OpponentLast != "" {
		fmt.Fprintf(&sb, "\nYour opponent's most recent speech:\n%s\n", req.OpponentLast)
	}
	if req.TranscriptTail != "" {
		fmt.Fprintf(&sb, "\nDebate so far (most recent portion):\n%s\n", req.TranscriptTail)
	}
	sb.WriteString("\nGive only the speech text.")
	return sb.String()
}

var (
	markupRe     = regexp.MustCompile("[*_`#>]+")
	bulletRe     = regexp.MustCompile(`(?m)^\s*(?:[-+•]|\d+[.)])\s+`)
	whitespaceRe = regexp.MustCompile(`[ \t]{2,}`)
)

// sanitize strips residual model markup so the text reads cleanly and
// synthesizes without artifacts.
func sanitize(text string) string {
	text = bulletRe.ReplaceAllString(text, "")
	text = markupRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// FallbackUtterance is the deterministic templated speech used when
// generation is exhausted. The debate never stalls on a failed LLM call.
func FallbackUtterance(topic string, team types.Team, phase debate.Phase, displayName string) string {
	stance := "affirm"
	if team == types.TeamCon {
		stance = "negate"
	}
	switch phase {
	case debate.PhaseOpeningPro, debate.PhaseOpeningCon:
		return fmt.Sprintf("I am %s, and my partner and I %s the resolution: %s. Our case rests on two contentions: first, the practical benefits this position secures, and second, the harms of the alternative. We will develop both through this round.", displayName, stance, topic)
	case debate.PhaseRebuttalPro, debate.PhaseRebuttalCon:
		return fmt.Sprintf("My opponents' case on %s does not hold. Their contentions lack the evidence to support the impacts they claim, while our case stands unrefuted. We %s the resolution and ask you to weigh the arguments actually warranted in this round.", topic, stance)
	case debate.PhaseSummaryPro, debate.PhaseSummaryCon:
		return fmt.Sprintf("This round comes down to which side better upholds its burden on %s. Our arguments stand extended and theirs have gone unanswered where it matters most. We continue to %s the resolution.", topic, stance)
	case debate.PhaseFinalFocusPro, debate.PhaseFinalFocusCon:
		return fmt.Sprintf("Judge, weigh this round on the arguments that survived. On %s, our side has presented the clearer impacts and the stronger warrants. For these reasons we %s the resolution and ask for your ballot.", topic, stance)
	default:
		return fmt.Sprintf("That is a fair question about %s, and I would point you back to the core of our case, which my opponents have still not answered.", topic)
	}
}
