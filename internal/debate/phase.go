package debate

import (
	"time"

	"github.com/podiumlabs/podium/internal/types"
)

// Phase is one named, ordered stage of the debate. The order and nominal
// durations follow the Public Forum format.
type Phase string

const (
	PhaseOpeningPro      Phase = "opening_pro"
	PhaseOpeningCon      Phase = "opening_con"
	PhaseCrossfireFirst  Phase = "crossfire_first"
	PhaseRebuttalPro     Phase = "rebuttal_pro"
	PhaseRebuttalCon     Phase = "rebuttal_con"
	PhaseCrossfireSecond Phase = "crossfire_second"
	PhaseSummaryPro      Phase = "summary_pro"
	PhaseSummaryCon      Phase = "summary_con"
	PhaseGrandCrossfire  Phase = "grand_crossfire"
	PhaseFinalFocusPro   Phase = "final_focus_pro"
	PhaseFinalFocusCon   Phase = "final_focus_con"
	PhaseFinished        Phase = "finished"
)

// SpeakerOpenDialogue is the sentinel speaker value for crossfire phases:
// open multi-party dialogue rather than one designated speaker.
const SpeakerOpenDialogue = "open_dialogue"

var phaseOrder = []Phase{
	PhaseOpeningPro,
	PhaseOpeningCon,
	PhaseCrossfireFirst,
	PhaseRebuttalPro,
	PhaseRebuttalCon,
	PhaseCrossfireSecond,
	PhaseSummaryPro,
	PhaseSummaryCon,
	PhaseGrandCrossfire,
	PhaseFinalFocusPro,
	PhaseFinalFocusCon,
	PhaseFinished,
}

// PhaseOrder returns the fixed phase sequence including the terminal phase.
func PhaseOrder() []Phase {
	out := make([]Phase, len(phaseOrder))
	copy(out, phaseOrder)
	return out
}

// Next returns the phase that follows p in the fixed order. The terminal
// phase is absorbing.
func (p Phase) Next() Phase {
	for i, ph := range phaseOrder {
		if ph == p && i+1 < len(phaseOrder) {
			return phaseOrder[i+1]
		}
	}
	return PhaseFinished
}

func (p Phase) IsCrossfire() bool {
	switch p {
	case PhaseCrossfireFirst, PhaseCrossfireSecond, PhaseGrandCrossfire:
		return true
	}
	return false
}

func (p Phase) Terminal() bool {
	return p == PhaseFinished
}

func (p Phase) valid() bool {
	for _, ph := range phaseOrder {
		if ph == p {
			return true
		}
	}
	return false
}

// Durations maps each non-terminal phase to its nominal length.
type Durations map[Phase]time.Duration

// NominalDurations returns the standard Public Forum timing.
func NominalDurations() Durations {
	return Durations{
		PhaseOpeningPro:      4 * time.Minute,
		PhaseOpeningCon:      4 * time.Minute,
		PhaseCrossfireFirst:  3 * time.Minute,
		PhaseRebuttalPro:     4 * time.Minute,
		PhaseRebuttalCon:     4 * time.Minute,
		PhaseCrossfireSecond: 3 * time.Minute,
		PhaseSummaryPro:      3 * time.Minute,
		PhaseSummaryCon:      3 * time.Minute,
		PhaseGrandCrossfire:  3 * time.Minute,
		PhaseFinalFocusPro:   2 * time.Minute,
		PhaseFinalFocusCon:   2 * time.Minute,
	}
}

// ResolveSpeaker maps a phase and roster to the designated speaker reference:
// a participant id string, or SpeakerOpenDialogue for crossfire phases, or
// empty for the terminal phase. It is a pure function of its inputs.
func ResolveSpeaker(p Phase, roster []types.Participant) string {
	if p.Terminal() {
		return ""
	}
	if p.IsCrossfire() {
		return SpeakerOpenDialogue
	}

	var team types.Team
	var role types.Role
	switch p {
	case PhaseOpeningPro, PhaseSummaryPro:
		team, role = types.TeamPro, types.RoleFirstSpeaker
	case PhaseOpeningCon, PhaseSummaryCon:
		team, role = types.TeamCon, types.RoleFirstSpeaker
	case PhaseRebuttalPro, PhaseFinalFocusPro:
		team, role = types.TeamPro, types.RoleSecondSpeaker
	case PhaseRebuttalCon, PhaseFinalFocusCon:
		team, role = types.TeamCon, types.RoleSecondSpeaker
	}

	if part := types.FindParticipant(roster, team, role); part != nil {
		return part.ID.String()
	}
	return ""
}
