package orchestrator

import (
	"time"

	"github.com/google/uuid"
	"github.com/podiumlabs/podium/internal/debate"
	"github.com/podiumlabs/podium/internal/recovery"
	"github.com/podiumlabs/podium/internal/types"
)

// Event is anything a session pushes toward its client. Every speech-bearing
// event carries the phase and speaker it was generated for, so a client can
// discard output that arrives after the turn it belonged to.
type Event interface {
	eventName() string
}

// Dispatcher moves session events to the owning client connection. The
// transport layer implements it; sessions never see websockets.
type Dispatcher interface {
	Dispatch(sessionID uuid.UUID, ev Event)
}

// PhaseChanged announces a new turn: fresh phase, fresh speaker, full timer.
type PhaseChanged struct {
	Phase     debate.Phase  `json:"phase"`
	Speaker   string        `json:"speaker"`
	Remaining time.Duration `json:"remaining"`
	Ended     bool          `json:"ended"`
}

// TimerTick is the periodic countdown update within a phase.
type TimerTick struct {
	Phase     debate.Phase  `json:"phase"`
	Speaker   string        `json:"speaker"`
	Remaining time.Duration `json:"remaining"`
	Paused    bool          `json:"paused"`
}

// SpeechReady carries the scripted text of an AI turn. Degraded marks the
// templated fallback used after generation retries were exhausted.
type SpeechReady struct {
	Phase    debate.Phase `json:"phase"`
	Speaker  string       `json:"speaker"`
	Text     string       `json:"text"`
	Degraded bool         `json:"degraded,omitempty"`
}

// AudioReady is one buffered audio payload for a whole utterance.
type AudioReady struct {
	Phase   debate.Phase `json:"phase"`
	Speaker string       `json:"speaker"`
	Audio   []byte       `json:"audio"`
}

// AudioChunk is one ordered streaming segment of an utterance.
type AudioChunk struct {
	Phase   debate.Phase `json:"phase"`
	Speaker string       `json:"speaker"`
	Seq     int          `json:"seq"`
	Audio   []byte       `json:"audio"`
}

// AudioStreamEnded closes a chunk sequence, complete or not.
type AudioStreamEnded struct {
	Phase   debate.Phase `json:"phase"`
	Speaker string       `json:"speaker"`
}

// CrossfireStarted announces a live open-dialogue segment.
type CrossfireStarted struct {
	Phase debate.Phase `json:"phase"`
}

// CrossfireTranscript is one transcribed crossfire turn.
type CrossfireTranscript struct {
	Phase   debate.Phase `json:"phase"`
	Speaker string       `json:"speaker"`
	Text    string       `json:"text"`
}

// CrossfireAudio is one crossfire audio frame from the provider.
type CrossfireAudio struct {
	Phase   debate.Phase `json:"phase"`
	Speaker string       `json:"speaker"`
	Audio   []byte       `json:"audio"`
}

// CrossfireEnded closes a crossfire segment.
type CrossfireEnded struct {
	Phase debate.Phase `json:"phase"`
}

// AnalysisReady delivers the post-debate verdict.
type AnalysisReady struct {
	Result types.AnalysisResult `json:"result"`
}

// ErrorNotice tells the client something failed. Recovered notices describe a
// degradation the session already worked around; the debate keeps moving.
type ErrorNotice struct {
	Category  recovery.Category `json:"category"`
	Message   string            `json:"message"`
	Recovered bool              `json:"recovered"`
}

// SaveAck answers a save request.
type SaveAck struct {
	OK      bool      `json:"ok"`
	SavedAt time.Time `json:"savedAt,omitempty"`
	Reason  string    `json:"reason,omitempty"`
}

// LoadAck answers a load request. On success the restored state follows as a
// PhaseChanged event.
type LoadAck struct {
	OK     bool      `json:"ok"`
	ID     uuid.UUID `json:"id,omitempty"`
	Topic  string    `json:"topic,omitempty"`
	Reason string    `json:"reason,omitempty"`
}

func (PhaseChanged) eventName() string        { return "phase_changed" }
func (TimerTick) eventName() string           { return "timer_tick" }
func (SpeechReady) eventName() string         { return "speech_ready" }
func (AudioReady) eventName() string          { return "audio_ready" }
func (AudioChunk) eventName() string          { return "audio_chunk" }
func (AudioStreamEnded) eventName() string    { return "audio_stream_ended" }
func (CrossfireStarted) eventName() string    { return "crossfire_started" }
func (CrossfireTranscript) eventName() string { return "crossfire_transcript" }
func (CrossfireAudio) eventName() string      { return "crossfire_audio" }
func (CrossfireEnded) eventName() string      { return "crossfire_ended" }
func (AnalysisReady) eventName() string       { return "analysis_ready" }
func (ErrorNotice) eventName() string         { return "error_notice" }
func (SaveAck) eventName() string             { return "save_ack" }
func (LoadAck) eventName() string             { return "load_ack" }

// Name exposes the wire name of an event for transports and logs.
func Name(ev Event) string { return ev.eventName() }
