package websocket

import (
	"encoding/json"
	"time"

	"github.com/podiumlabs/podium/internal/speech"
	"github.com/podiumlabs/podium/internal/types"
)

// MessageType defines the type of WebSocket message
type MessageType string

// client -> server commands
const (
	MessageTypeStartDebate MessageType = "start_debate"
	MessageTypeLoadDebate  MessageType = "load_debate"
	MessageTypeSaveDebate  MessageType = "save_debate"
	MessageTypePause       MessageType = "pause"
	MessageTypeResume      MessageType = "resume"
	MessageTypeSkipTurn    MessageType = "skip_turn"
	MessageTypeEndDebate   MessageType = "end_debate"
	MessageTypeUtterance   MessageType = "utterance"
)

// server -> client messages; speech and audio events carry the orchestrator
// event payload under Data, named by the event's wire name.
const (
	MessageTypeInit  MessageType = "init"
	MessageTypeError MessageType = "error"
	MessageTypeEvent MessageType = "event"
)

// WSMessage represents the structure of WebSocket messages
type WSMessage struct {
	Type      MessageType `json:"type"`
	Event     string      `json:"event,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	SessionID string      `json:"sessionId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ClientMessage is the incoming command envelope. Data stays raw until the
// command type picks its payload shape.
type ClientMessage struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// StartDebateRequest opens a new debate on this connection.
type StartDebateRequest struct {
	Topic      string              `json:"topic"`
	Roster     []types.Participant `json:"roster"`
	Difficulty speech.Difficulty   `json:"difficulty,omitempty"`
}

// LoadDebateRequest resumes a saved debate on this connection.
type LoadDebateRequest struct {
	DebateID string `json:"debateId"`
}

// UtteranceMessage carries a typed human speech, optionally with the client's
// own recording of it (base64 over the wire).
type UtteranceMessage struct {
	Text  string `json:"text"`
	Audio []byte `json:"audio,omitempty"`
}

// ErrorMessage contains error information
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
