package types

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Team string

const (
	TeamPro Team = "pro"
	TeamCon Team = "con"
)

// Role is the speaking slot inside a team. Public Forum gives each team two.
type Role string

const (
	RoleFirstSpeaker  Role = "first"
	RoleSecondSpeaker Role = "second"
)

type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusPaused    SessionStatus = "paused"
	StatusCompleted SessionStatus = "completed"
)

// Participant is fixed for the lifetime of a session.
type Participant struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"displayName"`
	IsAI        bool      `json:"isAI"`
	Team        Team      `json:"team"`
	Role        Role      `json:"role"`
	// Persona names an AI debater profile; empty for humans.
	Persona string `json:"persona,omitempty"`
}

// Speech is one utterance, AI-generated or human-submitted. Append-only.
type Speech struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"sessionId"`
	SpeakerID uuid.UUID `json:"speakerId"`
	Speaker   string    `json:"speaker"`
	Phase     string    `json:"phase"`
	Text      string    `json:"text"`
	// AudioRef keys into the blob store; empty if the utterance was text-only.
	AudioRef  string    `json:"audioRef,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// AnalysisResult is the structured post-debate feedback record.
type AnalysisResult struct {
	Summary       string   `json:"summary"`
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Suggestions   []string `json:"suggestions"`
	WinningTeam   Team     `json:"winningTeam"`
	UserTeamScore int      `json:"userTeamScore"`
}

// DebateSession is the persistence-facing record. The orchestration session
// that created it is its sole mutator.
type DebateSession struct {
	ID            uuid.UUID       `json:"id"`
	OwnerID       uuid.UUID       `json:"ownerId"`
	Topic         string          `json:"topic"`
	Roster        []Participant   `json:"roster"`
	Status        SessionStatus   `json:"status"`
	Transcript    string          `json:"transcript"`
	StateSnapshot []byte          `json:"stateSnapshot,omitempty"`
	Analysis      *AnalysisResult `json:"analysis,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	SavedAt       time.Time       `json:"savedAt"`
}

// FindParticipant returns the roster entry for a team/role slot, nil if absent.
func FindParticipant(roster []Participant, team Team, role Role) *Participant {
	for i := range roster {
		if roster[i].Team == team && roster[i].Role == role {
			return &roster[i]
		}
	}
	return nil
}

// FindSpeaker returns the roster entry with the given display name, nil if
// absent. Display names are unique within a roster.
func FindSpeaker(roster []Participant, displayName string) *Participant {
	for i := range roster {
		if roster[i].DisplayName == displayName {
			return &roster[i]
		}
	}
	return nil
}

// FindParticipantByID returns the roster entry whose id renders to the given
// string, nil if absent. The phase machine tracks speakers by id string.
func FindParticipantByID(roster []Participant, id string) *Participant {
	for i := range roster {
		if roster[i].ID.String() == id {
			return &roster[i]
		}
	}
	return nil
}

// HumanParticipant returns the first non-AI roster entry, nil if all-AI.
func HumanParticipant(roster []Participant) *Participant {
	for i := range roster {
		if !roster[i].IsAI {
			return &roster[i]
		}
	}
	return nil
}

// ErrNotFound is returned by stores when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// DebateStore is the persistence contract the orchestration layer consumes.
type DebateStore interface {
	CreateSession(ctx context.Context, s DebateSession) error
	UpdateSession(ctx context.Context, s DebateSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*DebateSession, error)
	ListSessions(ctx context.Context, ownerID uuid.UUID) ([]DebateSession, error)
	AppendSpeech(ctx context.Context, sp Speech) error
	ListSpeeches(ctx context.Context, sessionID uuid.UUID) ([]Speech, error)
}

// BlobStore stores utterance audio by key.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
