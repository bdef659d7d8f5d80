package debatestore

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/podiumlabs/podium/internal/types"
	"gorm.io/gorm"
)

// RosterJSON is a custom type for handling JSON serialization of the roster
type RosterJSON []types.Participant

// Value implements driver.Valuer interface for GORM
func (r RosterJSON) Value() (driver.Value, error) {
	if len(r) == 0 {
		return "[]", nil
	}
	return json.Marshal(r)
}

// Scan implements sql.Scanner interface for GORM
func (r *RosterJSON) Scan(value interface{}) error {
	if value == nil {
		*r = RosterJSON{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		*r = RosterJSON{}
		return nil
	}
}

// AnalysisJSON is a custom type for handling JSON serialization of the verdict
type AnalysisJSON types.AnalysisResult

// Value implements driver.Valuer interface for GORM
func (a AnalysisJSON) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements sql.Scanner interface for GORM
func (a *AnalysisJSON) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return nil
	}
}

// SessionEntity represents the database entity for DebateSession with GORM tags
type SessionEntity struct {
	ID            uuid.UUID       `gorm:"primaryKey;type:char(36);not null"`
	OwnerID       uuid.UUID       `gorm:"column:owner_id;type:char(36);not null;index"`
	Topic         string          `gorm:"column:topic;type:varchar(300);not null"`
	Roster        RosterJSON      `gorm:"type:json;column:roster"`
	Status        string          `gorm:"column:status;type:varchar(20);not null;index;default:active"`
	Transcript    string          `gorm:"column:transcript;type:longtext"`
	StateSnapshot []byte          `gorm:"column:state_snapshot;type:blob"`
	Analysis      *AnalysisJSON   `gorm:"type:json;column:analysis"`
	CreatedAt     time.Time       `gorm:"autoCreateTime(3)"`
	SavedAt       time.Time       `gorm:"column:saved_at"`
	DeletedAt     *gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for GORM
func (SessionEntity) TableName() string {
	return "debate_sessions"
}

// BeforeCreate is a GORM hook to ensure UUID is set
func (s *SessionEntity) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ToDomain converts SessionEntity to domain DebateSession
func (s *SessionEntity) ToDomain() *types.DebateSession {
	roster := []types.Participant(s.Roster)
	if roster == nil {
		roster = []types.Participant{}
	}

	var analysis *types.AnalysisResult
	if s.Analysis != nil {
		a := types.AnalysisResult(*s.Analysis)
		analysis = &a
	}

	return &types.DebateSession{
		ID:            s.ID,
		OwnerID:       s.OwnerID,
		Topic:         s.Topic,
		Roster:        roster,
		Status:        types.SessionStatus(s.Status),
		Transcript:    s.Transcript,
		StateSnapshot: s.StateSnapshot,
		Analysis:      analysis,
		CreatedAt:     s.CreatedAt,
		SavedAt:       s.SavedAt,
	}
}

// FromDomain converts domain DebateSession to SessionEntity
func (s *SessionEntity) FromDomain(d *types.DebateSession) {
	s.ID = d.ID
	s.OwnerID = d.OwnerID
	s.Topic = d.Topic
	s.Roster = RosterJSON(d.Roster)
	s.Status = string(d.Status)
	s.Transcript = d.Transcript
	s.StateSnapshot = d.StateSnapshot

	if d.Analysis != nil {
		a := AnalysisJSON(*d.Analysis)
		s.Analysis = &a
	}

	s.CreatedAt = d.CreatedAt
	s.SavedAt = d.SavedAt
}

// NewSessionEntityFromDomain creates a new SessionEntity from domain DebateSession
func NewSessionEntityFromDomain(d *types.DebateSession) *SessionEntity {
	entity := &SessionEntity{}
	entity.FromDomain(d)
	return entity
}

// SpeechEntity represents the database entity for Speech with GORM tags
type SpeechEntity struct {
	ID        uuid.UUID `gorm:"primaryKey;type:char(36);not null"`
	SessionID uuid.UUID `gorm:"column:session_id;type:char(36);not null;index"`
	SpeakerID uuid.UUID `gorm:"column:speaker_id;type:char(36)"`
	Speaker   string    `gorm:"column:speaker;type:varchar(100);not null"`
	Phase     string    `gorm:"column:phase;type:varchar(40);not null;index"`
	Text      string    `gorm:"column:text;type:text"`
	AudioRef  string    `gorm:"column:audio_ref;type:varchar(120)"`
	CreatedAt time.Time `gorm:"autoCreateTime(3)"`
}

// TableName returns the table name for GORM
func (SpeechEntity) TableName() string {
	return "debate_speeches"
}

// BeforeCreate is a GORM hook to ensure UUID is set
func (s *SpeechEntity) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ToDomain converts SpeechEntity to domain Speech
func (s *SpeechEntity) ToDomain() *types.Speech {
	return &types.Speech{
		ID:        s.ID,
		SessionID: s.SessionID,
		SpeakerID: s.SpeakerID,
		Speaker:   s.Speaker,
		Phase:     s.Phase,
		Text:      s.Text,
		AudioRef:  s.AudioRef,
		CreatedAt: s.CreatedAt,
	}
}

// FromDomain converts domain Speech to SpeechEntity
func (s *SpeechEntity) FromDomain(d *types.Speech) {
	s.ID = d.ID
	s.SessionID = d.SessionID
	s.SpeakerID = d.SpeakerID
	s.Speaker = d.Speaker
	s.Phase = d.Phase
	s.Text = d.Text
	s.AudioRef = d.AudioRef
	s.CreatedAt = d.CreatedAt
}
