package debatestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/podiumlabs/podium/internal/types"
	"gorm.io/gorm"
)

type GormDebateRepo struct {
	db *gorm.DB
}

// CreateSession implements types.DebateStore
func (g *GormDebateRepo) CreateSession(ctx context.Context, s types.DebateSession) error {
	entity := NewSessionEntityFromDomain(&s)
	if err := g.db.WithContext(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("failed to create debate session: %w", err)
	}
	return nil
}

// UpdateSession implements types.DebateStore. The full record is written; the
// owning orchestration session is the only writer, so no field merging.
func (g *GormDebateRepo) UpdateSession(ctx context.Context, s types.DebateSession) error {
	entity := NewSessionEntityFromDomain(&s)
	result := g.db.WithContext(ctx).
		Model(&SessionEntity{}).
		Where("id = ?", s.ID).
		Updates(map[string]interface{}{
			"topic":          entity.Topic,
			"roster":         entity.Roster,
			"status":         entity.Status,
			"transcript":     entity.Transcript,
			"state_snapshot": entity.StateSnapshot,
			"analysis":       entity.Analysis,
			"saved_at":       entity.SavedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update debate session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// A record lost before the first save still deserves persistence.
		if err := g.db.WithContext(ctx).Create(entity).Error; err != nil {
			return fmt.Errorf("failed to upsert debate session: %w", err)
		}
	}
	return nil
}

// GetSession implements types.DebateStore
func (g *GormDebateRepo) GetSession(ctx context.Context, id uuid.UUID) (*types.DebateSession, error) {
	var entity SessionEntity
	if err := g.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get debate session: %w", err)
	}
	return entity.ToDomain(), nil
}

// ListSessions implements types.DebateStore
func (g *GormDebateRepo) ListSessions(ctx context.Context, ownerID uuid.UUID) ([]types.DebateSession, error) {
	var entities []SessionEntity
	if err := g.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("saved_at DESC").
		Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("failed to list debate sessions: %w", err)
	}

	sessions := make([]types.DebateSession, len(entities))
	for i, entity := range entities {
		sessions[i] = *entity.ToDomain()
	}
	return sessions, nil
}

// AppendSpeech implements types.DebateStore
func (g *GormDebateRepo) AppendSpeech(ctx context.Context, sp types.Speech) error {
	entity := &SpeechEntity{}
	entity.FromDomain(&sp)
	if err := g.db.WithContext(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("failed to append speech: %w", err)
	}
	return nil
}

// ListSpeeches implements types.DebateStore
func (g *GormDebateRepo) ListSpeeches(ctx context.Context, sessionID uuid.UUID) ([]types.Speech, error) {
	var entities []SpeechEntity
	if err := g.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("failed to list speeches: %w", err)
	}

	speeches := make([]types.Speech, len(entities))
	for i, entity := range entities {
		speeches[i] = *entity.ToDomain()
	}
	return speeches, nil
}

// NewGormDebateRepo creates a new GORM-based debate repository
func NewGormDebateRepo(db *gorm.DB) types.DebateStore {
	return &GormDebateRepo{db: db}
}
