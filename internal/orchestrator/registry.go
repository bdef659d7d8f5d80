package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/podiumlabs/podium/internal/recovery"
	"github.com/podiumlabs/podium/internal/speech"
	"github.com/podiumlabs/podium/internal/types"
	"github.com/podiumlabs/podium/pkg/Logger"
)

// Registry tracks live sessions, one per connected client. Sessions are
// created when a client starts or loads a debate and destroyed synchronously
// when the connection drops.
type Registry struct {
	logger *Logger.Logger
	deps   Deps // Dispatcher field left empty; stamped per session
	cfg    Config

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewRegistry(deps Deps, cfg Config) *Registry {
	r := &Registry{
		logger:   deps.Logger,
		deps:     deps,
		cfg:      cfg,
		sessions: make(map[uuid.UUID]*Session),
	}
	r.registerFallbacks()
	return r
}

// registerFallbacks wires the coordinator's exhaustion hooks to client error
// notices. Each category fires at most once per exhausted call chain, so the
// client sees exactly one notice per failure.
func (r *Registry) registerFallbacks() {
	categories := map[recovery.Category]struct {
		recovered bool
		message   string
	}{
		recovery.CategoryGeneration:    {true, "speech generation unavailable, a stand-in argument was used"},
		recovery.CategorySynthesis:     {true, "voice synthesis unavailable, this turn is text-only"},
		recovery.CategoryCrossfireInit: {true, "live crossfire unavailable, the segment runs on the timer only"},
		recovery.CategoryPersistence:   {false, "storage unavailable, progress may not be saved"},
	}
	for cat, info := range categories {
		cat, info := cat, info
		r.deps.Coordinator.RegisterFallback(cat, func(sessionID uuid.UUID, err error) {
			s := r.Get(sessionID)
			if s == nil {
				return
			}
			r.logger.Warnf("session %s: %s exhausted: %v", sessionID, cat, err)
			s.dispatch(ErrorNotice{Category: cat, Message: info.message, Recovered: info.recovered})
		})
	}
}

// Create builds a fresh, unstarted session bound to the given dispatcher.
// An empty difficulty falls back to the registry default.
func (r *Registry) Create(ownerID uuid.UUID, d Dispatcher, difficulty speech.Difficulty) *Session {
	deps := r.deps
	deps.Dispatcher = d
	cfg := r.cfg
	if difficulty != "" {
		cfg.Difficulty = difficulty
	}
	s := newSession(uuid.New(), ownerID, deps, cfg)

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Load rebuilds a session from a saved debate record. An unknown id or a
// record owned by someone else yields ErrUnknownDebate; the transport answers
// with a negative LoadAck and keeps the connection alive.
func (r *Registry) Load(ctx context.Context, ownerID, debateID uuid.UUID, d Dispatcher) (*Session, error) {
	r.mu.Lock()
	live, isLive := r.sessions[debateID]
	r.mu.Unlock()
	if isLive {
		// A foreign owner must not learn the debate exists, let alone that
		// it is live; they get the same answer as for an unknown id.
		if live.ownerID != ownerID {
			return nil, ErrUnknownDebate
		}
		return nil, fmt.Errorf("debate %s: %w", debateID, ErrDebateLive)
	}

	var rec *types.DebateSession
	err := r.deps.Coordinator.Execute(ctx, debateID, recovery.CategoryPersistence,
		func(ctx context.Context) error {
			got, err := r.deps.Store.GetSession(ctx, debateID)
			if errors.Is(err, types.ErrNotFound) {
				// Absence is an answer, not a transient fault.
				return nil
			}
			if err != nil {
				return err
			}
			rec = got
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("load debate %s: %w", debateID, err)
	}
	if rec == nil || rec.OwnerID != ownerID {
		return nil, ErrUnknownDebate
	}

	deps := r.deps
	deps.Dispatcher = d
	s := newSession(debateID, ownerID, deps, r.cfg)
	if err := s.restore(rec); err != nil {
		s.Close()
		return nil, fmt.Errorf("restore debate %s: %w", debateID, err)
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s, nil
}

// Get returns the live session with the given id, nil if none.
func (r *Registry) Get(id uuid.UUID) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id]
}

// Remove closes and forgets a session. Idempotent; called on disconnect.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Count reports the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll tears down every live session; used on server shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.sessions = make(map[uuid.UUID]*Session)
	r.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}
