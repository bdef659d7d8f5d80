package recovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/podiumlabs/podium/pkg/Logger"
)

// Category separates retry budgets per failure class. Different categories of
// the same session never share an attempt counter.
type Category string

const (
	CategoryGeneration    Category = "text_generation"
	CategorySynthesis     Category = "speech_synthesis"
	CategoryCrossfireInit Category = "crossfire_init"
	CategoryPersistence   Category = "persistence"
)

// Policy bounds the retry loop. Defaults: 3 attempts, exponential backoff
// from 500ms capped at 8s.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
	}
}

func (p Policy) normalize() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 500 * time.Millisecond
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = 8 * time.Second
	}
	return p
}

// ExhaustedError reports that every attempt for a category failed and the
// fallback handler has already run.
type ExhaustedError struct {
	Category Category
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Category, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// FallbackFunc runs exactly once when a category exhausts its attempts.
type FallbackFunc func(sessionID uuid.UUID, err error)

type attemptKey struct {
	session  uuid.UUID
	category Category
}

// Coordinator wraps every external call the debate engine makes. Attempt
// counters are keyed by (session, category) and discarded on session cleanup.
type Coordinator struct {
	logger *Logger.Logger
	policy Policy
	sleep  func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	attempts  map[attemptKey]int
	fallbacks map[Category]FallbackFunc
}

func New(logger *Logger.Logger, policy Policy) *Coordinator {
	return &Coordinator{
		logger:    logger,
		policy:    policy.normalize(),
		sleep:     sleepCtx,
		attempts:  make(map[attemptKey]int),
		fallbacks: make(map[Category]FallbackFunc),
	}
}

// RegisterFallback installs the category handler invoked on exhaustion.
func (c *Coordinator) RegisterFallback(category Category, fn FallbackFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fallbacks[category] = fn
}

// Execute runs op, retrying with exponential backoff up to the attempt
// ceiling. On final exhaustion the category fallback fires once and an
// ExhaustedError is returned.
func (c *Coordinator) Execute(ctx context.Context, sessionID uuid.UUID, category Category, op func(ctx context.Context) error) error {
	lastErr := c.retry(ctx, sessionID, category, op)
	if lastErr == nil {
		return nil
	}

	c.mu.Lock()
	fb := c.fallbacks[category]
	c.mu.Unlock()
	if fb != nil {
		fb(sessionID, lastErr)
	}
	return &ExhaustedError{Category: category, Attempts: c.policy.MaxAttempts, Err: lastErr}
}

// Try retries like Execute but never fires the category fallback. Used for
// intermediate steps (a single stream chunk) where the caller still has a
// recovery path of its own.
func (c *Coordinator) Try(ctx context.Context, sessionID uuid.UUID, category Category, op func(ctx context.Context) error) error {
	if err := c.retry(ctx, sessionID, category, op); err != nil {
		return fmt.Errorf("%s: %w", category, err)
	}
	return nil
}

func (c *Coordinator) retry(ctx context.Context, sessionID uuid.UUID, category Category, op func(ctx context.Context) error) error {
	backoff := c.policy.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		c.recordAttempt(sessionID, category)

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		c.logger.Warnf("session %s: %s attempt %d/%d failed: %v",
			sessionID, category, attempt, c.policy.MaxAttempts, lastErr)

		if attempt == c.policy.MaxAttempts {
			break
		}
		if err := c.sleep(ctx, backoff); err != nil {
			return err
		}
		backoff *= 2
		if backoff > c.policy.MaxBackoff {
			backoff = c.policy.MaxBackoff
		}
	}
	return lastErr
}

// Do is the typed variant of Execute for operations that return a value.
func Do[T any](ctx context.Context, c *Coordinator, sessionID uuid.UUID, category Category, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := c.Execute(ctx, sessionID, category, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Attempts reports the cumulative attempt count for a session/category pair.
func (c *Coordinator) Attempts(sessionID uuid.UUID, category Category) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts[attemptKey{sessionID, category}]
}

// CleanupSession discards every counter tracked for a terminated session.
func (c *Coordinator) CleanupSession(sessionID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.attempts {
		if k.session == sessionID {
			delete(c.attempts, k)
		}
	}
}

func (c *Coordinator) recordAttempt(sessionID uuid.UUID, category Category) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts[attemptKey{sessionID, category}]++
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
