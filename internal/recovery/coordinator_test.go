package recovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/podiumlabs/podium/pkg/Logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator() *Coordinator {
	c := New(Logger.New(true), DefaultPolicy())
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return c
}

func TestExecuteRetriesThenSucceeds(t *testing.T) {
	c := newTestCoordinator()
	sid := uuid.New()

	calls := 0
	err := c.Execute(context.Background(), sid, CategoryGeneration, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("upstream flake")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, c.Attempts(sid, CategoryGeneration))
}

func TestExecuteExhaustionInvokesFallbackOnce(t *testing.T) {
	c := newTestCoordinator()
	sid := uuid.New()

	fallbacks := 0
	c.RegisterFallback(CategorySynthesis, func(sessionID uuid.UUID, err error) {
		fallbacks++
		assert.Equal(t, sid, sessionID)
		assert.Error(t, err)
	})

	calls := 0
	boom := errors.New("tts down")
	err := c.Execute(context.Background(), sid, CategorySynthesis, func(ctx context.Context) error {
		calls++
		return boom
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls, "exactly the configured ceiling of attempts")
	assert.Equal(t, 1, fallbacks, "fallback handler fires exactly once")

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, CategorySynthesis, exhausted.Category)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.ErrorIs(t, err, boom)
}

func TestDoReturnsValue(t *testing.T) {
	c := newTestCoordinator()
	sid := uuid.New()

	calls := 0
	got, err := Do(context.Background(), c, sid, CategoryGeneration, func(ctx context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("flake")
		}
		return "resolved", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "resolved", got)
	assert.Equal(t, 2, calls)
}

func TestCategoriesDoNotShareBudgets(t *testing.T) {
	c := newTestCoordinator()
	sid := uuid.New()

	_ = c.Execute(context.Background(), sid, CategoryGeneration, func(ctx context.Context) error {
		return errors.New("always")
	})
	require.NoError(t, c.Execute(context.Background(), sid, CategorySynthesis, func(ctx context.Context) error {
		return nil
	}))

	assert.Equal(t, 3, c.Attempts(sid, CategoryGeneration))
	assert.Equal(t, 1, c.Attempts(sid, CategorySynthesis))
}

func TestCleanupSessionDropsCounters(t *testing.T) {
	c := newTestCoordinator()
	sid := uuid.New()
	other := uuid.New()

	_ = c.Execute(context.Background(), sid, CategoryGeneration, func(ctx context.Context) error { return nil })
	_ = c.Execute(context.Background(), other, CategoryGeneration, func(ctx context.Context) error { return nil })

	c.CleanupSession(sid)
	assert.Equal(t, 0, c.Attempts(sid, CategoryGeneration))
	assert.Equal(t, 1, c.Attempts(other, CategoryGeneration), "other sessions untouched")
}

func TestTryDoesNotFireFallback(t *testing.T) {
	c := newTestCoordinator()
	sid := uuid.New()

	fallbacks := 0
	c.RegisterFallback(CategorySynthesis, func(uuid.UUID, error) { fallbacks++ })

	calls := 0
	err := c.Try(context.Background(), sid, CategorySynthesis, func(ctx context.Context) error {
		calls++
		return errors.New("chunk failed")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Zero(t, fallbacks, "Try must leave the fallback to the caller")
}

func TestExecuteStopsOnContextCancel(t *testing.T) {
	c := New(Logger.New(true), DefaultPolicy())
	c.sleep = sleepCtx // real sleep honours cancellation

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := c.Execute(ctx, uuid.New(), CategoryGeneration, func(ctx context.Context) error {
		calls++
		return errors.New("fail")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "no retry after cancellation")
	assert.ErrorIs(t, err, context.Canceled)
}
