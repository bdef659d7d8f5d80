package router

import (
	"context"
	"errors"
	"testing"

	"github.com/podiumlabs/podium/pkg/assistant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	name  string
	text  string
	err   error
	calls int
}

func (s *stubCompleter) Name() string { return s.name }

func (s *stubCompleter) Complete(ctx context.Context, req assistant.CompletionRequest) (string, error) {
	s.calls++
	return s.text, s.err
}

func TestMuxFirstProviderWins(t *testing.T) {
	primary := &stubCompleter{name: "openai", text: "from primary"}
	backup := &stubCompleter{name: "gemini", text: "from backup"}
	m := New(primary, backup)

	got, err := m.Complete(context.Background(), assistant.CompletionRequest{User: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "from primary", got)
	assert.Zero(t, backup.calls)
}

func TestMuxFallsThroughOnError(t *testing.T) {
	primary := &stubCompleter{name: "openai", err: errors.New("quota")}
	backup := &stubCompleter{name: "gemini", text: "from backup"}
	m := New(primary, backup)

	got, err := m.Complete(context.Background(), assistant.CompletionRequest{User: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "from backup", got)
	assert.Equal(t, 1, primary.calls)
}

func TestMuxAllFail(t *testing.T) {
	boom := errors.New("down")
	m := New(&stubCompleter{name: "openai", err: boom})

	_, err := m.Complete(context.Background(), assistant.CompletionRequest{User: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestMuxEmpty(t *testing.T) {
	m := New()
	_, err := m.Complete(context.Background(), assistant.CompletionRequest{User: "hi"})
	assert.ErrorIs(t, err, ErrNoProviders)
}
