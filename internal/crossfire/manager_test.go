package crossfire

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/podiumlabs/podium/internal/recovery"
	"github.com/podiumlabs/podium/internal/types"
	"github.com/podiumlabs/podium/pkg/Logger"
	"github.com/podiumlabs/podium/pkg/io/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	sent   [][]byte
	events chan realtime.Event
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan realtime.Event, 32)}
}

func (f *fakeConn) SendAudio(_ context.Context, frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeConn) Events() <-chan realtime.Event { return f.events }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

func (f *fakeConn) sentFrames() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeDialer struct {
	mu       sync.Mutex
	dials    int
	failures int
	conns    []*fakeConn
}

func (f *fakeDialer) Dial(_ context.Context, _ realtime.SessionConfig) (realtime.Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("provider unavailable")
	}
	c := newFakeConn()
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeDialer) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials
}

func newTestManager(t *testing.T, dialer realtime.Dialer) *Manager {
	t.Helper()
	log := Logger.New(false)
	coord := recovery.New(log, recovery.Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	})
	return NewManager(dialer, coord, "wss://provider.test/dialogue", "key", "verse", log)
}

func crossfireRoster() []types.Participant {
	return []types.Participant{
		{ID: uuid.New(), DisplayName: "Ada", IsAI: false, Team: types.TeamPro, Role: types.RoleFirstSpeaker},
		{ID: uuid.New(), DisplayName: "Marcus", IsAI: true, Team: types.TeamPro, Role: types.RoleSecondSpeaker, Persona: "marcus"},
		{ID: uuid.New(), DisplayName: "Elena", IsAI: true, Team: types.TeamCon, Role: types.RoleFirstSpeaker, Persona: "elena"},
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	dialer := &fakeDialer{}
	mgr := newTestManager(t, dialer)
	id := uuid.New()

	require.NoError(t, mgr.Initialize(context.Background(), id, "topic", crossfireRoster(), Callbacks{}))
	require.NoError(t, mgr.Initialize(context.Background(), id, "topic", crossfireRoster(), Callbacks{}))

	assert.Equal(t, 1, dialer.dialCount(), "second Initialize must not stack a connection")
	assert.True(t, mgr.IsActive(id))
	mgr.End(id)
}

func TestInitializeRetriesTransientDialFailure(t *testing.T) {
	dialer := &fakeDialer{failures: 2}
	mgr := newTestManager(t, dialer)
	id := uuid.New()

	require.NoError(t, mgr.Initialize(context.Background(), id, "topic", crossfireRoster(), Callbacks{}))
	assert.Equal(t, 3, dialer.dialCount())
	assert.True(t, mgr.IsActive(id))
	mgr.End(id)
}

func TestInitializeFailsWhenProviderStaysDown(t *testing.T) {
	dialer := &fakeDialer{failures: 10}
	mgr := newTestManager(t, dialer)
	id := uuid.New()

	err := mgr.Initialize(context.Background(), id, "topic", crossfireRoster(), Callbacks{})
	require.Error(t, err)
	var exhausted *recovery.ExhaustedError
	assert.ErrorAs(t, err, &exhausted)
	assert.False(t, mgr.IsActive(id))
}

func TestForwardAudioReachesProvider(t *testing.T) {
	dialer := &fakeDialer{}
	mgr := newTestManager(t, dialer)
	id := uuid.New()

	require.NoError(t, mgr.Initialize(context.Background(), id, "topic", crossfireRoster(), Callbacks{}))
	mgr.ForwardAudio(id, []byte{1, 2, 3, 4})

	conn := dialer.conns[0]
	assert.Eventually(t, func() bool { return conn.sentFrames() >= 1 },
		time.Second, 5*time.Millisecond)
	mgr.End(id)
}

func TestForwardAudioWithoutSessionIsDropped(t *testing.T) {
	mgr := newTestManager(t, &fakeDialer{})
	// must not panic or dial
	mgr.ForwardAudio(uuid.New(), []byte{1, 2, 3})
}

func TestEventsReachCallbacks(t *testing.T) {
	dialer := &fakeDialer{}
	mgr := newTestManager(t, dialer)
	id := uuid.New()

	var mu sync.Mutex
	var transcripts []string
	var audioFrames int
	cb := Callbacks{
		OnTranscript: func(speaker, text string) {
			mu.Lock()
			transcripts = append(transcripts, speaker+": "+text)
			mu.Unlock()
		},
		OnAudio: func(_ string, _ []byte) {
			mu.Lock()
			audioFrames++
			mu.Unlock()
		},
	}
	require.NoError(t, mgr.Initialize(context.Background(), id, "topic", crossfireRoster(), cb))

	conn := dialer.conns[0]
	conn.events <- realtime.Event{Type: realtime.EventTranscript, Speaker: "Elena", Text: "How do you fund it?"}
	conn.events <- realtime.Event{Type: realtime.EventAudio, Speaker: "Elena", Audio: []byte{9, 9}}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(transcripts) == 1 && audioFrames == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "Elena: How do you fund it?", transcripts[0])
	mu.Unlock()
	mgr.End(id)
}

func TestEndStopsCallbacksAndIsIdempotent(t *testing.T) {
	dialer := &fakeDialer{}
	mgr := newTestManager(t, dialer)
	id := uuid.New()

	var mu sync.Mutex
	fired := 0
	cb := Callbacks{
		OnTranscript: func(_, _ string) { mu.Lock(); fired++; mu.Unlock() },
		OnClosed:     func() { mu.Lock(); fired++; mu.Unlock() },
	}
	require.NoError(t, mgr.Initialize(context.Background(), id, "topic", crossfireRoster(), cb))

	mgr.End(id)
	assert.False(t, mgr.IsActive(id))
	assert.True(t, dialer.conns[0].closed)

	// events arriving after End never reach the callbacks
	mu.Lock()
	after := fired
	mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, after, fired)
	mu.Unlock()

	mgr.End(id) // second End is a no-op
}

func TestCrossfireInstructionsNameAIDebaters(t *testing.T) {
	text := crossfireInstructions("universal basic income", crossfireRoster())
	assert.Contains(t, text, "universal basic income")
	assert.Contains(t, text, "Marcus")
	assert.Contains(t, text, "Elena")
	assert.NotContains(t, text, "Ada (arguing", "humans speak for themselves")
}
