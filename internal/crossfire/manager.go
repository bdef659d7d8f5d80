package crossfire

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/podiumlabs/podium/internal/recovery"
	"github.com/podiumlabs/podium/internal/types"
	"github.com/podiumlabs/podium/pkg/Logger"
	"github.com/podiumlabs/podium/pkg/io/realtime"
	"github.com/smallnest/ringbuffer"
)

const (
	// micBufferBytes holds roughly two seconds of 16kHz 16-bit mono audio.
	micBufferBytes = 64 * 1024
	// pumpFrameBytes is the block size forwarded to the provider per write.
	pumpFrameBytes = 4 * 1024
)

// Callbacks receive crossfire turn artifacts. Nil funcs are skipped. No
// callback fires after End returns for the session.
type Callbacks struct {
	OnTranscript func(speaker, text string)
	OnAudio      func(speaker string, audio []byte)
	OnClosed     func()
}

// Manager runs the open-dialogue sub-sessions that replace turn-taking during
// crossfire phases. One provider connection per debate session at a time.
type Manager struct {
	dialer      realtime.Dialer
	coordinator *recovery.Coordinator
	logger      *Logger.Logger
	providerURL string
	providerKey string
	voice       string

	mu       sync.Mutex
	sessions map[uuid.UUID]*dialogue
}

func NewManager(dialer realtime.Dialer, coordinator *recovery.Coordinator, providerURL, providerKey, voice string, logger *Logger.Logger) *Manager {
	return &Manager{
		dialer:      dialer,
		coordinator: coordinator,
		logger:      logger,
		providerURL: providerURL,
		providerKey: providerKey,
		voice:       voice,
		sessions:    make(map[uuid.UUID]*dialogue),
	}
}

type dialogue struct {
	conn      realtime.Conn
	mic       *ringbuffer.RingBuffer
	callbacks Callbacks

	stopOnce sync.Once
	stopped  chan struct{}
	done     sync.WaitGroup
}

// Initialize opens the dialogue session for sessionID. Calling it again while
// the session is live is a no-op, so re-entry from a repeated phase event
// cannot stack connections.
func (m *Manager) Initialize(ctx context.Context, sessionID uuid.UUID, topic string, roster []types.Participant, cb Callbacks) error {
	m.mu.Lock()
	if _, live := m.sessions[sessionID]; live {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	cfg := realtime.SessionConfig{
		URL:          m.providerURL,
		APIKey:       m.providerKey,
		Instructions: crossfireInstructions(topic, roster),
		Voice:        m.voice,
	}

	var conn realtime.Conn
	err := m.coordinator.Execute(ctx, sessionID, recovery.CategoryCrossfireInit,
		func(ctx context.Context) error {
			c, err := m.dialer.Dial(ctx, cfg)
			if err != nil {
				return err
			}
			conn = c
			return nil
		})
	if err != nil {
		return fmt.Errorf("crossfire init: %w", err)
	}

	mic := ringbuffer.New(micBufferBytes)
	mic.SetBlocking(true)

	d := &dialogue{
		conn:      conn,
		mic:       mic,
		callbacks: cb,
		stopped:   make(chan struct{}),
	}

	m.mu.Lock()
	if _, raced := m.sessions[sessionID]; raced {
		m.mu.Unlock()
		conn.Close()
		return nil
	}
	m.sessions[sessionID] = d
	m.mu.Unlock()

	d.done.Add(2)
	go m.pumpMic(sessionID, d)
	go m.readEvents(sessionID, d)
	return nil
}

// IsActive reports whether a dialogue is live for sessionID.
func (m *Manager) IsActive(sessionID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[sessionID]
	return ok
}

// ForwardAudio queues a human microphone frame toward the provider. Frames
// arriving while no dialogue is live are dropped silently; the client keeps
// sending during phase boundaries.
func (m *Manager) ForwardAudio(sessionID uuid.UUID, frame []byte) {
	m.mu.Lock()
	d, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return
	}
	if _, err := d.mic.TryWrite(frame); err != nil {
		// Buffer full means the pump fell behind the mic; dropping the frame
		// keeps latency bounded.
		m.logger.Debugf("session %s: mic frame dropped: %v", sessionID, err)
	}
}

// End tears down the dialogue for sessionID and waits for its goroutines to
// drain. Safe to call when nothing is live, and safe to call twice.
func (m *Manager) End(sessionID uuid.UUID) {
	m.mu.Lock()
	d, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	d.stopOnce.Do(func() {
		close(d.stopped)
		d.mic.CloseWithError(io.EOF)
		if err := d.conn.Close(); err != nil {
			m.logger.Debugf("session %s: crossfire close: %v", sessionID, err)
		}
	})
	d.done.Wait()
}

// EndAll tears down every live dialogue; used on server shutdown.
func (m *Manager) EndAll() {
	m.mu.Lock()
	ids := make([]uuid.UUID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.End(id)
	}
}

func (m *Manager) pumpMic(sessionID uuid.UUID, d *dialogue) {
	defer d.done.Done()
	buf := make([]byte, pumpFrameBytes)
	for {
		n, err := d.mic.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		if err := d.conn.SendAudio(context.Background(), buf[:n]); err != nil {
			m.logger.Warnf("session %s: crossfire audio forward: %v", sessionID, err)
			return
		}
	}
}

func (m *Manager) readEvents(sessionID uuid.UUID, d *dialogue) {
	defer d.done.Done()
	for ev := range d.conn.Events() {
		select {
		case <-d.stopped:
			return
		default:
		}

		switch ev.Type {
		case realtime.EventTranscript:
			if d.callbacks.OnTranscript != nil {
				d.callbacks.OnTranscript(ev.Speaker, ev.Text)
			}
		case realtime.EventAudio:
			if d.callbacks.OnAudio != nil {
				d.callbacks.OnAudio(ev.Speaker, ev.Audio)
			}
		case realtime.EventError:
			m.logger.Warnf("session %s: crossfire provider error: %s", sessionID, ev.Text)
		case realtime.EventClosed:
			if d.callbacks.OnClosed != nil {
				d.callbacks.OnClosed()
			}
			return
		}
	}
}

// crossfireInstructions builds the provider system prompt from the debate
// topic and the AI participants expected to speak.
func crossfireInstructions(topic string, roster []types.Participant) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are moderating a live crossfire exchange in a Public Forum debate on the topic: %q. ", topic)
	b.WriteString("Participants question each other directly in short conversational turns. ")

	var ai []string
	for _, p := range roster {
		if p.IsAI {
			ai = append(ai, fmt.Sprintf("%s (arguing %s)", p.DisplayName, p.Team))
		}
	}
	if len(ai) > 0 {
		fmt.Fprintf(&b, "Voice the following debaters: %s. ", strings.Join(ai, ", "))
	}
	b.WriteString("Keep every turn under three sentences and always respond to the point just raised.")
	return b.String()
}
