package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/podiumlabs/podium/pkg/Logger"
)

// EventType classifies events coming out of a live dialogue session.
type EventType string

const (
	EventTranscript EventType = "transcript"
	EventAudio      EventType = "audio"
	EventError      EventType = "error"
	EventClosed     EventType = "closed"
)

// Event is one provider-side turn artifact: a transcribed utterance, an audio
// frame, or a terminal signal.
type Event struct {
	Type    EventType
	Speaker string
	Text    string
	Audio   []byte
}

// SessionConfig describes one dialogue session to open with the provider.
type SessionConfig struct {
	URL          string
	APIKey       string
	Instructions string
	Voice        string
}

// Conn is a live bidirectional dialogue session. Audio frames go in; turn
// events come out on Events until the session closes.
type Conn interface {
	SendAudio(ctx context.Context, frame []byte) error
	Events() <-chan Event
	Close() error
}

// Dialer opens dialogue sessions. Swappable for tests.
type Dialer interface {
	Dial(ctx context.Context, cfg SessionConfig) (Conn, error)
}

// WSDialer is the gorilla/websocket implementation of Dialer.
type WSDialer struct {
	logger *Logger.Logger
	dialer *websocket.Dialer
}

func NewWSDialer(logger *Logger.Logger) *WSDialer {
	return &WSDialer{logger: logger, dialer: websocket.DefaultDialer}
}

// wire shapes for the provider's JSON frames
type sessionInit struct {
	Type         string `json:"type"`
	Instructions string `json:"instructions"`
	Voice        string `json:"voice,omitempty"`
}

type providerFrame struct {
	Type    string `json:"type"`
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text,omitempty"`
	Audio   string `json:"audio,omitempty"` // base64
	Message string `json:"message,omitempty"`
}

func (d *WSDialer) Dial(ctx context.Context, cfg SessionConfig) (Conn, error) {
	header := http.Header{}
	if cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	ws, _, err := d.dialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("realtime dial %s: %w", cfg.URL, err)
	}

	init := sessionInit{Type: "session.start", Instructions: cfg.Instructions, Voice: cfg.Voice}
	if err := ws.WriteJSON(init); err != nil {
		ws.Close()
		return nil, fmt.Errorf("realtime session init: %w", err)
	}

	c := &wsConn{
		logger: d.logger,
		ws:     ws,
		events: make(chan Event, 32),
	}
	go c.readLoop()
	return c, nil
}

type wsConn struct {
	logger *Logger.Logger
	ws     *websocket.Conn

	writeMu sync.Mutex
	events  chan Event

	closeOnce sync.Once
	closed    chan struct{}
}

func (c *wsConn) SendAudio(ctx context.Context, frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *wsConn) Events() <-chan Event {
	return c.events
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session end"))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

// readLoop owns the events channel; it closes it when the socket dies.
func (c *wsConn) readLoop() {
	defer close(c.events)
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warnf("realtime read: %v", err)
			}
			c.events <- Event{Type: EventClosed}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			c.events <- Event{Type: EventAudio, Audio: data}
		case websocket.TextMessage:
			var frame providerFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				c.logger.Warnf("realtime: bad frame: %v", err)
				continue
			}
			c.dispatch(frame)
		}
	}
}

func (c *wsConn) dispatch(frame providerFrame) {
	switch frame.Type {
	case "transcript", "response.text":
		c.events <- Event{Type: EventTranscript, Speaker: frame.Speaker, Text: frame.Text}
	case "audio", "response.audio":
		audio, err := base64.StdEncoding.DecodeString(frame.Audio)
		if err != nil {
			c.logger.Warnf("realtime: bad audio payload: %v", err)
			return
		}
		c.events <- Event{Type: EventAudio, Speaker: frame.Speaker, Audio: audio}
	case "error":
		c.events <- Event{Type: EventError, Text: frame.Message}
	default:
		c.logger.Debugf("realtime: unhandled frame type %q", frame.Type)
	}
}
