package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/podiumlabs/podium/internal/auth"
	"github.com/podiumlabs/podium/internal/config"
	"github.com/podiumlabs/podium/internal/orchestrator"
	"github.com/podiumlabs/podium/pkg/Logger"
)

// DebateHandler upgrades websocket connections and routes client commands to
// the debate session owned by each connection. One connection, one session.
type DebateHandler struct {
	logger            *Logger.Logger
	registry          *orchestrator.Registry
	validator         *auth.Validator
	config            *config.Settings
	connectionManager *ConnectionManager
	upgrader          websocket.Upgrader

	mu             sync.Mutex
	sessionsByConn map[uuid.UUID]uuid.UUID
}

// NewDebateHandler creates a new websocket debate handler
func NewDebateHandler(
	logger *Logger.Logger,
	registry *orchestrator.Registry,
	validator *auth.Validator,
	cfg *config.Settings,
) *DebateHandler {
	h := &DebateHandler{
		logger:         logger,
		registry:       registry,
		validator:      validator,
		config:         cfg,
		sessionsByConn: make(map[uuid.UUID]uuid.UUID),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: restrict origins before exposing this publicly
				return true
			},
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	h.connectionManager = NewConnectionManager(logger, h.teardownSession)
	return h
}

// RegisterRoutes registers websocket routes
func (h *DebateHandler) RegisterRoutes(router gin.IRouter) {
	ws := router.Group("/ws")
	{
		ws.GET("/debate", h.HandleDebateSocket)
		ws.GET("/stats", h.HandleStats)
	}
}

// HandleDebateSocket runs one client connection for its whole lifetime. The
// debate session is created on the first start or load command and torn down
// synchronously when the socket drops.
func (h *DebateHandler) HandleDebateSocket(c *gin.Context) {
	userID, ok := h.authenticate(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClientConn(userID, conn)
	h.connectionManager.Register(client)
	defer func() {
		h.teardownSession(client.ConnID)
		h.connectionManager.Unregister(client.ConnID)
	}()

	client.SendMessage(MessageTypeInit, "", gin.H{
		"status": "connected",
		"userId": userID.String(),
	}, uuid.Nil)

	h.readLoop(client)
}

func (h *DebateHandler) authenticate(c *gin.Context) (uuid.UUID, bool) {
	token := c.Query("token")
	if token != "" {
		claims, err := h.validator.ValidateToken(token)
		if err != nil {
			h.logger.Debugf("websocket token rejected: %v", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return uuid.Nil, false
		}
		userID, _ := uuid.Parse(claims.UserID)
		return userID, true
	}

	if h.config.Debug {
		// Unauthenticated connections are for local development only.
		if parsed, err := uuid.Parse(c.Query("userId")); err == nil {
			h.logger.Warnf("unauthenticated websocket user %s (debug mode)", parsed)
			return parsed, true
		}
		return uuid.New(), true
	}

	c.JSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
	return uuid.Nil, false
}

func (h *DebateHandler) readLoop(client *ClientConn) {
	for {
		messageType, data, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Errorf("WebSocket read error: %v", err)
			} else {
				h.logger.Infof("WebSocket connection closed for %s", client.ConnID)
			}
			return
		}

		client.Touch()

		switch messageType {
		case websocket.TextMessage:
			h.handleCommand(client, data)
		case websocket.BinaryMessage:
			// Binary frames are crossfire microphone audio.
			if s := h.sessionFor(client); s != nil {
				s.ForwardAudio(data)
			}
		}
	}
}

func (h *DebateHandler) handleCommand(client *ClientConn, data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Errorf("Failed to unmarshal WebSocket message: %v", err)
		client.SendError("INVALID_MESSAGE", "Invalid message format")
		return
	}

	ctx := context.Background()

	switch msg.Type {
	case MessageTypeStartDebate:
		h.handleStart(ctx, client, msg.Data)

	case MessageTypeLoadDebate:
		h.handleLoad(ctx, client, msg.Data)

	case MessageTypeSaveDebate:
		if s := h.requireSession(client); s != nil {
			s.Save(ctx)
		}

	case MessageTypePause:
		if s := h.requireSession(client); s != nil {
			s.Pause()
		}

	case MessageTypeResume:
		if s := h.requireSession(client); s != nil {
			s.Resume()
		}

	case MessageTypeSkipTurn:
		if s := h.requireSession(client); s != nil {
			s.SkipTurn()
		}

	case MessageTypeEndDebate:
		if s := h.requireSession(client); s != nil {
			s.EndDebate()
		}

	case MessageTypeUtterance:
		h.handleUtterance(ctx, client, msg.Data)

	default:
		h.logger.Warnf("Unknown message type: %s", msg.Type)
		client.SendError("UNKNOWN_MESSAGE_TYPE", string(msg.Type))
	}
}

func (h *DebateHandler) handleStart(ctx context.Context, client *ClientConn, data json.RawMessage) {
	if h.sessionFor(client) != nil {
		client.SendError("DEBATE_ACTIVE", "A debate is already running on this connection")
		return
	}

	var req StartDebateRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Topic == "" {
		client.SendError("INVALID_REQUEST", "start_debate needs a topic and a roster")
		return
	}

	session := h.registry.Create(client.UserID, newConnDispatcher(h.logger, client), req.Difficulty)
	if err := session.Start(ctx, req.Topic, req.Roster); err != nil {
		h.registry.Remove(session.ID)
		client.SendError("INVALID_ROSTER", err.Error())
		return
	}

	h.bind(client.ConnID, session.ID)
}

func (h *DebateHandler) handleLoad(ctx context.Context, client *ClientConn, data json.RawMessage) {
	if h.sessionFor(client) != nil {
		client.SendError("DEBATE_ACTIVE", "A debate is already running on this connection")
		return
	}

	var req LoadDebateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		client.SendError("INVALID_REQUEST", "load_debate needs a debateId")
		return
	}
	debateID, err := uuid.Parse(req.DebateID)
	if err != nil {
		client.SendMessage(MessageTypeEvent, orchestrator.Name(orchestrator.LoadAck{}),
			orchestrator.LoadAck{OK: false, Reason: "malformed debate id"}, uuid.Nil)
		return
	}

	session, err := h.registry.Load(ctx, client.UserID, debateID, newConnDispatcher(h.logger, client))
	if err != nil {
		reason := "storage unavailable"
		switch {
		case errors.Is(err, orchestrator.ErrUnknownDebate):
			reason = "no saved debate with that id"
		case errors.Is(err, orchestrator.ErrDebateLive):
			reason = "debate is already live on another connection"
		}
		client.SendMessage(MessageTypeEvent, orchestrator.Name(orchestrator.LoadAck{}),
			orchestrator.LoadAck{OK: false, Reason: reason}, uuid.Nil)
		return
	}

	h.bind(client.ConnID, session.ID)
	client.SendMessage(MessageTypeEvent, orchestrator.Name(orchestrator.LoadAck{}),
		orchestrator.LoadAck{OK: true, ID: session.ID, Topic: session.Topic()}, session.ID)
}

func (h *DebateHandler) handleUtterance(ctx context.Context, client *ClientConn, data json.RawMessage) {
	s := h.requireSession(client)
	if s == nil {
		return
	}

	var msg UtteranceMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Text == "" {
		client.SendError("INVALID_REQUEST", "utterance needs text")
		return
	}

	if err := s.SubmitUtterance(ctx, msg.Text, msg.Audio); err != nil {
		if errors.Is(err, orchestrator.ErrNotYourTurn) {
			client.SendError("NOT_YOUR_TURN", "It is not your turn to speak")
			return
		}
		client.SendError("UTTERANCE_REJECTED", err.Error())
	}
}

// HandleStats provides connection statistics
func (h *DebateHandler) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"data": gin.H{
			"connections": h.connectionManager.Count(),
			"sessions":    h.registry.Count(),
		},
	})
}

func (h *DebateHandler) bind(connID, sessionID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessionsByConn[connID] = sessionID
}

func (h *DebateHandler) sessionFor(client *ClientConn) *orchestrator.Session {
	h.mu.Lock()
	sessionID, ok := h.sessionsByConn[client.ConnID]
	h.mu.Unlock()
	if !ok {
		return nil
	}
	return h.registry.Get(sessionID)
}

func (h *DebateHandler) requireSession(client *ClientConn) *orchestrator.Session {
	s := h.sessionFor(client)
	if s == nil {
		client.SendError("NO_DEBATE", "No debate is running on this connection")
	}
	return s
}

// teardownSession destroys the debate session a connection owned. Runs before
// the disconnect completes, so no orphaned timers or provider sockets remain.
func (h *DebateHandler) teardownSession(connID uuid.UUID) {
	h.mu.Lock()
	sessionID, ok := h.sessionsByConn[connID]
	if ok {
		delete(h.sessionsByConn, connID)
	}
	h.mu.Unlock()
	if ok {
		h.registry.Remove(sessionID)
	}
}

// Close shuts down the handler and every session it still tracks
func (h *DebateHandler) Close() error {
	h.registry.CloseAll()
	return h.connectionManager.Close()
}
