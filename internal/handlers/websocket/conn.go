package websocket

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ClientConn wraps one websocket connection. All writes go through the mutex;
// the read loop stays single-threaded in the handler.
type ClientConn struct {
	UserID      uuid.UUID
	ConnID      uuid.UUID
	Conn        *websocket.Conn
	ConnectedAt time.Time

	mutex      sync.RWMutex
	lastActive time.Time
	isActive   bool
}

// NewClientConn creates a new connection wrapper
func NewClientConn(userID uuid.UUID, conn *websocket.Conn) *ClientConn {
	return &ClientConn{
		UserID:      userID,
		ConnID:      uuid.New(),
		Conn:        conn,
		ConnectedAt: time.Now(),
		lastActive:  time.Now(),
		isActive:    true,
	}
}

// SendMessage sends a typed message to the client
func (c *ClientConn) SendMessage(msgType MessageType, event string, data interface{}, sessionID uuid.UUID) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.isActive {
		return fmt.Errorf("connection not active")
	}

	msg := WSMessage{
		Type:      msgType,
		Event:     event,
		Data:      data,
		Timestamp: time.Now(),
	}
	if sessionID != uuid.Nil {
		msg.SessionID = sessionID.String()
	}

	return c.Conn.WriteJSON(msg)
}

// SendError sends an error message to the client
func (c *ClientConn) SendError(code, message string) error {
	return c.SendMessage(MessageTypeError, "", ErrorMessage{Code: code, Message: message}, uuid.Nil)
}

// Touch updates the last activity timestamp
func (c *ClientConn) Touch() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.lastActive = time.Now()
}

// LastActive returns the last activity timestamp
func (c *ClientConn) LastActive() time.Time {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.lastActive
}

// IsAlive checks if the connection is active
func (c *ClientConn) IsAlive() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.isActive
}

// IsExpired checks if the connection has expired based on inactivity
func (c *ClientConn) IsExpired(timeout time.Duration) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return time.Since(c.lastActive) > timeout
}

// Close marks the connection inactive and closes the socket
func (c *ClientConn) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.isActive {
		return nil
	}
	c.isActive = false
	return c.Conn.Close()
}
