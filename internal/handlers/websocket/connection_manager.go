package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/podiumlabs/podium/pkg/Logger"
)

// ConnectionManager tracks live websocket connections and sweeps out the ones
// that went quiet without a close frame.
type ConnectionManager struct {
	logger        *Logger.Logger
	conns         map[uuid.UUID]*ClientConn
	mutex         sync.RWMutex
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	connTimeout   time.Duration

	// onEvict runs outside the lock when the sweep drops a connection, so the
	// handler can tear down the debate session that connection owned.
	onEvict func(connID uuid.UUID)
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(logger *Logger.Logger, onEvict func(connID uuid.UUID)) *ConnectionManager {
	cm := &ConnectionManager{
		logger:      logger,
		conns:       make(map[uuid.UUID]*ClientConn),
		stopCleanup: make(chan struct{}),
		connTimeout: 30 * time.Minute,
		onEvict:     onEvict,
	}

	cm.startCleanupRoutine()
	return cm
}

// Register registers a new connection
func (cm *ConnectionManager) Register(conn *ClientConn) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	cm.conns[conn.ConnID] = conn
	cm.logger.Infof("Registered connection %s for user %s", conn.ConnID, conn.UserID)
}

// Unregister removes and closes a connection
func (cm *ConnectionManager) Unregister(connID uuid.UUID) {
	cm.mutex.Lock()
	conn, exists := cm.conns[connID]
	if exists {
		delete(cm.conns, connID)
	}
	cm.mutex.Unlock()

	if exists {
		cm.logger.Infof("Unregistering connection %s for user %s", connID, conn.UserID)
		if err := conn.Close(); err != nil {
			cm.logger.Errorf("Error closing connection %s: %v", connID, err)
		}
	}
}

// Get retrieves a connection by id
func (cm *ConnectionManager) Get(connID uuid.UUID) (*ClientConn, bool) {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	conn, exists := cm.conns[connID]
	return conn, exists
}

// Count returns the number of live connections
func (cm *ConnectionManager) Count() int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return len(cm.conns)
}

// SetTimeout sets the idle timeout for the sweep
func (cm *ConnectionManager) SetTimeout(timeout time.Duration) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	cm.connTimeout = timeout
}

func (cm *ConnectionManager) startCleanupRoutine() {
	cm.cleanupTicker = time.NewTicker(5 * time.Minute)

	go func() {
		for {
			select {
			case <-cm.cleanupTicker.C:
				cm.cleanupExpired()
			case <-cm.stopCleanup:
				cm.cleanupTicker.Stop()
				return
			}
		}
	}()
}

func (cm *ConnectionManager) cleanupExpired() {
	cm.mutex.Lock()
	expired := make([]*ClientConn, 0)
	for id, conn := range cm.conns {
		if conn.IsExpired(cm.connTimeout) {
			expired = append(expired, conn)
			delete(cm.conns, id)
		}
	}
	cm.mutex.Unlock()

	for _, conn := range expired {
		cm.logger.Infof("Cleaning up expired connection %s", conn.ConnID)
		conn.Close()
		if cm.onEvict != nil {
			cm.onEvict(conn.ConnID)
		}
	}

	if len(expired) > 0 {
		cm.logger.Infof("Cleaned up %d expired connections", len(expired))
	}
}

// Close shuts down the connection manager and every connection it tracks
func (cm *ConnectionManager) Close() error {
	close(cm.stopCleanup)

	cm.mutex.Lock()
	conns := make([]*ClientConn, 0, len(cm.conns))
	for _, conn := range cm.conns {
		conns = append(conns, conn)
	}
	cm.conns = make(map[uuid.UUID]*ClientConn)
	cm.mutex.Unlock()

	for _, conn := range conns {
		if err := conn.Close(); err != nil {
			cm.logger.Errorf("Error closing connection %s: %v", conn.ConnID, err)
		}
	}

	cm.logger.Infof("Connection manager closed")
	return nil
}
