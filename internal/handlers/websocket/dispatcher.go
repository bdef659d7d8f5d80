package websocket

import (
	"github.com/google/uuid"
	"github.com/podiumlabs/podium/internal/orchestrator"
	"github.com/podiumlabs/podium/pkg/Logger"
)

// connDispatcher fans orchestrator events onto one client connection. Audio
// payloads ride as base64 inside the JSON envelope.
type connDispatcher struct {
	logger *Logger.Logger
	conn   *ClientConn
}

func newConnDispatcher(logger *Logger.Logger, conn *ClientConn) orchestrator.Dispatcher {
	return &connDispatcher{logger: logger, conn: conn}
}

// Dispatch implements orchestrator.Dispatcher
func (d *connDispatcher) Dispatch(sessionID uuid.UUID, ev orchestrator.Event) {
	if err := d.conn.SendMessage(MessageTypeEvent, orchestrator.Name(ev), ev, sessionID); err != nil {
		// A dead socket is cleaned up by the read loop; dropping the event is
		// all there is to do here.
		d.logger.Debugf("connection %s: drop %s: %v", d.conn.ConnID, orchestrator.Name(ev), err)
	}
}
