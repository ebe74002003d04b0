package ws

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"support-chat/errors"
	"support-chat/observability"
)

// Conn wraps one websocket connection with the bounded outbound queue the
// registry delivers into. A reader goroutine (the server's readLoop) and
// this writer pump are the only two tasks touching the socket.
type Conn struct {
	id           string
	sock         *websocket.Conn
	log          *slog.Logger
	stats        *observability.Stats
	out          chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
	pingInterval time.Duration
}

func newConn(sock *websocket.Conn, log *slog.Logger, stats *observability.Stats,
	bufferSize int, writeTimeout, pingInterval time.Duration) *Conn {
	return &Conn{
		id:           uuid.NewString(),
		sock:         sock,
		log:          log,
		stats:        stats,
		out:          make(chan []byte, bufferSize),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
	}
}

func (c *Conn) ID() string { return c.id }

// Deliver queues a frame without ever blocking the caller. A full buffer
// means the consumer cannot keep up: the connection is disconnected and
// the client recovers missed state through replay. Live delivery is
// at-most-once, not exactly-once.
func (c *Conn) Deliver(frame []byte) error {
	select {
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
	}
	select {
	case c.out <- frame:
		return nil
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
		c.stats.DeliveriesDropped.Add(1)
		c.Close()
		return errors.ErrSlowConsumer
	}
}

// Close is safe to call from any goroutine and more than once. Closing
// the socket unblocks the read loop, which handles unregistration.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.sock.Close()
	})
}

// writePump drains the outbound queue onto the socket and keeps the
// transport alive with periodic pings. Runs until Close or a write error.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.out:
			_ = c.sock.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.sock.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("Write failed, closing connection", "connection_id", c.id, "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.writeTimeout)
			if err := c.sock.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.log.Debug("Ping failed, closing connection", "connection_id", c.id, "error", err)
				c.Close()
				return
			}
		}
	}
}
