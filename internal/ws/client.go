package ws

import (
	"context"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	sendBuffer   = 64
	pingInterval = 15 * time.Second
	writeTimeout = 10 * time.Second
)

// client is one live socket for a participant. A player may hold
// several sockets at once (multiple tabs); each gets its own client.
type client struct {
	playerID uuid.UUID
	conn     *websocket.Conn
	send     chan []byte
}

func newClient(playerID uuid.UUID, conn *websocket.Conn) *client {
	return &client{
		playerID: playerID,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
	}
}

// writeLoop drains the send channel onto the socket, pinging to keep
// intermediaries from idling the connection out.
func (c *client) writeLoop(ctx context.Context) {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		case <-ping.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// enqueue drops the message if the client's buffer is full; a reader
// that slow will be caught up by the next state sync.
func (c *client) enqueue(msg []byte) {
	select {
	case c.send <- msg:
	default:
	}
}
