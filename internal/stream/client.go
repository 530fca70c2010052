package stream

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// client wraps one websocket connection. Writes happen only from the
// handler goroutine; the read pump only consumes control frames.
type client struct {
	conn   *websocket.Conn
	ip     string
	logger *slog.Logger

	messagesSent int64
}

// sendJSON writes v as a text frame.
func (c *client) sendJSON(v any) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	c.messagesSent++
	return nil
}

// ping sends a keepalive ping frame.
func (c *client) ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// close sends a close frame with the given code and reason, then drops the
// connection.
func (c *client) close(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		c.logger.Debug("close frame not sent", "remote_ip", c.ip, "error", err)
	}
	c.conn.Close()
}

// readPump discards incoming data frames and keeps the read deadline
// moving on pongs. done is closed when the peer goes away.
func (c *client) readPump(pongWait time.Duration, done chan<- struct{}) {
	defer close(done)
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
	}
}
