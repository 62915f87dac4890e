package monitor

import (
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	subject string
	hub     *Hub
}

func NewClient(conn *websocket.Conn, hub *Hub, subject string) *Client {
	return &Client{
		conn:    conn,
		send:    make(chan []byte, 256),
		hub:     hub,
		subject: subject,
	}
}

// ReadPump drains and discards inbound frames until the peer goes away.
// The feed is one-way; reading is only needed to observe close frames.
func (c *Client) ReadPump() {
	defer c.hub.Unregister(c)

	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warnw("websocket read error", "subject", c.subject, "error", err)
			}
			return
		}
	}
}

func (c *Client) WritePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.hub.logger.Warnw("websocket write error", "subject", c.subject, "error", err)
			c.hub.Unregister(c)
			break
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
