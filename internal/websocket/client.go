package websocket

import (
	"time"

	gw "github.com/gorilla/websocket"
)

type Conn = gw.Conn

// NewClient wraps an upgraded connection as a member of room. The
// onMessage callback (optional) runs for every inbound frame, on the
// read goroutine.
func NewClient(hub *Hub, conn *Conn, room string, onMessage func(data []byte)) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 256),
		room:      room,
		onMessage: onMessage,
	}
}

// Start registers the client with the hub and launches both pumps.
func (c *Client) Start() {
	c.hub.register <- c
	go c.writePump()
	go c.readPump()
}

// Send queues a frame for this client only, giving up after a second
// rather than blocking the caller.
func (c *Client) Send(data []byte) {
	select {
	case c.send <- data:
	case <-time.After(1 * time.Second):
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if c.onMessage != nil {
			c.onMessage(data)
		}
	}
}

func (c *Client) writePump() {
	defer func() { _ = c.conn.Close() }()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(gw.TextMessage, msg); err != nil {
			return
		}
	}
}
