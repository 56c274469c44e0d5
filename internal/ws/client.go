package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the deadline on a single outbound write.
	writeWait = 10 * time.Second

	// pongWait is how long the read side tolerates silence; pongs and
	// any data message push it out.
	pongWait = 60 * time.Second

	// pingPeriod must be under pongWait so the peer always has a ping
	// to answer before the deadline.
	pingPeriod = (pongWait * 9) / 10

	// firstMessageWait bounds how long a fresh connection may sit
	// silent before its reconnect window closes.
	firstMessageWait = 5 * time.Second

	maxMessageSize = 1024
)

// Client wraps one WebSocket connection with a write mutex, so the
// game's broadcasts and the ping ticker never interleave frames. It
// implements the game's Conn interface.
type Client struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

func newClient(conn *websocket.Conn) *Client {
	c := &Client{
		conn:   conn,
		closed: make(chan struct{}),
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.pingLoop()
	return c
}

// WriteJSON sends one JSON message under the write mutex.
func (c *Client) WriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

// Close shuts the connection down; safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

// closeWithCode sends a close frame with an application close code
// before tearing the connection down.
func (c *Client) closeWithCode(code int, reason string) {
	c.writeMu.Lock()
	deadline := time.Now().Add(writeWait)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	c.writeMu.Unlock()
	_ = c.Close()
}

// readJSON reads the next client message, refreshing the read
// deadline.
func (c *Client) readJSON(v interface{}, wait time.Duration) error {
	if err := c.conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return err
	}
	return c.conn.ReadJSON(v)
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}
