package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	// writeWait is how long to wait for a write to complete
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds what clients may send; they only send control frames
	maxMessageSize = 4 * 1024

	// sendBuffer is roughly half a second of frames at 60 Hz
	sendBuffer = 32
)

// Client is one websocket viewer and the bar count it asked for
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	bars int
	send chan Frame

	// Closed when writePump exits
	done chan struct{}
}

// NewClient creates a client that receives frames reduced to bars bars and
// registers it with the hub
func NewClient(hub *Hub, conn *websocket.Conn, bars int) (*Client, error) {
	client := &Client{
		hub:  hub,
		conn: conn,
		bars: bars,
		send: make(chan Frame, sendBuffer),
		done: make(chan struct{}),
	}
	select {
	case hub.register <- client:
		return client, nil
	case <-hub.stopped:
		return nil, ErrStopped
	}
}

// Run starts the client's read and write pumps
// This should be called in the websocket handler. It returns only once both
// pumps are done with the connection, so the handler may release it.
func (c *Client) Run() {
	go c.writePump()
	c.readPump() // Blocks until connection closes

	// readPump's exit always leads the hub to close send
	<-c.done
}

// readPump reads from the connection to detect disconnection and to
// process pong responses
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopped:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump encodes frames at the client's bar count and writes them
// Only this goroutine writes to the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.done)
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := frame.Encode(c.bars)
			if err != nil {
				c.hub.logger.Debug("encode frame", "error", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
