package relay

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/landviz/collab-api/models"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 65536
)

// Client is one websocket connection attached to a session room
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	userID    string
	userName  string
	color     models.Color
	deviceID  string
	sessionID string
	joinedAt  time.Time
}

// UserID returns the relay-assigned id of this connection
func (c *Client) UserID() string { return c.userID }

// enqueue hands a marshaled frame to the write pump, dropping the frame if the
// client's buffer is full. Pose traffic is last-value-wins so dropping is safe.
func (c *Client) enqueue(frame []byte) {
	if frame == nil {
		return
	}
	select {
	case c.send <- frame:
	default:
		zap.S().Debugw("dropping frame for slow client", "userId", c.userID)
	}
}

// readPump reads frames off the websocket and hands them to the hub run loop.
// One goroutine per connection; the hub serializes all session mutation.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		var env models.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.S().Debugw("websocket read failed", "userId", c.userID, "error", err)
			}
			return
		}
		c.hub.inbound <- inboundFrame{client: c, env: env}
	}
}

// writePump consumes the send channel and keeps the connection alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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
