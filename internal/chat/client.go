package chat

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pro-chat/internal/identity"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.
	maxMessageSize = 4096                // Maximum frame size allowed from peer.
)

// Client is the middleman between one websocket connection and the hub.
// Its uuid ChannelID is the channel handle presence bookkeeping matches on.
type Client struct {
	ChannelID string
	Identity  identity.Participant
	Name      string

	hub  *Hub
	conn *websocket.Conn

	// Buffered channel of outbound payloads. All sends go through enqueue,
	// which holds mu, so a push racing teardown is dropped rather than
	// hitting a closed channel.
	Send chan []byte

	mu     sync.Mutex
	closed bool
}

// enqueue hands a payload to the write pump without blocking. A full buffer
// means the peer is too slow; the payload is dropped (live delivery is
// best-effort, the durable copy already exists). A shut-down channel drops
// too.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// shutdown closes Send exactly once. Pushes arriving after this are dropped
// by enqueue instead of panicking on the closed channel.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// push marshals and enqueues a server event.
func (c *Client) push(event interface{}) bool {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("marshal event for %s: %v", c.Identity, err)
		return false
	}
	return c.enqueue(data)
}

// closeConn tears down the underlying socket; the read pump then exits and
// runs the normal unregister path.
func (c *Client) closeConn() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// ReadPump pumps frames from the websocket connection to the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.hub.presence.Touch(c)
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("read error from %s (%s): %v", c.Identity, c.Name, err)
			}
			break
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("bad frame from %s: %v", c.Identity, err)
			continue
		}

		c.hub.presence.Touch(c)
		c.hub.Frames <- &InboundFrame{Client: c, Frame: frame}
	}
}

// WritePump pumps payloads from the Send channel to the websocket
// connection and keeps the heartbeat going.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(data)

			// Drain anything already queued in one write.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
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
