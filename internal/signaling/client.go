package signaling

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const wsWriteWait = 1 * time.Second

// client is one live WebSocket connection. It satisfies presence.Conn; the
// registry stores *client handles and compares them by identity for the
// guarded removal on disconnect.
type client struct {
	id   string
	conn *websocket.Conn

	queue        *sendQueue
	pingInterval time.Duration

	// credential is what the connection authenticated with; the identity
	// resolver may derive the user identity from it.
	credential string

	mu     sync.Mutex
	userID string

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(conn *websocket.Conn, credential string, sendQueueMaxBytes int, pingInterval time.Duration) *client {
	return &client{
		id:           uuid.NewString(),
		conn:         conn,
		queue:        newSendQueue(sendQueueMaxBytes),
		pingInterval: pingInterval,
		credential:   credential,
		done:         make(chan struct{}),
	}
}

func (c *client) ID() string { return c.id }

// setUserID records the identity announcement. Last announcement wins.
func (c *client) setUserID(userID string) {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
}

func (c *client) currentUserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// send enqueues frame for delivery. It never blocks; false means the frame
// was dropped (queue full or connection closing).
func (c *client) send(frame []byte) bool {
	return c.queue.Enqueue(frame)
}

// close tears the connection down. Safe to call multiple times and from any
// goroutine.
func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.queue.Close()
		_ = c.conn.Close()
	})
}

// writeLoop drains the send queue onto the socket. A write failure closes
// the connection; the read loop then observes the error and unwinds.
func (c *client) writeLoop() {
	for {
		frame, ok := c.queue.Dequeue()
		if !ok {
			return
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			c.close()
			return
		}
	}
}

// pingLoop keeps the connection alive. WriteControl is safe to use
// concurrently with the writer goroutine.
func (c *client) pingLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(wsWriteWait)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.close()
				return
			}
		}
	}
}
