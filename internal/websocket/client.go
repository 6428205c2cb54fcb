package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/welldanyogia/ephemera-backend/internal/base37"
)

const (
	feedWriteTimeout = 10 * time.Second
	feedIdleTimeout  = 60 * time.Second
	// keepAlive must stay below feedIdleTimeout so a healthy peer always
	// answers a ping before its read deadline expires.
	keepAlive = feedIdleTimeout * 9 / 10

	// A subscription frame carries at most one author id.
	maxSubscriptionFrame = 512
	sendBuffer           = 256
)

// Client represents a live feed connection
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger

	// mu guards closed and sends on send
	mu     sync.Mutex
	closed bool
}

// NewClient creates a new Client instance
func NewClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		logger: logger,
	}
}

// Serve upgrades the request, registers the connection with hub and runs
// its pumps. It returns once the connection is handed off.
func Serve(hub *Hub, upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request, logger *slog.Logger) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := NewClient(hub, conn, logger)
	hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
	return nil
}

// ReadPump reads subscription requests until the connection closes, then
// unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxSubscriptionFrame)
	c.extendReadDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		c.handleMessage(frame)
	}
}

// WritePump drains queued events onto the connection and pings the peer
// while idle. A closed send channel means the hub dropped the client.
func (c *Client) WritePump() {
	ping := time.NewTicker(keepAlive)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				c.write(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"))
				return
			}
			if err := c.write(websocket.TextMessage, event); err != nil {
				return
			}

		case <-ping.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
	return c.conn.WriteMessage(messageType, data)
}

func (c *Client) extendReadDeadline() {
	c.conn.SetReadDeadline(time.Now().Add(feedIdleTimeout))
}

func (c *Client) logReadError(err error) {
	if c.logger == nil {
		return
	}
	if !websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
		return
	}
	c.logger.Warn("feed connection dropped",
		slog.String("remote", c.conn.RemoteAddr().String()),
		slog.Any("error", err))
}

// handleMessage applies one subscription request. An empty author selects
// the global timeline.
func (c *Client) handleMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("invalid message format")
		return
	}

	if msg.Author != GlobalTimeline && !base37.IsCanonical(msg.Author) {
		c.sendError("invalid author")
		return
	}

	switch msg.Type {
	case MessageTypeSubscribe:
		c.hub.Subscribe(c, msg.Author)
	case MessageTypeUnsubscribe:
		c.hub.Unsubscribe(c, msg.Author)
	default:
		c.sendError("unknown message type")
	}
}

func (c *Client) sendError(errMsg string) {
	c.enqueue(WSMessage{Type: MessageTypeError, Error: errMsg})
}

// enqueue queues msg for the write pump, dropping it when the client is
// too far behind.
func (c *Client) enqueue(msg WSMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	return c.trySend(data)
}

// trySend queues data without blocking. It reports false when the buffer
// is full or the hub has already dropped the client.
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend closes the send channel once, which tells the write pump to
// hang up.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
