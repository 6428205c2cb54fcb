package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/welldanyogia/ephemera-backend/internal/metrics"
	"github.com/welldanyogia/ephemera-backend/internal/services"
	"github.com/welldanyogia/ephemera-backend/internal/signal"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeNewPost     MessageType = "new_post"
	MessageTypePostDeleted MessageType = "post_deleted"
	MessageTypeError       MessageType = "error"
)

// GlobalTimeline is the subscription key for every author's posts.
const GlobalTimeline = ""

// WSMessage is a message sent to feed clients
type WSMessage struct {
	Type   MessageType    `json:"type"`
	Author string         `json:"author,omitempty"`
	Post   *signal.Signal `json:"post,omitempty"`
	PostID string         `json:"post_id,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// ClientMessage is a message received from feed clients. An empty Author
// means the global timeline.
type ClientMessage struct {
	Type   MessageType `json:"type"`
	Author string      `json:"author,omitempty"`
}

var _ services.Notifier = (*Hub)(nil)

// Hub maintains the set of active feed clients and fans out post events
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Author subscriptions: author id (or GlobalTimeline) -> set of clients
	subscriptions map[string]map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest
	broadcast   chan *broadcastMessage

	// done is closed when Run returns
	done chan struct{}

	mu     sync.RWMutex
	logger *slog.Logger
}

type subscriptionRequest struct {
	client *Client
	author string
}

type broadcastMessage struct {
	author  string
	message []byte
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscribe:     make(chan *subscriptionRequest),
		unsubscribe:   make(chan *subscriptionRequest),
		broadcast:     make(chan *broadcastMessage, 256),
		done:          make(chan struct{}),
		logger:        logger,
	}
}

// Run starts the hub's event loop and blocks until ctx is cancelled, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.FeedClients.Inc()
			h.debug("feed client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.removeLocked(client)
				metrics.FeedClients.Dec()
			}
			h.mu.Unlock()
			h.debug("feed client unregistered")

		case req := <-h.subscribe:
			h.mu.Lock()
			if h.clients[req.client] {
				if h.subscriptions[req.author] == nil {
					h.subscriptions[req.author] = make(map[*Client]bool)
				}
				h.subscriptions[req.author][req.client] = true
			}
			h.mu.Unlock()
			h.debug("feed client subscribed", slog.String("author", req.author))

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if subscribers, ok := h.subscriptions[req.author]; ok {
				delete(subscribers, req.client)
				if len(subscribers) == 0 {
					delete(h.subscriptions, req.author)
				}
			}
			h.mu.Unlock()
			h.debug("feed client unsubscribed", slog.String("author", req.author))

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.recipientsLocked(msg.author) {
				if client.trySend(msg.message) {
					continue
				}
				// too far behind to catch up
				h.removeLocked(client)
				metrics.FeedClients.Dec()
				if h.logger != nil {
					h.logger.Warn("slow feed client disconnected", slog.String("author", msg.author))
				}
			}
			h.mu.Unlock()
		}
	}
}

// removeLocked drops client from the hub. Caller holds h.mu.
func (h *Hub) removeLocked(client *Client) {
	delete(h.clients, client)
	client.closeSend()
	for author, subscribers := range h.subscriptions {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.subscriptions, author)
		}
	}
}

// recipientsLocked returns the clients following author or the global
// timeline, each once. Caller holds h.mu.
func (h *Hub) recipientsLocked(author string) map[*Client]bool {
	recipients := make(map[*Client]bool, len(h.subscriptions[author])+len(h.subscriptions[GlobalTimeline]))
	for client := range h.subscriptions[GlobalTimeline] {
		recipients[client] = true
	}
	if author != GlobalTimeline {
		for client := range h.subscriptions[author] {
			recipients[client] = true
		}
	}
	return recipients
}

func (h *Hub) shutdown() {
	close(h.done)

	h.mu.Lock()
	n := len(h.clients)
	for client := range h.clients {
		h.removeLocked(client)
	}
	h.mu.Unlock()

	metrics.FeedClients.Sub(float64(n))
	h.debug("feed hub stopped", slog.Int("clients", n))
}

func (h *Hub) debug(msg string, attrs ...any) {
	if h.logger != nil {
		h.logger.Debug(msg, attrs...)
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.closeSend()
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribe subscribes a client to an author, or to every author when
// author is GlobalTimeline
func (h *Hub) Subscribe(client *Client, author string) {
	select {
	case h.subscribe <- &subscriptionRequest{client: client, author: author}:
	case <-h.done:
	}
}

// Unsubscribe reverses Subscribe
func (h *Hub) Unsubscribe(client *Client, author string) {
	select {
	case h.unsubscribe <- &subscriptionRequest{client: client, author: author}:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PostCreated broadcasts a new post to its author's and the global
// subscribers. It never blocks the caller.
func (h *Hub) PostCreated(author string, post signal.Signal) {
	h.publish(author, WSMessage{
		Type:   MessageTypeNewPost,
		Author: author,
		Post:   &post,
	})
}

// PostDeleted broadcasts a deletion
func (h *Hub) PostDeleted(author, postID string) {
	h.publish(author, WSMessage{
		Type:   MessageTypePostDeleted,
		Author: author,
		PostID: postID,
	})
}

func (h *Hub) publish(author string, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("failed to marshal broadcast message", slog.Any("error", err))
		}
		return
	}

	select {
	case h.broadcast <- &broadcastMessage{author: author, message: data}:
	case <-h.done:
	default:
		if h.logger != nil {
			h.logger.Warn("feed broadcast queue full, event dropped",
				slog.String("type", string(msg.Type)),
				slog.String("author", author))
		}
	}
}
