package websocket

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/preetsinghmakkar/groupcall/internal/metrics"
	"github.com/preetsinghmakkar/groupcall/internal/models"
	"github.com/rs/zerolog"
)

const (
	// GlobalTopic carries session list changes for lobby views.
	GlobalTopic = "sessions"

	sessionTopicPrefix = "session/"

	DefaultSendBuffer = 256
)

// SessionTopic is the per-session channel for state, transcript and signaling events.
func SessionTopic(id uuid.UUID) string {
	return sessionTopicPrefix + id.String()
}

func topicKind(topic string) string {
	if strings.HasPrefix(topic, sessionTopicPrefix) {
		return "session"
	}
	return "global"
}

// Client is one connected subscriber.
// Send is never closed; Done signals shutdown to the write pump.
type Client struct {
	ID       uuid.UUID
	Identity models.Identity
	Conn     *websocket.Conn
	Send     chan []byte
	Done     chan struct{}

	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, identity models.Identity, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Client{
		ID:       uuid.New(),
		Identity: identity,
		Conn:     conn,
		Send:     make(chan []byte, buffer),
		Done:     make(chan struct{}),
	}
}

// Close stops the client. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.Done)
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}

// IsConnected checks if client is still connected
func (c *Client) IsConnected() bool {
	select {
	case <-c.Done:
		return false
	default:
		return true
	}
}

// PublishResult reports what one Publish call handed to subscriber buffers.
type PublishResult struct {
	Delivered int
	Dropped   int
}

// Hub fans messages out to topic subscribers.
// No persistence or replay: a client only sees messages published after it subscribed.
type Hub struct {
	mu      sync.RWMutex
	topics  map[string]map[*Client]struct{}
	clients map[*Client]map[string]struct{}

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewHub creates a new WebSocket hub
func NewHub(logger zerolog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		topics:  make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]map[string]struct{}),
		logger:  logger.With().Str("component", "hub").Logger(),
		metrics: m,
	}
}

func (h *Hub) Subscribe(topic string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*Client]struct{})
		h.topics[topic] = subs
	}
	subs[client] = struct{}{}

	joined, ok := h.clients[client]
	if !ok {
		joined = make(map[string]struct{})
		h.clients[client] = joined
		h.metrics.ClientConnected()
	}
	joined[topic] = struct{}{}
}

func (h *Hub) Unsubscribe(topic string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.unsubscribeLocked(topic, client)
	if joined, ok := h.clients[client]; ok && len(joined) == 0 {
		delete(h.clients, client)
		h.metrics.ClientDisconnected()
	}
}

// RemoveClient drops every subscription held by client.
func (h *Hub) RemoveClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	joined, ok := h.clients[client]
	if !ok {
		return
	}
	for topic := range joined {
		h.unsubscribeLocked(topic, client)
	}
	delete(h.clients, client)
	h.metrics.ClientDisconnected()
}

func (h *Hub) unsubscribeLocked(topic string, client *Client) {
	if subs, ok := h.topics[topic]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
	if joined, ok := h.clients[client]; ok {
		delete(joined, topic)
	}
}

func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Publish encodes payload once and offers it to every subscriber of topic.
// A full client buffer drops the message for that client only.
func (h *Hub) Publish(topic string, payload any) (PublishResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return PublishResult{}, fmt.Errorf("encode %s payload: %w", topic, err)
	}
	return h.PublishRaw(topic, data), nil
}

// PublishRaw delivers already-encoded bytes, used to relay client frames verbatim.
func (h *Hub) PublishRaw(topic string, data []byte) PublishResult {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.topics[topic]))
	for c := range h.topics[topic] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	var res PublishResult
	for _, c := range targets {
		select {
		case <-c.Done:
			continue
		default:
		}

		select {
		case c.Send <- data:
			res.Delivered++
		default:
			res.Dropped++
			h.logger.Warn().
				Str("topic", topic).
				Str("client_id", c.ID.String()).
				Msg("subscriber buffer full, dropping message")
		}
	}

	h.metrics.ObserveBroadcast(topicKind(topic), res.Delivered, res.Dropped)
	return res
}
