package realtime

import (
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/finstream-guard/dashboard/internal/metrics"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60

	// TopicDashboard carries recorder status and stream list updates.
	TopicDashboard    = "dashboard"
	streamTopicPrefix = "stream:"
)

// ValidTopic reports whether topic is the dashboard topic or a per-stream topic.
func ValidTopic(topic string) bool {
	if topic == TopicDashboard {
		return true
	}
	return strings.HasPrefix(topic, streamTopicPrefix) && len(topic) > len(streamTopicPrefix)
}

// Hub maintains topic -> set of connections and broadcasts messages.
// With a Bridge configured, events go through Redis so every instance delivers them once.
type Hub struct {
	// topic -> map[clientID]*Client
	topics map[string]map[string]*Client
	subs   map[string]func() // cancel Redis subscription per topic
	mu     sync.RWMutex
	logger *zap.Logger
	bridge Bridge
}

// Bridge relays events between dashboard instances.
type Bridge interface {
	PublishTopicEvent(topic, event string, payload []byte) error
	SubscribeTopic(topic string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. bridge may be nil for a single instance.
func NewHub(logger *zap.Logger, bridge Bridge) *Hub {
	metrics.Init()
	return &Hub{
		topics: make(map[string]map[string]*Client),
		subs:   make(map[string]func()),
		logger: logger,
		bridge: bridge,
	}
}

// Register adds a client to its topic. Starts the Redis subscription for the topic if first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.topics[c.Topic] == nil {
		h.topics[c.Topic] = make(map[string]*Client)
		if h.bridge != nil {
			topic := c.Topic
			cancel, err := h.bridge.SubscribeTopic(topic, func(event string, payload []byte) {
				h.Broadcast(topic, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[topic] = cancel
			} else {
				h.logger.Warn("redis subscribe failed", zap.String("topic", topic), zap.Error(err))
			}
		}
	}
	h.topics[c.Topic][c.ID] = c
	h.mu.Unlock()
	metrics.WSClients.Inc()
	h.logger.Debug("client subscribed", zap.String("client_id", c.ID), zap.String("topic", c.Topic))
}

// Unregister removes a client from its topic. Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	m, ok := h.topics[c.Topic]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, present := m[c.ID]; !present {
		h.mu.Unlock()
		return
	}
	delete(m, c.ID)
	if len(m) == 0 {
		delete(h.topics, c.Topic)
		if cancel, ok := h.subs[c.Topic]; ok {
			cancel()
			delete(h.subs, c.Topic)
		}
	}
	h.mu.Unlock()
	close(c.send)
	metrics.WSClients.Dec()
	h.logger.Debug("client unsubscribed", zap.String("client_id", c.ID), zap.String("topic", c.Topic))
}

// Broadcast sends a message to all local clients of a topic.
func (h *Hub) Broadcast(topic, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			h.logger.Warn("marshal event", zap.String("event", event), zap.Error(err))
			return
		}
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.topics[topic] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Publish delivers an event to every subscriber of topic. With a bridge the Redis
// subscriber performs the broadcast, including for this instance; a failed publish
// falls back to local delivery.
func (h *Hub) Publish(topic, event string, payload interface{}) {
	if h.bridge == nil {
		h.Broadcast(topic, event, payload)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := h.bridge.PublishTopicEvent(topic, event, data); err != nil {
		h.logger.Warn("redis publish failed, delivering locally", zap.String("topic", topic), zap.Error(err))
		h.Broadcast(topic, event, json.RawMessage(data))
	}
}

// ClientCount returns the number of connected clients on a topic.
func (h *Hub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// SendToClient sends a message to a single client.
func (h *Hub) SendToClient(topic, clientID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := WSMessage{Event: event, Data: data}
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.topics[topic][clientID]
	if !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}
