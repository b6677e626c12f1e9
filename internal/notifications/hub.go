package notifications

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat (seconds).
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains user_id -> set of connections and delivers notification
// events. Uses Redis pub/sub for horizontal scaling: events are published and
// the subscribing instance broadcasts to its local connections.
type Hub struct {
	// userID -> map[clientID]*Client
	users    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per user
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher publishes user events for cross-instance delivery.
type RedisPublisher interface {
	PublishUserEvent(userID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to a user's channel and invokes handler for
// incoming events.
type RedisSubscriber interface {
	SubscribeUser(userID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new notification hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		users:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a connection for a user. Starts the user's Redis subscription
// on the first connection.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.users[c.UserID] == nil {
		h.users[c.UserID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeUser(c.UserID, func(event string, payload []byte) {
				h.SendToUser(c.UserID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.UserID] = cancel
			}
		}
	}
	h.users[c.UserID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("notification client connected",
		zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()))
}

// Unregister removes a connection. Cancels the Redis subscription when the
// user's last connection closes.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.users[c.UserID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.users, c.UserID)
			if cancel, ok := h.subs[c.UserID]; ok {
				cancel()
				delete(h.subs, c.UserID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("notification client disconnected",
		zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()))
}

// SendToUser delivers an event to the user's local connections only.
func (h *Hub) SendToUser(userID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	// snapshot under the lock; Register/Unregister mutate the inner map
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.users[userID]))
	for _, c := range h.users[userID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Push publishes an event for a user. With Redis available it publishes only,
// and the subscribing instance broadcasts exactly once; without Redis it
// delivers locally.
func (h *Hub) Push(userID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if h.redis != nil {
		_ = h.redis.PublishUserEvent(userID, event, data)
		return
	}
	h.SendToUser(userID, event, json.RawMessage(data))
}

// ConnectionCount returns the number of local connections for a user.
func (h *Hub) ConnectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}
