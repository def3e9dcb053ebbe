// Package stream fans realtime events out to connected websocket clients.
// With Redis configured every instance subscribes to the per-user channels,
// so an event produced on one instance reaches sockets held by another.
package stream

import (
	"context"
	"strings"
	"sync"
	"time"

	"backend-navi/internal/logging"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix = "stream:"
	channelSuffix = ":events"
	sendBuffer    = 64
)

type Event struct {
	Type   string    `json:"type"`
	Data   any       `json:"data"`
	SentAt time.Time `json:"sent_at"`
}

type Hub struct {
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex

	pubsub *redis.PubSub
	done   chan struct{}
}

type Client struct {
	UserID string
	Send   chan []byte
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		clients: map[string]map[*Client]struct{}{},
	}
	if redisClient == nil {
		return h
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	pubsub := redisClient.PSubscribe(context.Background(), channelPrefix+"*"+channelSuffix)
	if _, err := pubsub.Receive(ctx); err != nil {
		logging.Warn().Err(err).Msg("redis subscribe failed, realtime events stay local")
		_ = pubsub.Close()
		return h
	}

	h.redis = redisClient
	h.pubsub = pubsub
	h.done = make(chan struct{})
	go h.subscribeRedis()
	return h
}

func (h *Hub) Register(userID string) *Client {
	client := &Client{
		UserID: userID,
		Send:   make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = map[*Client]struct{}{}
	}
	h.clients[userID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if userClients, ok := h.clients[client.UserID]; ok {
		if _, ok := userClients[client]; !ok {
			return
		}
		delete(userClients, client)
		if len(userClients) == 0 {
			delete(h.clients, client.UserID)
		}
		close(client.Send)
	}
}

// Push sends an event to every socket of userID. Slow consumers drop
// messages rather than block the producer.
func (h *Hub) Push(ctx context.Context, userID, eventType string, data any) {
	payload, err := json.Marshal(Event{Type: eventType, Data: data, SentAt: time.Now().UTC()})
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("event", eventType).Msg("encode realtime event")
		return
	}
	h.Broadcast(ctx, userID, payload)
}

// Broadcast delivers payload once per socket. With Redis the local copy
// arrives through the subscription like every other instance's.
func (h *Hub) Broadcast(ctx context.Context, userID string, payload []byte) {
	if h.redis != nil {
		err := h.redis.Publish(ctx, redisChannel(userID), payload).Err()
		if err == nil {
			return
		}
		logging.Ctx(ctx).Warn().Err(err).Msg("redis publish failed, delivering locally")
	}
	h.deliver(userID, payload)
}

func (h *Hub) deliver(userID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis() {
	defer close(h.done)
	for msg := range h.pubsub.Channel() {
		userID := userIDFromChannel(msg.Channel)
		if userID == "" {
			continue
		}
		h.deliver(userID, []byte(msg.Payload))
	}
}

// Connections returns the number of registered sockets.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, c := range h.clients {
		n += len(c)
	}
	return n
}

func (h *Hub) Close() error {
	if h.pubsub == nil {
		return nil
	}
	err := h.pubsub.Close()
	<-h.done
	return err
}

func redisChannel(userID string) string {
	return channelPrefix + userID + channelSuffix
}

func userIDFromChannel(ch string) string {
	// stream:{user}:events
	if !strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	if len(ch) <= len(channelPrefix)+len(channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
