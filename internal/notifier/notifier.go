package notifier

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	userEventsChannel   = "ridebid:events:user"
	driverEventsChannel = "ridebid:events:drivers"
)

// Notifier delivers negotiation events to connected clients. Delivery is
// best effort; a recipient that is not connected simply misses the event.
type Notifier interface {
	Notify(ctx context.Context, recipientID, event string, payload interface{})
	BroadcastDrivers(ctx context.Context, event string, payload interface{})
}

// Event is the wire shape of a single SSE message body.
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// Hub fans events out to SSE subscribers. Events are also published to
// Redis so every instance behind a load balancer sees them, regardless of
// which instance handled the originating request.
type Hub struct {
	redis         *redis.Client
	clients       map[string]map[chan []byte]bool // recipientID -> subscriber channels
	driverClients map[chan []byte]bool            // drivers watching the open-request feed
	mu            sync.RWMutex
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		redis:         redisClient,
		clients:       make(map[string]map[chan []byte]bool),
		driverClients: make(map[chan []byte]bool),
	}

	if redisClient != nil {
		go h.listenPubSub()
	}

	return h
}

// Notify sends an event to a single recipient, on every instance.
func (h *Hub) Notify(ctx context.Context, recipientID, event string, payload interface{}) {
	msg := h.encode(event, payload)

	if h.redis != nil {
		envelope, _ := json.Marshal(map[string]json.RawMessage{recipientID: msg})
		if err := h.redis.Publish(ctx, userEventsChannel, envelope).Err(); err != nil {
			log.Printf("notifier: publish failed, delivering locally only: %v", err)
			h.deliver(recipientID, msg)
		}
		return
	}

	h.deliver(recipientID, msg)
}

// BroadcastDrivers sends an event to every driver watching the
// open-request feed.
func (h *Hub) BroadcastDrivers(ctx context.Context, event string, payload interface{}) {
	msg := h.encode(event, payload)

	if h.redis != nil {
		if err := h.redis.Publish(ctx, driverEventsChannel, msg).Err(); err != nil {
			log.Printf("notifier: broadcast publish failed, delivering locally only: %v", err)
			h.deliverDrivers(msg)
		}
		return
	}

	h.deliverDrivers(msg)
}

// Subscribe registers an SSE connection for a recipient. The returned
// channel receives encoded events until Unsubscribe is called.
func (h *Hub) Subscribe(recipientID string) chan []byte {
	ch := make(chan []byte, 16)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[recipientID] == nil {
		h.clients[recipientID] = make(map[chan []byte]bool)
	}
	h.clients[recipientID][ch] = true
	return ch
}

func (h *Hub) Unsubscribe(recipientID string, ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.clients[recipientID]; ok {
		delete(subs, ch)
		if len(subs) == 0 {
			delete(h.clients, recipientID)
		}
	}
	close(ch)
}

// SubscribeDrivers registers an SSE connection on the open-request feed.
func (h *Hub) SubscribeDrivers() chan []byte {
	ch := make(chan []byte, 16)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.driverClients[ch] = true
	return ch
}

func (h *Hub) UnsubscribeDrivers(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.driverClients, ch)
	close(ch)
}

func (h *Hub) encode(event string, payload interface{}) []byte {
	msg, _ := json.Marshal(Event{
		Type:      event,
		Data:      payload,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	return msg
}

func (h *Hub) deliver(recipientID string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients[recipientID] {
		select {
		case ch <- msg:
		default:
			// Subscriber too slow, skip
		}
	}
}

func (h *Hub) deliverDrivers(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.driverClients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) listenPubSub() {
	ctx := context.Background()
	pubsub := h.redis.Subscribe(ctx, userEventsChannel, driverEventsChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		switch msg.Channel {
		case userEventsChannel:
			var envelope map[string]json.RawMessage
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				continue
			}
			for recipientID, event := range envelope {
				h.deliver(recipientID, event)
			}
		case driverEventsChannel:
			h.deliverDrivers([]byte(msg.Payload))
		}
	}
}
