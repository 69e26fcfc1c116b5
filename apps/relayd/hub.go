package main

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/siakad-ng/realtime/pkg/pusher"
	"github.com/siakad-ng/realtime/pkg/snowflake"
)

// frame mirrors the Pusher wire frame on the server side.
type frame struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type Hub struct {
	key    string
	secret []byte

	mu      sync.RWMutex
	sockets map[*socket]bool

	// redis is optional; when set, events are published and every relay
	// instance (including this one) delivers from the subscription, so a
	// multi-instance setup fans out to all connected clients.
	redis     *redis.Client
	snowflake *snowflake.Node
}

func NewHub(key, secret, redisAddr string) *Hub {
	node, err := snowflake.NewNode(1)
	if err != nil {
		log.Fatalf("Failed to initialize snowflake node: %v", err)
	}

	h := &Hub{
		key:       key,
		secret:    []byte(secret),
		sockets:   make(map[*socket]bool),
		snowflake: node,
	}

	if redisAddr != "" {
		h.redis = redis.NewClient(&redis.Options{Addr: redisAddr})
		go h.redisListener()
	}

	return h
}

const redisChannel = "relay:events"

func (h *Hub) register(s *socket) {
	h.mu.Lock()
	h.sockets[s] = true
	h.mu.Unlock()
	log.Printf("Socket connected: %s", s.id)
}

func (h *Hub) unregister(s *socket) {
	h.mu.Lock()
	if _, ok := h.sockets[s]; ok {
		delete(h.sockets, s)
		close(s.send)
		log.Printf("Socket disconnected: %s", s.id)
	}
	h.mu.Unlock()
}

// Broadcast delivers an event frame to every socket subscribed to the wire
// channel. With redis configured the frame takes the pub/sub round trip so
// other relay instances see it too.
func (h *Hub) Broadcast(wireChannel, event string, data json.RawMessage) {
	raw, err := json.Marshal(frame{Event: event, Channel: wireChannel, Data: data})
	if err != nil {
		log.Printf("Failed to marshal frame: %v", err)
		return
	}

	if h.redis != nil {
		if err := h.redis.Publish(context.Background(), redisChannel, raw).Err(); err != nil {
			log.Printf("Redis publish error: %v", err)
			h.deliverLocal(wireChannel, raw)
		}
		return
	}

	h.deliverLocal(wireChannel, raw)
}

func (h *Hub) deliverLocal(wireChannel string, raw []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.sockets {
		if !s.subscribed(wireChannel) {
			continue
		}
		select {
		case s.send <- raw:
		default:
			// Slow consumer; drop it rather than blocking the fanout.
			go h.unregister(s)
		}
	}
}

func (h *Hub) redisListener() {
	pubsub := h.redis.Subscribe(context.Background(), redisChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var f frame
		if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
			log.Printf("Failed to unmarshal frame from Redis: %v", err)
			continue
		}
		h.deliverLocal(f.Channel, []byte(msg.Payload))
	}
}

// checkAuth verifies a private-channel subscription signature for a socket.
func (h *Hub) checkAuth(socketID, wireChannel, auth string) bool {
	return auth == pusher.Sign(h.secret, h.key, socketID, wireChannel)
}
