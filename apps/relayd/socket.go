package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	activityTimeout = 120
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Dev relay, any origin may connect.
	},
}

// socket is one connected broadcast client.
type socket struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string

	mu       sync.Mutex
	channels map[string]bool
}

func (s *socket) subscribed(wireChannel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channels[wireChannel]
}

func (s *socket) addChannel(wireChannel string) {
	s.mu.Lock()
	s.channels[wireChannel] = true
	s.mu.Unlock()
}

func (s *socket) removeChannel(wireChannel string) {
	s.mu.Lock()
	delete(s.channels, wireChannel)
	s.mu.Unlock()
}

func (s *socket) sendFrame(event, channel string, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	msg, err := json.Marshal(frame{Event: event, Channel: channel, Data: raw})
	if err != nil {
		return
	}
	select {
	case s.send <- msg:
	default:
	}
}

// readPump handles protocol frames from the client: subscribe, unsubscribe
// and ping. Anything else is ignored; clients publish through the HTTP event
// endpoint, not the socket.
func (s *socket) readPump() {
	defer func() {
		s.hub.unregister(s)
		s.conn.Close()
	}()
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error { s.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("Socket %s read error: %v", s.id, err)
			}
			break
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			continue
		}

		switch f.Event {
		case "pusher:subscribe":
			var p struct {
				Channel string `json:"channel"`
				Auth    string `json:"auth"`
			}
			if err := json.Unmarshal(f.Data, &p); err != nil {
				continue
			}
			if strings.HasPrefix(p.Channel, "private-") && !s.hub.checkAuth(s.id, p.Channel, p.Auth) {
				log.Printf("Socket %s: bad auth for %s", s.id, p.Channel)
				s.sendFrame("pusher:error", "", map[string]interface{}{
					"code":    4009,
					"message": "subscription auth invalid for " + p.Channel,
				})
				continue
			}
			s.addChannel(p.Channel)
			s.sendFrame("pusher_internal:subscription_succeeded", p.Channel, struct{}{})

		case "pusher:unsubscribe":
			var p struct {
				Channel string `json:"channel"`
			}
			if err := json.Unmarshal(f.Data, &p); err != nil {
				continue
			}
			s.removeChannel(p.Channel)

		case "pusher:ping":
			s.sendFrame("pusher:pong", "", struct{}{})
		}
	}
}

// writePump pumps frames from the hub to the websocket connection.
func (s *socket) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// serveWs upgrades /app/{key} requests and runs the protocol handshake.
func serveWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/app/")
	if key != hub.key {
		http.Error(w, "Unknown app key", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	s := &socket{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		id:       fmt.Sprintf("%d.%d", rand.Int31(), rand.Int31()),
		channels: make(map[string]bool),
	}
	hub.register(s)

	go s.writePump()
	go s.readPump()

	// The handshake frame double-encodes its payload, as the protocol
	// specifies for system events.
	inner, _ := json.Marshal(map[string]interface{}{
		"socket_id":        s.id,
		"activity_timeout": activityTimeout,
	})
	s.sendFrame("pusher:connection_established", "", string(inner))
}
