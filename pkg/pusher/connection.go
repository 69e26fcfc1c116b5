package pusher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State is the lifecycle state of the broadcast connection.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateFailed       State = "failed"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size; event payloads carry full message bodies.
	maxMessageSize = 64 * 1024

	clientName    = "siakad-go"
	clientVersion = "0.1.0"

	maxBackoff = 30 * time.Second
)

var (
	ErrNotConnected = errors.New("pusher: not connected")
	ErrClosed       = errors.New("pusher: connection closed")
)

// Handler receives a channel event. channel and event are the logical names
// (no private- prefix, no leading dot). Handlers run on the read pump
// goroutine, so handler execution for one connection is serialized.
type Handler func(channel, event string, data json.RawMessage)

// Options carries everything needed to dial and authenticate. Built once from
// configuration via BuildOptions; never re-read afterwards.
type Options struct {
	Key          string
	Host         string
	TLS          bool
	AuthEndpoint string
	Token        string
	HTTPClient   *http.Client
}

// URL builds the websocket endpoint for the app key.
func (o Options) URL() string {
	scheme := "ws"
	if o.TLS {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: o.Host, Path: "/app/" + o.Key}
	q := u.Query()
	q.Set("protocol", "7")
	q.Set("client", clientName)
	q.Set("version", clientVersion)
	u.RawQuery = q.Encode()
	return u.String()
}

// Connection is a single authenticated duplex connection to the broadcast
// server. It redials on network loss with capped backoff; channel bindings
// survive a reconnect but subscriptions must be replayed by the caller (the
// registry does this on the state change back to connected).
type Connection struct {
	opts Options

	mu          sync.Mutex
	conn        *websocket.Conn
	state       State
	socketID    string
	bindings    map[string]map[string][]Handler
	stateFns    []func(State)
	connectedCh chan struct{}

	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
}

func newConnection(opts Options) *Connection {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	c := &Connection{
		opts:        opts,
		state:       StateDisconnected,
		bindings:    make(map[string]map[string][]Handler),
		connectedCh: make(chan struct{}),
		done:        make(chan struct{}),
	}
	go c.run()
	return c
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SocketID returns the server-assigned socket id, empty until connected.
func (c *Connection) SocketID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.socketID
}

// OnStateChange registers a listener invoked on every state transition.
func (c *Connection) OnStateChange(fn func(State)) {
	c.mu.Lock()
	c.stateFns = append(c.stateFns, fn)
	c.mu.Unlock()
}

// WaitConnected blocks until the connection reaches the connected state, the
// context is done, or the connection is closed for good.
func (c *Connection) WaitConnected(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.state == StateConnected {
			c.mu.Unlock()
			return nil
		}
		ch := c.connectedCh
		c.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return ErrClosed
		}
	}
}

// Bind registers a handler for an event on a logical channel. A leading dot
// on the event name (client-side naming convention) is ignored for matching.
func (c *Connection) Bind(channel, event string, h Handler) {
	event = strings.TrimPrefix(event, ".")
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bindings[channel] == nil {
		c.bindings[channel] = make(map[string][]Handler)
	}
	c.bindings[channel][event] = append(c.bindings[channel][event], h)
}

// UnbindChannel drops every handler bound to the channel. After it returns,
// late events for the channel are discarded by dispatch.
func (c *Connection) UnbindChannel(channel string) {
	c.mu.Lock()
	delete(c.bindings, channel)
	c.mu.Unlock()
}

// Subscribe sends the subscribe frame for a logical channel, fetching the
// private-channel auth signature from the auth endpoint first. The caller
// must wait for the connected state; subscribing earlier fails with
// ErrNotConnected.
func (c *Connection) Subscribe(channel string) error {
	c.mu.Lock()
	state, socketID := c.state, c.socketID
	c.mu.Unlock()
	if state != StateConnected {
		return ErrNotConnected
	}

	payload := subscribePayload{Channel: WireName(channel)}
	if c.opts.AuthEndpoint != "" {
		auth, err := c.authorize(socketID, payload.Channel)
		if err != nil {
			return fmt.Errorf("pusher: auth for channel %s: %w", channel, err)
		}
		payload.Auth = auth
	}
	return c.send(eventSubscribe, "", payload)
}

// Unsubscribe leaves the channel at the transport level. Safe to call when
// the connection has already dropped; the server forgets subscriptions on
// disconnect anyway.
func (c *Connection) Unsubscribe(channel string) error {
	err := c.send(eventUnsubscribe, "", subscribePayload{Channel: WireName(channel)})
	if errors.Is(err, ErrNotConnected) {
		return nil
	}
	return err
}

// Close tears the connection down for good. Used on logout.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	c.mu.Lock()
	ws := c.conn
	c.mu.Unlock()
	if ws != nil {
		c.writeMu.Lock()
		ws.SetWriteDeadline(time.Now().Add(writeWait))
		ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		ws.Close()
	}
	c.setState(StateDisconnected)
}

// authorize calls the HTTP auth endpoint with the bearer token to sign a
// private channel subscription for this socket.
func (c *Connection) authorize(socketID, wireChannel string) (string, error) {
	form := url.Values{}
	form.Set("socket_id", socketID)
	form.Set("channel_name", wireChannel)

	req, err := http.NewRequest(http.MethodPost, c.opts.AuthEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.opts.Token)

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth endpoint returned %d", resp.StatusCode)
	}

	var body struct {
		Auth string `json:"auth"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.Auth, nil
}

func (c *Connection) send(event, channel string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	ws := c.conn
	c.mu.Unlock()
	if ws == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteJSON(frame{Event: event, Channel: channel, Data: raw})
}

func (c *Connection) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	prev := c.state
	c.state = s
	if s == StateConnected {
		close(c.connectedCh)
	}
	if prev == StateConnected {
		c.connectedCh = make(chan struct{})
	}
	fns := append(([]func(State))(nil), c.stateFns...)
	c.mu.Unlock()

	log.Printf("Broadcast connection: %s -> %s", prev, s)
	for _, fn := range fns {
		fn(s)
	}
}

// run is the dial/redial loop. It owns the websocket for its whole lifetime;
// read errors drop back here and trigger a redial.
func (c *Connection) run() {
	backoff := time.Second
	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.setState(StateConnecting)
		ws, _, err := websocket.DefaultDialer.Dial(c.opts.URL(), nil)
		if err != nil {
			c.setState(StateFailed)
			log.Printf("Broadcast connect failed: %v", err)
			select {
			case <-c.done:
				return
			case <-time.After(backoff):
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		c.mu.Lock()
		c.conn = ws
		c.mu.Unlock()

		stop := make(chan struct{})
		go c.pinger(ws, stop)
		c.readPump(ws)
		close(stop)
		ws.Close()

		c.mu.Lock()
		c.conn = nil
		c.socketID = ""
		c.mu.Unlock()

		select {
		case <-c.done:
			return
		default:
			c.setState(StateDisconnected)
		}

		select {
		case <-c.done:
			return
		case <-time.After(time.Second):
		}
	}
}

// readPump reads frames until the connection errors out. It handles protocol
// events itself and hands channel events to dispatch.
func (c *Connection) readPump(ws *websocket.Conn) {
	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error { ws.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("Broadcast read error: %v", err)
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(pongWait))

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			log.Printf("Broadcast frame not JSON: %v", err)
			continue
		}

		switch f.Event {
		case eventEstablished:
			var p establishedPayload
			if err := decodeData(f.Data, &p); err != nil {
				log.Printf("Broadcast handshake payload invalid: %v", err)
				continue
			}
			c.mu.Lock()
			c.socketID = p.SocketID
			c.mu.Unlock()
			c.setState(StateConnected)

		case eventPing:
			if err := c.send(eventPong, "", struct{}{}); err != nil {
				log.Printf("Broadcast pong failed: %v", err)
			}

		case eventPong:
			// Keepalive reply, nothing to do.

		case eventError:
			var p errorPayload
			if err := decodeData(f.Data, &p); err == nil {
				log.Printf("Broadcast server error %d: %s", p.Code, p.Message)
			} else {
				log.Printf("Broadcast server error: %s", f.Data)
			}

		case eventSubscriptionDone:
			log.Printf("Subscribed to %s", LogicalName(f.Channel))

		default:
			c.dispatch(f.Channel, f.Event, normalizeData(f.Data))
		}
	}
}

func (c *Connection) dispatch(channel, event string, data json.RawMessage) {
	logical := LogicalName(channel)
	name := strings.TrimPrefix(event, ".")

	c.mu.Lock()
	handlers := append([]Handler(nil), c.bindings[logical][name]...)
	c.mu.Unlock()

	for _, h := range handlers {
		h(logical, name, data)
	}
}

func (c *Connection) pinger(ws *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			err := ws.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}
