package registry

import (
	"errors"
	"log"
	"sync"

	"github.com/siakad-ng/realtime/pkg/pusher"
)

// SubState tracks one channel subscription's lifecycle.
type SubState string

const (
	StatePending SubState = "pending"
	StateActive  SubState = "active"
	StateLeft    SubState = "left"
)

// Transport is the slice of the broadcast connection the registry drives.
// *pusher.Connection satisfies it.
type Transport interface {
	Subscribe(channel string) error
	Unsubscribe(channel string) error
	Bind(channel, event string, h pusher.Handler)
	UnbindChannel(channel string)
	OnStateChange(fn func(pusher.State))
}

type subscription struct {
	channel string
	state   SubState
}

// Registry keeps channel subscriptions idempotent per channel name and scoped
// to view lifetime. Subscribing before the connection is up is deferred: the
// subscribe frame is replayed when the connection reports connected, and the
// same replay restores every live subscription after a reconnect (signatures
// bind to the socket id, so old subscribe frames cannot simply be resent by
// the transport).
type Registry struct {
	t Transport

	mu   sync.Mutex
	subs map[string]*subscription
}

func New(t Transport) *Registry {
	r := &Registry{t: t, subs: make(map[string]*subscription)}
	t.OnStateChange(r.onState)
	return r
}

// Handle identifies one subscription for teardown.
type Handle struct {
	r       *Registry
	channel string
}

// Subscribe binds the handlers and subscribes to the channel. Calling it
// again for the same channel name is a no-op returning an equivalent handle,
// so re-rendering views never double-register handlers.
func (r *Registry) Subscribe(channel string, handlers map[string]pusher.Handler) *Handle {
	r.mu.Lock()
	if _, ok := r.subs[channel]; ok {
		r.mu.Unlock()
		return &Handle{r: r, channel: channel}
	}
	sub := &subscription{channel: channel, state: StatePending}
	r.subs[channel] = sub
	r.mu.Unlock()

	for event, h := range handlers {
		r.t.Bind(channel, event, h)
	}

	// Immediate attempt; if the connection is not up yet this defers to the
	// connected state change. A duplicate frame in the window between the two
	// is harmless: the server treats re-subscribing a socket as idempotent.
	if err := r.t.Subscribe(channel); err != nil {
		if !errors.Is(err, pusher.ErrNotConnected) {
			log.Printf("Subscribe %s failed: %v", channel, err)
		}
		return &Handle{r: r, channel: channel}
	}

	r.mu.Lock()
	if sub.state == StatePending {
		sub.state = StateActive
	}
	r.mu.Unlock()
	return &Handle{r: r, channel: channel}
}

// State reports the subscription state for a channel name.
func (r *Registry) State(channel string) SubState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub, ok := r.subs[channel]; ok {
		return sub.state
	}
	return StateLeft
}

// Unsubscribe tears the subscription down. Handlers are unbound before the
// transport-level leave, so an event already in flight finds nothing to call;
// that is the cancellation guarantee for the channel stream. Safe to call
// repeatedly and during connection teardown.
func (h *Handle) Unsubscribe() {
	h.r.unsubscribe(h.channel)
}

func (r *Registry) unsubscribe(channel string) {
	r.mu.Lock()
	sub, ok := r.subs[channel]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.subs, channel)
	wasActive := sub.state == StateActive
	sub.state = StateLeft
	r.mu.Unlock()

	r.t.UnbindChannel(channel)
	if wasActive {
		if err := r.t.Unsubscribe(channel); err != nil {
			log.Printf("Unsubscribe %s failed: %v", channel, err)
		}
	}
}

// Close drops every subscription. Used on logout before the connection is
// shut down.
func (r *Registry) Close() {
	r.mu.Lock()
	channels := make([]string, 0, len(r.subs))
	for name := range r.subs {
		channels = append(channels, name)
	}
	r.mu.Unlock()
	for _, name := range channels {
		r.unsubscribe(name)
	}
}

// onState replays subscribe frames for every live channel once the
// connection (re)reaches connected.
func (r *Registry) onState(s pusher.State) {
	if s != pusher.StateConnected {
		return
	}

	r.mu.Lock()
	subs := make([]*subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		subs = append(subs, sub)
	}
	r.mu.Unlock()

	for _, sub := range subs {
		if err := r.t.Subscribe(sub.channel); err != nil {
			log.Printf("Subscribe %s failed: %v", sub.channel, err)
			continue
		}
		r.mu.Lock()
		if sub.state == StatePending {
			sub.state = StateActive
		}
		r.mu.Unlock()
	}
}
