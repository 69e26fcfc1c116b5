// Package readmark batches mark-as-read calls. Opening a conversation with
// many unread messages must produce one backend call, not one per message.
package readmark

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/siakad-ng/realtime/pkg/model"
	"github.com/siakad-ng/realtime/pkg/stream"
)

// DefaultDelay is how long a batch waits for further unread messages before
// flushing.
const DefaultDelay = time.Second

// FlushFunc performs the batched mark-as-read call.
type FlushFunc func(conversationID int64, messageIDs []int64) error

type batch struct {
	ids   map[int64]struct{}
	timer *time.Timer
}

// Debouncer schedules one flush per conversation. A new observation before
// the delay elapses replaces the scheduled batch rather than queueing a
// second call.
type Debouncer struct {
	delay time.Duration
	flush FlushFunc

	mu      sync.Mutex
	pending map[int64]*batch
}

func New(delay time.Duration, flush FlushFunc) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer{
		delay:   delay,
		flush:   flush,
		pending: make(map[int64]*batch),
	}
}

// Observe recomputes the unread-and-visible set for the conversation from the
// current message list and (re)schedules the flush. Called on every state
// change of the visible list; an empty unread set schedules nothing.
func (d *Debouncer) Observe(conversationID int64, msgs []model.Message, readerID int64) {
	ids := stream.UnreadBy(msgs, readerID)
	if len(ids) == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	b := d.pending[conversationID]
	if b == nil {
		b = &batch{}
		d.pending[conversationID] = b
	}
	// Replace, don't accumulate: the set is always derived from the latest
	// list, so stale ids from a superseded batch cannot linger.
	b.ids = make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		b.ids[id] = struct{}{}
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(d.delay, func() { d.fire(conversationID) })
}

func (d *Debouncer) fire(conversationID int64) {
	d.mu.Lock()
	b := d.pending[conversationID]
	if b == nil {
		d.mu.Unlock()
		return
	}
	delete(d.pending, conversationID)
	ids := make([]int64, 0, len(b.ids))
	for id := range b.ids {
		ids = append(ids, id)
	}
	d.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	// On failure just log; the next list change re-observes the still-unread
	// messages and schedules a fresh batch. No retry timer of its own.
	if err := d.flush(conversationID, ids); err != nil {
		log.Printf("Mark read for conversation %d failed: %v", conversationID, err)
	}
}

// Stop cancels every scheduled batch. Used on view teardown so no flush runs
// after the owning view is gone.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, b := range d.pending {
		if b.timer != nil {
			b.timer.Stop()
		}
		delete(d.pending, id)
	}
}
