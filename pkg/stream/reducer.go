// Package stream holds the pure reducers that fold broadcast events into
// local message and notification lists. Delivery is at-least-once: reconnect
// replay and duplicate pushes are normal, so every reducer is idempotent and
// keyed on server-assigned ids. No reducer performs I/O.
package stream

import (
	"sort"

	"github.com/siakad-ng/realtime/pkg/model"
)

// ApplyNewMessage appends an incoming message to the conversation list,
// keeping (sent_at, id) ascending order. A message whose id is already
// present is dropped; that covers both redelivery and the reconciliation of
// the local user's own optimistic send once the server echo arrives.
func ApplyNewMessage(msgs []model.Message, ev model.NewMessageEvent) []model.Message {
	for _, m := range msgs {
		if m.ID == ev.Message.ID {
			return msgs
		}
	}

	out := make([]model.Message, len(msgs), len(msgs)+1)
	copy(out, msgs)
	out = append(out, ev.Message)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Before(out[j])
	})
	return out
}

// ApplyReadReceipt records that a user has viewed a message. Applying the
// same (message, reader) pair twice leaves the list unchanged.
func ApplyReadReceipt(msgs []model.Message, ev model.ReadReceiptEvent) []model.Message {
	idx := -1
	for i, m := range msgs {
		if m.ID == ev.MessageID {
			idx = i
			break
		}
	}
	if idx < 0 || msgs[idx].ReadByUser(ev.ReaderID) {
		return msgs
	}

	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	m := out[idx]
	readers := make([]int64, len(m.ReadBy), len(m.ReadBy)+1)
	copy(readers, m.ReadBy)
	m.ReadBy = append(readers, ev.ReaderID)
	m.ReadCount = len(m.ReadBy)
	out[idx] = m
	return out
}

// ApplyNotification prepends a notification (newest first). Only
// announcements reach the list; any other type is ignored, as is a
// notification id already present.
func ApplyNotification(list []model.Notification, ev model.NotificationEvent) []model.Notification {
	if ev.Notification.Type != model.NotificationAnnouncement {
		return list
	}
	for _, n := range list {
		if n.ID == ev.Notification.ID {
			return list
		}
	}

	out := make([]model.Notification, 0, len(list)+1)
	out = append(out, ev.Notification)
	out = append(out, list...)
	return out
}

// UnreadBy returns the ids of messages not sent by userID and not yet read by
// them, in list order. This is the set the read-receipt debouncer batches.
func UnreadBy(msgs []model.Message, userID int64) []int64 {
	var ids []int64
	for _, m := range msgs {
		if m.SenderID != userID && !m.ReadByUser(userID) {
			ids = append(ids, m.ID)
		}
	}
	return ids
}
