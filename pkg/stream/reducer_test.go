package stream

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siakad-ng/realtime/pkg/model"
)

func msg(id int64, sentAt time.Time) model.Message {
	return model.Message{ID: id, ConversationID: 1, SenderID: 2, Body: "hi", SentAt: sentAt}
}

func TestApplyNewMessageRedelivery(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var msgs []model.Message
	msgs = ApplyNewMessage(msgs, model.NewMessageEvent{Message: msg(5, base)})
	msgs = ApplyNewMessage(msgs, model.NewMessageEvent{Message: msg(5, base)})

	require.Len(t, msgs, 1)
	assert.Equal(t, int64(5), msgs[0].ID)
}

func TestApplyNewMessageOrdersOutOfOrderArrivals(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var msgs []model.Message
	for _, id := range []int64{3, 1, 2} {
		msgs = ApplyNewMessage(msgs, model.NewMessageEvent{
			Message: msg(id, base.Add(time.Duration(id)*time.Second)),
		})
	}

	require.Len(t, msgs, 3)
	for i, want := range []int64{1, 2, 3} {
		assert.Equal(t, want, msgs[i].ID)
	}
}

func TestApplyNewMessageTimestampTieBreaksOnID(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var msgs []model.Message
	for _, id := range []int64{9, 4, 7} {
		msgs = ApplyNewMessage(msgs, model.NewMessageEvent{Message: msg(id, at)})
	}

	for i, want := range []int64{4, 7, 9} {
		assert.Equal(t, want, msgs[i].ID)
	}
}

// Any arrival order with any amount of duplication must converge to the same
// sorted, deduplicated list.
func TestApplyNewMessageShuffledWithDuplicates(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(7))

	arrivals := make([]int64, 0, 40)
	for id := int64(1); id <= 20; id++ {
		arrivals = append(arrivals, id, id) // every event delivered twice
	}
	rng.Shuffle(len(arrivals), func(i, j int) {
		arrivals[i], arrivals[j] = arrivals[j], arrivals[i]
	})

	var msgs []model.Message
	for _, id := range arrivals {
		msgs = ApplyNewMessage(msgs, model.NewMessageEvent{
			Message: msg(id, base.Add(time.Duration(id)*time.Minute)),
		})
	}

	require.Len(t, msgs, 20)
	for i := range msgs {
		assert.Equal(t, int64(i+1), msgs[i].ID)
	}
}

func TestApplyNewMessageDoesNotMutateInput(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	orig := []model.Message{msg(2, base.Add(time.Minute))}

	out := ApplyNewMessage(orig, model.NewMessageEvent{Message: msg(1, base)})

	require.Len(t, out, 2)
	assert.Equal(t, int64(2), orig[0].ID, "input slice must be left alone")
}

func TestApplyReadReceiptIdempotent(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msgs := []model.Message{msg(1, base)}
	ev := model.ReadReceiptEvent{ConversationID: 1, MessageID: 1, ReaderID: 3}

	msgs = ApplyReadReceipt(msgs, ev)
	once := append([]int64(nil), msgs[0].ReadBy...)
	msgs = ApplyReadReceipt(msgs, ev)

	assert.Equal(t, once, msgs[0].ReadBy)
	assert.Equal(t, 1, msgs[0].ReadCount)
}

func TestApplyReadReceiptAccumulatesReaders(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msgs := []model.Message{msg(1, base)}

	msgs = ApplyReadReceipt(msgs, model.ReadReceiptEvent{MessageID: 1, ReaderID: 3})
	msgs = ApplyReadReceipt(msgs, model.ReadReceiptEvent{MessageID: 1, ReaderID: 4})

	assert.Equal(t, []int64{3, 4}, msgs[0].ReadBy)
	assert.Equal(t, 2, msgs[0].ReadCount)
}

func TestApplyReadReceiptUnknownMessage(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msgs := []model.Message{msg(1, base)}

	out := ApplyReadReceipt(msgs, model.ReadReceiptEvent{MessageID: 99, ReaderID: 3})

	assert.Equal(t, msgs, out)
}

func notif(id int64, typ string) model.NotificationEvent {
	return model.NotificationEvent{Notification: model.Notification{
		ID: id, Type: typ, Title: "t", Body: "b",
	}}
}

func TestApplyNotificationRejectsNonAnnouncement(t *testing.T) {
	var list []model.Notification
	list = ApplyNotification(list, notif(1, "reminder"))
	assert.Empty(t, list)
}

func TestApplyNotificationNewestFirstAndDeduplicated(t *testing.T) {
	var list []model.Notification
	list = ApplyNotification(list, notif(1, model.NotificationAnnouncement))
	list = ApplyNotification(list, notif(2, model.NotificationAnnouncement))
	list = ApplyNotification(list, notif(1, model.NotificationAnnouncement)) // redelivery

	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].ID)
	assert.Equal(t, int64(1), list[1].ID)
}

func TestUnreadBy(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msgs := []model.Message{
		{ID: 1, SenderID: 9, SentAt: base},                        // mine
		{ID: 2, SenderID: 2, SentAt: base, ReadBy: []int64{9}},    // already read
		{ID: 3, SenderID: 2, SentAt: base},                        // unread
		{ID: 4, SenderID: 3, SentAt: base, ReadBy: []int64{2, 3}}, // read by others only
	}

	assert.Equal(t, []int64{3, 4}, UnreadBy(msgs, 9))
}
