package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "chat.12", ChatChannel(12))
	assert.Equal(t, "user.7", UserChannel(7))
}

func TestDecodeNewMessage(t *testing.T) {
	ev, err := DecodeNewMessage([]byte(`{"message":{"id":5,"conversation_id":1,"sender_id":2,"body":"hi","sent_at":"2026-03-01T10:00:00Z"}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(5), ev.Message.ID)

	_, err = DecodeNewMessage([]byte(`{"message":{"body":"no ids"}}`))
	assert.Error(t, err)

	_, err = DecodeNewMessage([]byte(`not json`))
	assert.Error(t, err)
}

func TestDecodeReadReceipt(t *testing.T) {
	ev, err := DecodeReadReceipt([]byte(`{"conversation_id":1,"message_id":5,"reader_id":3}`))
	require.NoError(t, err)
	assert.Equal(t, int64(3), ev.ReaderID)

	_, err = DecodeReadReceipt([]byte(`{"conversation_id":1}`))
	assert.Error(t, err)
}

func TestDecodeNotification(t *testing.T) {
	ev, err := DecodeNotification([]byte(`{"notification":{"id":9,"type":"announcement","title":"UTS","metadata":{"class_code":"IF-301"}}}`))
	require.NoError(t, err)
	assert.Equal(t, "IF-301", ev.Notification.Metadata["class_code"])

	_, err = DecodeNotification([]byte(`{"notification":{"type":"announcement"}}`))
	assert.Error(t, err)
}
