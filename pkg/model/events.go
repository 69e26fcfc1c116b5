package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Wire names of the broadcast channels and events. These are part of the
// interop contract with the backend and must not change. The leading dot on
// NewNotification marks an unnamespaced (client-side) event name in the
// broadcast library convention; it is stripped when matching inbound frames.
const (
	EventNewChatMessage  = "NewChatMessage"
	EventMessageRead     = "MessageRead"
	EventNewNotification = ".NewNotification"
)

// ChatChannel returns the per-conversation channel name.
func ChatChannel(conversationID int64) string {
	return fmt.Sprintf("chat.%d", conversationID)
}

// UserChannel returns the per-user notification channel name.
func UserChannel(userID int64) string {
	return fmt.Sprintf("user.%d", userID)
}

// NewMessageEvent is emitted on a chat channel when a participant sends a
// message.
type NewMessageEvent struct {
	Message Message `json:"message"`
}

// ReadReceiptEvent is emitted on a chat channel when a participant has viewed
// a message.
type ReadReceiptEvent struct {
	ConversationID int64 `json:"conversation_id"`
	MessageID      int64 `json:"message_id"`
	ReaderID       int64 `json:"reader_id"`
}

// NotificationEvent is emitted on a user channel.
type NotificationEvent struct {
	Notification Notification `json:"notification"`
}

// DecodeNewMessage validates and decodes a NewChatMessage payload.
func DecodeNewMessage(data []byte) (NewMessageEvent, error) {
	var ev NewMessageEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("decode %s: %w", EventNewChatMessage, err)
	}
	if ev.Message.ID == 0 || ev.Message.ConversationID == 0 {
		return ev, errors.New("new message event missing id or conversation id")
	}
	return ev, nil
}

// DecodeReadReceipt validates and decodes a MessageRead payload.
func DecodeReadReceipt(data []byte) (ReadReceiptEvent, error) {
	var ev ReadReceiptEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("decode %s: %w", EventMessageRead, err)
	}
	if ev.MessageID == 0 || ev.ReaderID == 0 {
		return ev, errors.New("read receipt event missing message or reader id")
	}
	return ev, nil
}

// DecodeNotification validates and decodes a NewNotification payload.
func DecodeNotification(data []byte) (NotificationEvent, error) {
	var ev NotificationEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("decode %s: %w", EventNewNotification, err)
	}
	if ev.Notification.ID == 0 {
		return ev, errors.New("notification event missing id")
	}
	return ev, nil
}
