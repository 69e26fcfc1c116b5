package model

import "time"

// Message is a chat message as persisted by the backend. Once it carries a
// server-assigned ID it is immutable except for its read state.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	Body           string    `json:"body"`
	SentAt         time.Time `json:"sent_at"`
	ReadCount      int       `json:"read_count"`
	ReadBy         []int64   `json:"read_by,omitempty"`
}

// ReadByUser reports whether userID is already in the message's reader list.
func (m Message) ReadByUser(userID int64) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// Before orders messages by (sent_at, id) ascending. Ties on the timestamp are
// broken by the server-assigned id.
func (m Message) Before(other Message) bool {
	if !m.SentAt.Equal(other.SentAt) {
		return m.SentAt.Before(other.SentAt)
	}
	return m.ID < other.ID
}

type Conversation struct {
	ID          int64     `json:"id"`
	OtherUserID int64     `json:"other_user_id"`
	LastUpdated time.Time `json:"last_updated"`
	UnreadCount int64     `json:"unread_count"`
}
