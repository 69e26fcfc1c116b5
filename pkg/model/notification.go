package model

import "time"

// NotificationAnnouncement is the only notification type consumed by the
// realtime client; other types are server/UI concerns and are ignored here.
const NotificationAnnouncement = "announcement"

type Notification struct {
	ID       int64             `json:"id"`
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	SentAt   time.Time         `json:"sent_at"`
	Read     bool              `json:"read"`
	Sender   string            `json:"sender"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
