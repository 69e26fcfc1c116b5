package pusher

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Protocol event names (Pusher wire protocol).
const (
	eventEstablished      = "pusher:connection_established"
	eventPing             = "pusher:ping"
	eventPong             = "pusher:pong"
	eventError            = "pusher:error"
	eventSubscribe        = "pusher:subscribe"
	eventUnsubscribe      = "pusher:unsubscribe"
	eventSubscriptionDone = "pusher_internal:subscription_succeeded"
)

// frame is a single websocket message in the Pusher protocol.
type frame struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type establishedPayload struct {
	SocketID        string `json:"socket_id"`
	ActivityTimeout int    `json:"activity_timeout"`
}

type subscribePayload struct {
	Channel string `json:"channel"`
	Auth    string `json:"auth,omitempty"`
}

type errorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// decodeData unmarshals an event payload. The protocol double-encodes system
// event payloads (data is a JSON string containing JSON); channel events may
// arrive either way depending on the server, so both forms are accepted.
func decodeData(raw json.RawMessage, v interface{}) error {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		return json.Unmarshal([]byte(s), v)
	}
	return json.Unmarshal(raw, v)
}

// normalizeData flattens a possibly double-encoded payload to plain JSON so
// handlers always see the payload object itself.
func normalizeData(raw json.RawMessage) json.RawMessage {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return json.RawMessage(s)
		}
	}
	return raw
}

const privatePrefix = "private-"

// WireName maps a logical channel name (chat.12, user.7) to its on-the-wire
// private channel name. Logical names are the interop contract; the private-
// prefix is how this protocol family marks auth-required channels.
func WireName(channel string) string {
	if strings.HasPrefix(channel, privatePrefix) {
		return channel
	}
	return privatePrefix + channel
}

// LogicalName strips the wire prefix back off.
func LogicalName(channel string) string {
	return strings.TrimPrefix(channel, privatePrefix)
}

// Sign computes the private-channel auth signature: the app key and a
// hex-encoded HMAC-SHA256 of "socketID:channel" under the app secret.
func Sign(secret []byte, key, socketID, channel string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(socketID + ":" + channel))
	return key + ":" + hex.EncodeToString(mac.Sum(nil))
}
