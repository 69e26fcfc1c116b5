package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/siakad-ng/realtime/pkg/auth"
	"github.com/siakad-ng/realtime/pkg/config"
	"github.com/siakad-ng/realtime/pkg/model"
	"github.com/siakad-ng/realtime/pkg/pusher"
)

type LoginRequest struct {
	UserID int64 `json:"user_id"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

// LoginHandler mints a dev token for any user id. Development convenience
// only; a real deployment authenticates against the backend.
func LoginHandler(cfg config.Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.UserID == 0 {
			http.Error(w, "user_id is required", http.StatusBadRequest)
			return
		}

		token, err := auth.GenerateToken([]byte(cfg.JWTSecret), req.UserID, cfg.JWTExpire)
		if err != nil {
			http.Error(w, "Failed to generate token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(LoginResponse{Token: token})
	}
}

// AuthMiddleware validates the bearer token and stores the claims in the
// request context.
func AuthMiddleware(secret []byte, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.Header.Get("Authorization")
		if tokenString == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}
		if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
			tokenString = tokenString[7:]
		}

		claims, err := auth.ValidateToken(secret, tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), auth.UserKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ChannelAuthHandler signs private-channel subscriptions. A user channel may
// only be signed for its own user; chat channel membership is the backend's
// call, so the relay signs any chat channel for an authenticated user.
func ChannelAuthHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		claims, ok := r.Context().Value(auth.UserKey).(*auth.Claims)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		socketID := r.FormValue("socket_id")
		wireChannel := r.FormValue("channel_name")
		if socketID == "" || wireChannel == "" {
			http.Error(w, "socket_id and channel_name are required", http.StatusBadRequest)
			return
		}

		logical := pusher.LogicalName(wireChannel)
		if strings.HasPrefix(logical, "user.") && logical != model.UserChannel(claims.UserID) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		sig := pusher.Sign(hub.secret, hub.key, socketID, wireChannel)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"auth": sig})
	}
}

type eventRequest struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}

// EventsHandler injects an event onto a channel, the HTTP publish side of the
// relay. Chat messages and notifications missing server-assigned fields get
// an id and timestamp here, the way the backend would assign them.
func EventsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req eventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Channel == "" || req.Event == "" {
			http.Error(w, "channel and event are required", http.StatusBadRequest)
			return
		}

		data, err := hub.stampEvent(req.Event, req.Data)
		if err != nil {
			http.Error(w, "Invalid event payload: "+err.Error(), http.StatusBadRequest)
			return
		}

		hub.Broadcast(pusher.WireName(req.Channel), req.Event, data)
		log.Printf("Event %s published to %s", req.Event, req.Channel)
		w.WriteHeader(http.StatusAccepted)
	}
}

// stampEvent fills in server-assigned fields on known event payloads.
func (h *Hub) stampEvent(event string, data json.RawMessage) (json.RawMessage, error) {
	switch strings.TrimPrefix(event, ".") {
	case model.EventNewChatMessage:
		var ev model.NewMessageEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		if ev.Message.ID == 0 {
			ev.Message.ID = h.snowflake.Generate()
		}
		if ev.Message.SentAt.IsZero() {
			ev.Message.SentAt = time.Now()
		}
		return json.Marshal(ev)

	case strings.TrimPrefix(model.EventNewNotification, "."):
		var ev model.NotificationEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		if ev.Notification.ID == 0 {
			ev.Notification.ID = h.snowflake.Generate()
		}
		if ev.Notification.SentAt.IsZero() {
			ev.Notification.SentAt = time.Now()
		}
		return json.Marshal(ev)
	}
	return data, nil
}
