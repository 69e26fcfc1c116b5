package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/siakad-ng/realtime/pkg/api"
	"github.com/siakad-ng/realtime/pkg/auth"
	"github.com/siakad-ng/realtime/pkg/config"
	"github.com/siakad-ng/realtime/pkg/model"
	"github.com/siakad-ng/realtime/pkg/pusher"
	"github.com/siakad-ng/realtime/pkg/readmark"
	"github.com/siakad-ng/realtime/pkg/registry"
	"github.com/siakad-ng/realtime/pkg/stream"
)

// view is the local state of one open conversation plus the notification
// inbox, updated only through the stream reducers.
type view struct {
	mu       sync.Mutex
	messages []model.Message
	notifs   []model.Notification
}

func login(relayAddr string, userID int64) (string, error) {
	reqBody, _ := json.Marshal(map[string]int64{"user_id": userID})
	resp, err := http.Post("http://"+relayAddr+"/login", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("login failed: %s", string(body))
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return "", err
	}
	return loginResp.Token, nil
}

// injectMessage publishes a chat message through the relay's event endpoint.
// Used when no backend API is configured; with a backend, sends go through
// api.Client.SendMessage instead.
func injectMessage(relayAddr, token string, conversationID, senderID int64, body string) error {
	ev := model.NewMessageEvent{Message: model.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
	}}
	data, _ := json.Marshal(ev)
	payload, _ := json.Marshal(map[string]interface{}{
		"channel": model.ChatChannel(conversationID),
		"event":   model.EventNewChatMessage,
		"data":    json.RawMessage(data),
	})

	req, _ := http.NewRequest(http.MethodPost, "http://"+relayAddr+"/events", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("event rejected: %s", string(body))
	}
	return nil
}

func main() {
	relayAddr := flag.String("relay", "localhost:6001", "relay address for dev login/publish")
	userID := flag.Int64("user", 1, "user id")
	conversationID := flag.Int64("conversation", 1, "conversation id")
	tokenFlag := flag.String("token", "", "session token (skips dev login)")
	useAPI := flag.Bool("api", false, "send and mark-read through the backend API instead of the relay")
	flag.Parse()

	cfg := config.Load()

	// 1. Resolve the session: explicit token wins, then configured sources,
	// then the dev relay login.
	token := *tokenFlag
	if token == "" {
		token = cfg.Token
	}
	if token == "" {
		log.Printf("Logging in as user %d...", *userID)
		t, err := login(*relayAddr, *userID)
		if err != nil {
			log.Fatal("Login failed: ", err)
		}
		token = t
	}
	session, err := auth.NewSession(token)
	if err != nil {
		log.Fatal("Bad session token: ", err)
	}

	// 2. Open the managed connection and subscribe.
	mgr := pusher.NewManager(cfg.Broadcast, session)
	conn, ok := mgr.Connection()
	if !ok {
		log.Fatal("Realtime unavailable, nothing to watch")
	}
	defer mgr.Shutdown()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = conn.WaitConnected(waitCtx)
	waitCancel()
	if err != nil {
		log.Fatal("Connect failed: ", err)
	}

	var apiClient *api.Client
	if *useAPI {
		apiClient = api.New(cfg.APIBaseURL, session.Token)
	}

	v := &view{}
	marker := readmark.New(readmark.DefaultDelay, func(convID int64, ids []int64) error {
		if apiClient == nil {
			log.Printf("Would mark %d messages read in conversation %d", len(ids), convID)
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return apiClient.MarkRead(ctx, convID, ids)
	})
	defer marker.Stop()

	reg := registry.New(conn)
	defer reg.Close()

	chatHandle := reg.Subscribe(model.ChatChannel(*conversationID), map[string]pusher.Handler{
		model.EventNewChatMessage: func(_, _ string, data json.RawMessage) {
			ev, err := model.DecodeNewMessage(data)
			if err != nil {
				log.Printf("Dropping event: %v", err)
				return
			}
			v.mu.Lock()
			v.messages = stream.ApplyNewMessage(v.messages, ev)
			msgs := v.messages
			v.mu.Unlock()
			if ev.Message.SenderID != session.UserID {
				fmt.Printf("\r%d: %s\n> ", ev.Message.SenderID, ev.Message.Body)
			}
			marker.Observe(*conversationID, msgs, session.UserID)
		},
		model.EventMessageRead: func(_, _ string, data json.RawMessage) {
			ev, err := model.DecodeReadReceipt(data)
			if err != nil {
				log.Printf("Dropping event: %v", err)
				return
			}
			v.mu.Lock()
			v.messages = stream.ApplyReadReceipt(v.messages, ev)
			v.mu.Unlock()
			fmt.Printf("\rMessage %d read by %d\n> ", ev.MessageID, ev.ReaderID)
		},
	})
	defer chatHandle.Unsubscribe()

	notifHandle := reg.Subscribe(model.UserChannel(session.UserID), map[string]pusher.Handler{
		model.EventNewNotification: func(_, _ string, data json.RawMessage) {
			ev, err := model.DecodeNotification(data)
			if err != nil {
				log.Printf("Dropping event: %v", err)
				return
			}
			v.mu.Lock()
			v.notifs = stream.ApplyNotification(v.notifs, ev)
			v.mu.Unlock()
			if ev.Notification.Type == model.NotificationAnnouncement {
				fmt.Printf("\r[%s] %s: %s\n> ", ev.Notification.Sender, ev.Notification.Title, ev.Notification.Body)
			}
		},
	})
	defer notifHandle.Unsubscribe()

	// 3. Fetch history through the backend when available.
	if apiClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		history, err := apiClient.History(ctx, *conversationID, 1)
		cancel()
		if err != nil {
			log.Printf("History fetch failed (retry by restarting): %v", err)
		} else {
			v.mu.Lock()
			for _, m := range history {
				v.messages = stream.ApplyNewMessage(v.messages, model.NewMessageEvent{Message: m})
			}
			for _, m := range v.messages {
				fmt.Printf("%d: %s\n", m.SenderID, m.Body)
			}
			msgs := v.messages
			v.mu.Unlock()
			marker.Observe(*conversationID, msgs, session.UserID)
		}
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	// 4. Read from stdin and send messages.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			text := scanner.Text()
			if text == "" {
				fmt.Print("> ")
				continue
			}
			if text == "/quit" {
				close(interrupt)
				return
			}

			if apiClient != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				msg, err := apiClient.SendMessage(ctx, *conversationID, text)
				cancel()
				if err != nil {
					log.Printf("Send failed (type again to retry): %v", err)
				} else {
					v.mu.Lock()
					v.messages = stream.ApplyNewMessage(v.messages, model.NewMessageEvent{Message: msg})
					v.mu.Unlock()
				}
			} else if err := injectMessage(*relayAddr, session.Token, *conversationID, session.UserID, text); err != nil {
				log.Printf("Send failed (type again to retry): %v", err)
			}
			fmt.Print("> ")
		}
	}()

	<-interrupt
	log.Println("interrupt")
}
