package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
)

type LoginResponse struct {
	Token string `json:"token"`
}

func main() {
	relayAddr := "http://localhost:6001"

	// 1. Mint a dev token
	reqBody, _ := json.Marshal(map[string]int64{"user_id": 42})
	resp, err := http.Post(relayAddr+"/login", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	var loginResp LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Token: %s...\n", loginResp.Token[:10])

	// 2. Sign a private channel subscription
	form := url.Values{}
	form.Set("socket_id", "1.1")
	form.Set("channel_name", "private-user.42")
	req, _ := http.NewRequest("POST", relayAddr+"/broadcasting/auth", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Add("Authorization", "Bearer "+loginResp.Token)

	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal("Auth request failed:", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	log.Printf("Channel auth (%d): %s", resp.StatusCode, string(body))

	// 3. Inject an announcement onto the user channel
	event, _ := json.Marshal(map[string]interface{}{
		"channel": "user.42",
		"event":   ".NewNotification",
		"data": map[string]interface{}{
			"notification": map[string]interface{}{
				"type":   "announcement",
				"title":  "Smoke test",
				"body":   "relay is alive",
				"sender": "verify_relay",
			},
		},
	})
	req, _ = http.NewRequest("POST", relayAddr+"/events", bytes.NewBuffer(event))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Add("Authorization", "Bearer "+loginResp.Token)

	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal("Event request failed:", err)
	}
	defer resp.Body.Close()
	log.Printf("Event publish: %d", resp.StatusCode)
}
