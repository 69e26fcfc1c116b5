// Package api is the client for the backend REST API. Every endpoint returns
// the uniform envelope {status, data, message}; a non-success status is a
// recoverable application error, never a crash.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/siakad-ng/realtime/pkg/model"
)

// StatusError is an application-level failure reported inside the envelope.
// It is always retryable from the caller's point of view.
type StatusError struct {
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api: %s: %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    http.DefaultClient,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env model.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("api: %s %s: decode envelope: %w", method, path, err)
	}
	if !env.OK() {
		return &StatusError{Status: env.Status, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("api: %s %s: decode data: %w", method, path, err)
		}
	}
	return nil
}

// Conversations lists the current user's conversations.
func (c *Client) Conversations(ctx context.Context) ([]model.Conversation, error) {
	var out []model.Conversation
	err := c.do(ctx, http.MethodGet, "/conversations", nil, &out)
	return out, err
}

// CreateConversation finds or creates the direct conversation with a user.
func (c *Client) CreateConversation(ctx context.Context, otherUserID int64) (model.Conversation, error) {
	var out model.Conversation
	err := c.do(ctx, http.MethodPost, "/conversations",
		map[string]int64{"other_user_id": otherUserID}, &out)
	return out, err
}

// History fetches one page of a conversation's messages.
func (c *Client) History(ctx context.Context, conversationID int64, page int) ([]model.Message, error) {
	var out []model.Message
	path := fmt.Sprintf("/conversations/%d/messages?page=%d", conversationID, page)
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// SendMessage posts a message and returns the server-confirmed record, whose
// id reconciles the optimistic local copy.
func (c *Client) SendMessage(ctx context.Context, conversationID int64, body string) (model.Message, error) {
	var out model.Message
	path := fmt.Sprintf("/conversations/%d/messages", conversationID)
	err := c.do(ctx, http.MethodPost, path, map[string]string{"body": body}, &out)
	return out, err
}

// MarkRead acknowledges a batch of message ids in one call.
func (c *Client) MarkRead(ctx context.Context, conversationID int64, messageIDs []int64) error {
	path := fmt.Sprintf("/conversations/%d/read", conversationID)
	return c.do(ctx, http.MethodPost, path, map[string][]int64{"message_ids": messageIDs}, nil)
}

// Notifications lists the current user's notifications, newest first.
func (c *Client) Notifications(ctx context.Context) ([]model.Notification, error) {
	var out []model.Notification
	err := c.do(ctx, http.MethodGet, "/notifications", nil, &out)
	return out, err
}

// MarkNotificationRead flags one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/notifications/%d/read", id), nil, nil)
}
