package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siakad-ng/realtime/pkg/model"
)

func envelope(status string, data interface{}, message string) []byte {
	raw, _ := json.Marshal(data)
	out, _ := json.Marshal(model.Envelope{Status: status, Data: raw, Message: message})
	return out
}

func TestHistoryDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/conversations/12/messages", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write(envelope("success", []model.Message{{ID: 1, ConversationID: 12}}, ""))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	msgs, err := c.History(context.Background(), 12, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(1), msgs[0].ID)
}

func TestFailedStatusIsRetryableError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelope("failed", nil, "periode akademik tidak aktif"))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	_, err := c.Conversations(context.Background())
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr), "envelope failures surface as StatusError")
	assert.Equal(t, "failed", statusErr.Status)
	assert.Contains(t, statusErr.Message, "periode")
}

func TestErrorStatusIsRetryableError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write(envelope("error", nil, "boom"))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	err := c.MarkNotificationRead(context.Background(), 5)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, "error", statusErr.Status)
}

func TestMarkReadSendsBatchedIDs(t *testing.T) {
	var got map[string][]int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/conversations/9/read", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write(envelope("success", nil, ""))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	require.NoError(t, c.MarkRead(context.Background(), 9, []int64{1, 2, 3}))
	assert.Equal(t, []int64{1, 2, 3}, got["message_ids"])
}

func TestSendMessageReturnsConfirmedRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "halo", body["body"])
		w.Write(envelope("success", model.Message{ID: 77, ConversationID: 9, Body: "halo"}, ""))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	msg, err := c.SendMessage(context.Background(), 9, "halo")
	require.NoError(t, err)
	assert.Equal(t, int64(77), msg.ID, "server-assigned id reconciles the optimistic copy")
}

func TestTransportErrorIsPlainError(t *testing.T) {
	c := New("http://127.0.0.1:1", "tok") // nothing listens here
	_, err := c.Conversations(context.Background())
	require.Error(t, err)

	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr), "transport failures are not envelope failures")
}
