package pusher

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siakad-ng/realtime/pkg/auth"
	"github.com/siakad-ng/realtime/pkg/config"
)

func TestConnectionUnavailableWithoutToken(t *testing.T) {
	m := NewManager(config.Broadcast{}, nil)
	conn, ok := m.Connection()
	assert.Nil(t, conn)
	assert.False(t, ok, "missing session means realtime is unavailable, not an error")

	m = NewManager(config.Broadcast{}, &auth.Session{})
	conn, ok = m.Connection()
	assert.Nil(t, conn)
	assert.False(t, ok)
}

func TestConnectionUnavailableWhenTokenExpired(t *testing.T) {
	session := &auth.Session{Token: "x", ExpiresAt: time.Now().Add(-time.Minute)}
	m := NewManager(config.Broadcast{}, session)
	conn, ok := m.Connection()
	assert.Nil(t, conn)
	assert.False(t, ok)
}

func TestBuildOptionsSelectsProvider(t *testing.T) {
	hosted := BuildOptions(config.Broadcast{
		Provider: config.ProviderHosted,
		Key:      "k",
		Cluster:  "ap1",
	}, "tok")
	assert.Equal(t, "ws-ap1.pusher.com:443", hosted.Host)
	assert.True(t, hosted.TLS)

	self := BuildOptions(config.Broadcast{
		Provider: config.ProviderSelfHosted,
		Key:      "k",
		Host:     "localhost",
		Port:     "6001",
	}, "tok")
	assert.Equal(t, "localhost:6001", self.Host)
	assert.False(t, self.TLS)
}

func TestOptionsURL(t *testing.T) {
	o := Options{Key: "k", Host: "localhost:6001"}
	u := o.URL()
	assert.Contains(t, u, "ws://localhost:6001/app/k")
	assert.Contains(t, u, "protocol=7")

	o.TLS = true
	assert.Contains(t, o.URL(), "wss://")
}

func TestChannelNameMapping(t *testing.T) {
	assert.Equal(t, "private-chat.12", WireName("chat.12"))
	assert.Equal(t, "private-chat.12", WireName("private-chat.12"))
	assert.Equal(t, "chat.12", LogicalName("private-chat.12"))
	assert.Equal(t, "user.7", LogicalName("user.7"))
}

func TestSignIsStable(t *testing.T) {
	a := Sign([]byte("secret"), "key", "1.1", "private-chat.1")
	b := Sign([]byte("secret"), "key", "1.1", "private-chat.1")
	assert.Equal(t, a, b)
	assert.Contains(t, a, "key:")

	c := Sign([]byte("other"), "key", "1.1", "private-chat.1")
	assert.NotEqual(t, a, c)
}

func TestDecodeDataHandlesDoubleEncoding(t *testing.T) {
	type payload struct {
		SocketID string `json:"socket_id"`
	}

	plain := json.RawMessage(`{"socket_id":"1.2"}`)
	doubled, err := json.Marshal(string(plain))
	require.NoError(t, err)

	var p payload
	require.NoError(t, decodeData(plain, &p))
	assert.Equal(t, "1.2", p.SocketID)

	p = payload{}
	require.NoError(t, decodeData(doubled, &p))
	assert.Equal(t, "1.2", p.SocketID)

	assert.Equal(t, plain, normalizeData(doubled))
	assert.Equal(t, plain, normalizeData(plain))
}

func TestBindAndDispatch(t *testing.T) {
	c := &Connection{bindings: make(map[string]map[string][]Handler)}

	var got []string
	c.Bind("user.7", ".NewNotification", func(channel, event string, _ json.RawMessage) {
		got = append(got, channel+"/"+event)
	})

	// Wire frames carry the private- prefix and the unnamespaced event name.
	c.dispatch("private-user.7", "NewNotification", json.RawMessage(`{}`))
	require.Equal(t, []string{"user.7/NewNotification"}, got)

	c.UnbindChannel("user.7")
	c.dispatch("private-user.7", "NewNotification", json.RawMessage(`{}`))
	assert.Len(t, got, 1, "unbound channels drop late events")
}
