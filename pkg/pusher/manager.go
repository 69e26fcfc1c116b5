package pusher

import (
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/siakad-ng/realtime/pkg/auth"
	"github.com/siakad-ng/realtime/pkg/config"
)

// BuildOptions maps broadcast configuration to dial options. Provider
// selection happens here and only here; callers never branch on it.
func BuildOptions(cfg config.Broadcast, token string) Options {
	o := Options{
		Key:          cfg.Key,
		AuthEndpoint: cfg.AuthEndpoint,
		Token:        token,
	}
	switch cfg.Provider {
	case config.ProviderHosted:
		o.Host = fmt.Sprintf("ws-%s.pusher.com:443", cfg.Cluster)
		o.TLS = true
	default:
		o.Host = net.JoinHostPort(cfg.Host, cfg.Port)
		o.TLS = cfg.TLS
	}
	return o
}

// Manager owns the one live connection per session. Constructed once at
// application start and passed to anything needing realtime access; Shutdown
// on logout replaces the old module-global connection pattern.
type Manager struct {
	cfg     config.Broadcast
	session *auth.Session

	mu   sync.Mutex
	conn *Connection
}

func NewManager(cfg config.Broadcast, session *auth.Session) *Manager {
	return &Manager{cfg: cfg, session: session}
}

// Connection returns the live connection, dialing lazily on first use. The
// second return is false when realtime is unavailable (no or expired session
// token); callers fall back to plain REST and must not treat this as fatal.
func (m *Manager) Connection() (*Connection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		return m.conn, true
	}
	if m.session == nil || m.session.Token == "" {
		log.Printf("Realtime unavailable: no session token")
		return nil, false
	}
	if m.session.Expired() {
		log.Printf("Realtime unavailable: session token expired")
		return nil, false
	}

	m.conn = newConnection(BuildOptions(m.cfg, m.session.Token))
	return m.conn, true
}

// Shutdown closes the connection if one was ever dialed. Safe to call twice.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
}
