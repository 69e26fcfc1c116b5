package auth

import (
	"errors"
	"os"
	"strings"
	"time"
)

// Session is the current user's authenticated identity, resolved once at
// startup and passed to anything that needs the bearer token.
type Session struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
}

var ErrNoToken = errors.New("auth: no session token available")

// NewSession builds a session from a bearer token by extracting its claims.
func NewSession(token string) (*Session, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	claims, err := ParseClaims(token)
	if err != nil {
		return nil, err
	}
	s := &Session{Token: token, UserID: claims.UserID}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// LoadSession resolves the session token with a fixed precedence: an explicit
// token value wins, then the token file. Replaces the ad-hoc fallback chain
// each call site used to run.
func LoadSession(token, tokenFile string) (*Session, error) {
	if token != "" {
		return NewSession(token)
	}
	if tokenFile != "" {
		raw, err := os.ReadFile(tokenFile)
		if err != nil {
			return nil, err
		}
		return NewSession(strings.TrimSpace(string(raw)))
	}
	return nil, ErrNoToken
}

// Expired reports whether the token's expiry has passed. Tokens without an
// exp claim never expire client-side.
func (s *Session) Expired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}
