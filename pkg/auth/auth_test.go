package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test_secret")

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(secret, 42, time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken(secret, 42, time.Hour)
	require.NoError(t, err)

	_, err = ValidateToken([]byte("other"), token)
	assert.Error(t, err)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	token, err := GenerateToken(secret, 42, -time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken(secret, token)
	assert.Error(t, err)
}

func TestParseClaimsWithoutSecret(t *testing.T) {
	token, err := GenerateToken(secret, 42, time.Hour)
	require.NoError(t, err)

	claims, err := ParseClaims(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
}

func TestNewSessionExtractsIdentityAndExpiry(t *testing.T) {
	token, err := GenerateToken(secret, 7, time.Hour)
	require.NoError(t, err)

	s, err := NewSession(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), s.UserID)
	assert.False(t, s.Expired())
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.ExpiresAt, time.Minute)
}

func TestLoadSessionPrecedence(t *testing.T) {
	fromValue, err := GenerateToken(secret, 1, time.Hour)
	require.NoError(t, err)
	fromFile, err := GenerateToken(secret, 2, time.Hour)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte(fromFile+"\n"), 0600))

	s, err := LoadSession(fromValue, path)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.UserID, "explicit token value wins over the file")

	s, err = LoadSession("", path)
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.UserID)

	_, err = LoadSession("", "")
	assert.ErrorIs(t, err, ErrNoToken)
}
