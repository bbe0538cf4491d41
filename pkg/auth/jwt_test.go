package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenManager() *TokenManager {
	return NewTokenManager("test-access-secret", "test-refresh-secret", 15*time.Minute, 7*24*time.Hour)
}

func TestTokenManager_GenerateAndValidate(t *testing.T) {
	tm := newTestTokenManager()
	meta := Metadata{FirstName: "Ada", LastName: "Lovelace"}

	pair, err := tm.GenerateTokenPair("user-123", "ada@example.com", meta)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), pair.ExpiresAt, 5*time.Second)

	claims, err := tm.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID())
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, meta, claims.UserMetadata)
	assert.Equal(t, TokenTypeAccess, claims.Type)
	assert.Equal(t, "taskboard", claims.Issuer)

	refresh, err := tm.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, refresh.Type)
}

func TestTokenManager_RejectsWrongType(t *testing.T) {
	tm := newTestTokenManager()
	pair, err := tm.GenerateTokenPair("user-123", "ada@example.com", Metadata{})
	require.NoError(t, err)

	// Signed with the refresh secret, so the access check fails on the signature.
	_, err = tm.ValidateAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	shared := NewTokenManager("same", "same", time.Minute, time.Hour)
	pair, err = shared.GenerateTokenPair("user-123", "ada@example.com", Metadata{})
	require.NoError(t, err)
	_, err = shared.ValidateAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidClaims)
}

func TestTokenManager_Expired(t *testing.T) {
	tm := newTestTokenManager()
	issued := time.Now().Add(-time.Hour)
	tm.now = func() time.Time { return issued }

	pair, err := tm.GenerateTokenPair("user-123", "ada@example.com", Metadata{})
	require.NoError(t, err)

	tm.now = time.Now
	_, err = tm.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenManager_Tampered(t *testing.T) {
	tm := newTestTokenManager()
	other := NewTokenManager("other-secret", "other-refresh", time.Minute, time.Hour)

	pair, err := other.GenerateTokenPair("user-123", "ada@example.com", Metadata{})
	require.NoError(t, err)

	_, err = tm.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPeekExpiry(t *testing.T) {
	tm := newTestTokenManager()
	pair, err := tm.GenerateTokenPair("user-123", "ada@example.com", Metadata{})
	require.NoError(t, err)

	exp, err := PeekExpiry(pair.AccessToken)
	require.NoError(t, err)
	assert.WithinDuration(t, pair.ExpiresAt, exp, time.Second)

	_, err = PeekExpiry("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
