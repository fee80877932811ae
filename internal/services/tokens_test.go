package services

import (
	"testing"
	"time"

	"github.com/brandonhuynh1/signage-api/internal/config"
	"github.com/brandonhuynh1/signage-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokens(t *testing.T) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager(config.AuthConfig{
		AccessSecret:  "access-secret-access-secret-0123456789",
		RefreshSecret: "refresh-secret-refresh-secret-0123456789",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
	})
	require.NoError(t, err)
	return tm
}

func TestNewTokenManagerRejectsSharedSecret(t *testing.T) {
	_, err := NewTokenManager(config.AuthConfig{AccessSecret: "same", RefreshSecret: "same"})
	assert.Error(t, err)

	_, err = NewTokenManager(config.AuthConfig{AccessSecret: "only-access"})
	assert.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	tm := newTestTokens(t)
	user := &models.AdminUser{ID: 42, Name: "Ada", Email: "ada@example.com"}

	pair, err := tm.Issue(user)
	require.NoError(t, err)

	access, err := tm.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.EqualValues(t, 42, access.UserID)
	assert.Equal(t, "ada@example.com", access.Email)
	assert.Equal(t, TokenTypeAccess, access.Type)

	refresh, err := tm.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, refresh.Type)
}

func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	tm := newTestTokens(t)
	pair, err := tm.Issue(&models.AdminUser{ID: 1})
	require.NoError(t, err)

	_, err = tm.ParseAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = tm.ParseRefresh(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = tm.ParseAccess("definitely.not.jwt")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestExpiredToken(t *testing.T) {
	tm := newTestTokens(t)
	issued := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	tm.now = func() time.Time { return issued }

	pair, err := tm.Issue(&models.AdminUser{ID: 1})
	require.NoError(t, err)

	tm.now = func() time.Time { return issued.Add(16 * time.Minute) }
	_, err = tm.ParseAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)

	// Refresh lives longer
	_, err = tm.ParseRefresh(pair.RefreshToken)
	assert.NoError(t, err)
}
