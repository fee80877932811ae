package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_ACCESS_SECRET", strings.Repeat("a", 32))
	t.Setenv("JWT_REFRESH_SECRET", strings.Repeat("b", 32))
	t.Setenv("AWS_S3_BUCKET", "signage-media")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Storage.SignedURLTTL)
	assert.Equal(t, 100, cfg.Storage.MaxFileMB)
	assert.Equal(t, 1000, cfg.RateLimit.Points)
	assert.Equal(t, time.Hour, cfg.RateLimit.Window)
	assert.Equal(t, 5*time.Minute, cfg.Players.OnlineThreshold)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PLAYER_ONLINE_THRESHOLD", "900")
	t.Setenv("JWT_ACCESS_TTL", "30m")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("AWS_S3_PATH_STYLE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Players.OnlineThreshold)
	assert.Equal(t, 30*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Storage.PathStyle)
}

func TestLoadRejectsShortSecrets(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_REFRESH_SECRET", "short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_REFRESH_SECRET")
}

func TestLoadRequiresBucket(t *testing.T) {
	setRequired(t)
	t.Setenv("AWS_S3_BUCKET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AWS_S3_BUCKET")
}
