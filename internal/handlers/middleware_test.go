package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/brandonhuynh1/signage-api/internal/config"
	"github.com/brandonhuynh1/signage-api/internal/database"
	"github.com/brandonhuynh1/signage-api/internal/models"
	"github.com/brandonhuynh1/signage-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAccessSecret  = "access-secret-access-secret-0123456789"
	testRefreshSecret = "refresh-secret-refresh-secret-0123456789"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTokenManager(t *testing.T, accessTTL time.Duration) *services.TokenManager {
	t.Helper()
	tm, err := services.NewTokenManager(config.AuthConfig{
		AccessSecret:  testAccessSecret,
		RefreshSecret: testRefreshSecret,
		AccessTTL:     accessTTL,
		RefreshTTL:    time.Hour,
	})
	require.NoError(t, err)
	return tm
}

func issue(t *testing.T, tm *services.TokenManager) *services.TokenPair {
	t.Helper()
	pair, err := tm.Issue(&models.AdminUser{ID: 7, Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	return pair
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func protectedRouter(tm *services.TokenManager) *gin.Engine {
	r := gin.New()
	r.GET("/private", authMiddleware(tm), func(c *gin.Context) {
		claims := c.MustGet(claimsKey).(*services.Claims)
		c.JSON(http.StatusOK, gin.H{"id": claims.UserID})
	})
	return r
}

func getWithToken(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewareAcceptsAccessToken(t *testing.T) {
	tm := newTokenManager(t, time.Minute)
	pair := issue(t, tm)

	w := getWithToken(protectedRouter(tm), "/private", pair.AccessToken)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 7, decode(t, w)["id"])
}

func TestAuthMiddlewareRejections(t *testing.T) {
	tm := newTokenManager(t, time.Minute)
	pair := issue(t, tm)
	expired := issue(t, newTokenManager(t, -time.Minute))

	tests := []struct {
		name  string
		token string
		flag  string
	}{
		{"missing", "", ""},
		{"garbage", "not-a-jwt", "malformed"},
		{"refresh used as access", pair.RefreshToken, "malformed"},
		{"expired", expired.AccessToken, "expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := getWithToken(protectedRouter(tm), "/private", tt.token)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			body := decode(t, w)
			if tt.flag != "" {
				assert.Equal(t, true, body[tt.flag])
			} else {
				assert.Equal(t, "Authentication required", body["error"])
			}
		})
	}
}

func newLimitedRouter(t *testing.T, points int) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := database.WrapRedisClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rc.Close() })

	r := gin.New()
	r.Use(RateLimiter(rc, config.RateLimitConfig{Points: points, Window: time.Hour}, zerolog.Nop()))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r, mr
}

func TestRateLimiterBlocksAfterLimit(t *testing.T) {
	r, mr := newLimitedRouter(t, 2)

	for i := 0; i < 2; i++ {
		w := getWithToken(r, "/ping", "")
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := getWithToken(r, "/ping", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Too many requests", body["error"])
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["code"])
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// Window expiry resets the counter
	mr.FastForward(time.Hour + time.Second)
	w = getWithToken(r, "/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiterFailsOpen(t *testing.T) {
	r, mr := newLimitedRouter(t, 1)
	mr.Close()

	for i := 0; i < 3; i++ {
		w := getWithToken(r, "/ping", "")
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
