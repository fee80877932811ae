package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/brandonhuynh1/signage-api/internal/config"
	"github.com/brandonhuynh1/signage-api/internal/database"
	"github.com/brandonhuynh1/signage-api/internal/metrics"
	"github.com/brandonhuynh1/signage-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// claimsKey is where authMiddleware stores the caller's *services.Claims
const claimsKey = "claims"

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// authenticate validates an access token and answers 401 itself when it fails
func authenticate(c *gin.Context, tokens *services.TokenManager, raw string) (*services.Claims, bool) {
	if raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return nil, false
	}

	claims, err := tokens.ParseAccess(raw)
	if errors.Is(err, services.ErrTokenExpired) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token expired", "expired": true})
		return nil, false
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token", "malformed": true})
		return nil, false
	}
	return claims, true
}

// authMiddleware checks for a valid bearer access token
func authMiddleware(tokens *services.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := authenticate(c, tokens, bearerToken(c))
		if !ok {
			return
		}

		// Store claims in context for handlers to use
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RateLimiter allows cfg.Points requests per client IP per cfg.Window, counted
// in a Redis fixed window. Redis failures let the request through.
func RateLimiter(redis *database.RedisClient, cfg config.RateLimitConfig, logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("middleware", "rate_limit").Logger()
	limit := strconv.Itoa(cfg.Points)

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := "ratelimit:" + c.ClientIP()

		count, err := redis.IncrementCounter(ctx, key)
		if err != nil {
			log.Warn().Err(err).Msg("Rate limiter unavailable, allowing request")
			c.Next()
			return
		}
		// First hit opens the window
		if count == 1 {
			if err := redis.SetExpiration(ctx, key, cfg.Window); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("Failed to set rate limit window")
			}
		}

		remaining := int64(cfg.Points) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(cfg.Points) {
			if ttl, err := redis.TimeToLive(ctx, key); err == nil && ttl > 0 {
				c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())+1))
			}
			metrics.RateLimitedTotal.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests",
				"code":  "RATE_LIMIT_EXCEEDED",
			})
			return
		}
		c.Next()
	}
}
