package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/brandonhuynh1/signage-api/internal/database"
	"github.com/brandonhuynh1/signage-api/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

const healthTimeout = 3 * time.Second

// RegisterHealthHandlers registers the health check and the metrics endpoint
func RegisterHealthHandlers(r *gin.Engine, db *sqlx.DB, redis *database.RedisClient, logger zerolog.Logger) {
	handler := &healthHandler{
		db:     db,
		redis:  redis,
		logger: logger.With().Str("handler", "health").Logger(),
	}

	r.GET("/api/health", handler.health)
	r.GET("/metrics", metrics.Handler())
}

type healthHandler struct {
	db     *sqlx.DB
	redis  *database.RedisClient
	logger zerolog.Logger
}

// health pings Postgres and Redis
func (h *healthHandler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Error().Err(err).Msg("Postgres health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database unreachable"})
		return
	}
	if err := h.redis.Ping(ctx); err != nil {
		h.logger.Error().Err(err).Msg("Redis health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "redis unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
