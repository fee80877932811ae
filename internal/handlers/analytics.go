package handlers

import (
	"context"
	"net/http"

	"github.com/brandonhuynh1/signage-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RegisterAnalyticsHandlers registers the dashboard reporting routes
func RegisterAnalyticsHandlers(r *gin.Engine, analyticsService *services.AnalyticsService, tokens *services.TokenManager, logger zerolog.Logger) {
	handler := &analyticsHandler{
		analyticsService: analyticsService,
		logger:           logger.With().Str("handler", "analytics").Logger(),
	}

	analytics := r.Group("/api/analytics")
	analytics.Use(authMiddleware(tokens))
	{
		analytics.GET("/summary", handler.summary)
		analytics.GET("/top-clients", handler.topClients)
		analytics.GET("/top-players", handler.topPlayers)
		analytics.GET("/recent-sessions", handler.recentSessions)
		analytics.GET("/folder-logs", handler.logView(analyticsService.FolderLogs))
		analytics.GET("/file-logs", handler.logView(analyticsService.FileLogs))
		analytics.GET("/playlist-file-logs", handler.logView(analyticsService.PlaylistFileLogs))
		analytics.GET("/playlist-logs", handler.logView(analyticsService.PlaylistLogs))
		analytics.GET("/folders/:folderId/player-stats", handler.playerStats)
		analytics.GET("/player-logs", handler.playerLogs)
		analytics.GET("/player-logs/:playerId", handler.playerSessions)
	}
}

type analyticsHandler struct {
	analyticsService *services.AnalyticsService
	logger           zerolog.Logger
}

// summary returns folder and player counts
func (h *analyticsHandler) summary(c *gin.Context) {
	summary, err := h.analyticsService.Summary(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *analyticsHandler) topClients(c *gin.Context) {
	clients, err := h.analyticsService.TopClients(c.Request.Context(), c.Query("date"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": clients})
}

func (h *analyticsHandler) topPlayers(c *gin.Context) {
	players, err := h.analyticsService.TopPlayers(c.Request.Context(), c.Query("date"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": players})
}

func (h *analyticsHandler) recentSessions(c *gin.Context) {
	sessions, err := h.analyticsService.RecentSessions(c.Request.Context(), c.Query("date"), c.Query("sortBy"), sortOrder(c, services.Desc))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": sessions})
}

// logQuery reads the shared range, search, sort and paging parameters
func (h *analyticsHandler) logQuery(c *gin.Context) services.LogQuery {
	return services.LogQuery{
		Range:      h.analyticsService.LocalRange(c.Query("startDate"), c.Query("endDate")),
		Search:     c.Query("search"),
		SortBy:     c.Query("sortBy"),
		SortOrder:  sortOrder(c, services.Desc),
		Offset:     queryInt(c, "offset", 0),
		Limit:      queryInt(c, "limit", services.DefaultLogLimit),
		FolderID:   queryInt64Ptr(c, "folderId"),
		PlaylistID: queryInt64Ptr(c, "playlistId"),
	}
}

// logView adapts one of the per-entity play-log aggregations to a route
func (h *analyticsHandler) logView(view func(context.Context, services.LogQuery) (*services.LogPage, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := view(c.Request.Context(), h.logQuery(c))
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func (h *analyticsHandler) playerStats(c *gin.Context) {
	folderID, ok := paramID(c, "folderId")
	if !ok {
		return
	}

	stats, err := h.analyticsService.PlayerStats(c.Request.Context(), folderID, c.Query("date"),
		queryInt(c, "offset", 0), queryInt(c, "limit", services.DefaultLogLimit))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *analyticsHandler) playerLogs(c *gin.Context) {
	logs, err := h.analyticsService.PlayerLogs(c.Request.Context(), h.logQuery(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// playerSessions lists one player's sessions in the range
func (h *analyticsHandler) playerSessions(c *gin.Context) {
	playerID, ok := paramID(c, "playerId")
	if !ok {
		return
	}

	r := h.analyticsService.LocalRange(c.Query("startDate"), c.Query("endDate"))
	sessions, err := h.analyticsService.PlayerSessions(c.Request.Context(), playerID, r)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": sessions})
}
