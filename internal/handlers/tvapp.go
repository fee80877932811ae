package handlers

import (
	"net/http"

	"github.com/brandonhuynh1/signage-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RegisterTVAppHandlers registers the device-facing routes. Devices identify
// themselves by device code, not by admin token.
func RegisterTVAppHandlers(r *gin.Engine, tvappService *services.TVAppService, sessionService *services.SessionService, logger zerolog.Logger) {
	handler := &tvappHandler{
		tvappService:   tvappService,
		sessionService: sessionService,
		logger:         logger.With().Str("handler", "tvapp").Logger(),
	}

	player := r.Group("/api/tv-app/player")
	{
		player.POST("/link", handler.linkPlayer)
		player.GET("/:deviceCode/playlist", handler.getPlaylist)
		player.GET("/:deviceCode/playlist/:playlistId", handler.getPlaylist)
		player.POST("/:deviceCode/playlogs", handler.createPlayLog)
		player.POST("/:deviceCode/session/start", handler.startSession)
		player.POST("/:deviceCode/session/end", handler.endSession)
	}
}

type tvappHandler struct {
	tvappService   *services.TVAppService
	sessionService *services.SessionService
	logger         zerolog.Logger
}

type linkRequest struct {
	DeviceName string `json:"deviceName" binding:"required"`
	DeviceKey  string `json:"deviceKey" binding:"required"`
}

type playLogRequest struct {
	FileID         int64  `json:"fileId" binding:"required,gt=0"`
	PlaylistID     *int64 `json:"playlistId" binding:"required,gt=0"`
	PlaylistFileID *int64 `json:"playlistFileId" binding:"omitempty,gt=0"`
	SubPlaylistID  *int64 `json:"subPlaylistId" binding:"omitempty,gt=0"`
	IsSubPlaylist  bool   `json:"isSubPlaylist"`
}

type sessionStartRequest struct {
	ForceNew bool `json:"forceNew"`
}

type sessionEndRequest struct {
	EndAll bool `json:"endAll"`
}

// linkPlayer pairs a device with its player record
func (h *tvappHandler) linkPlayer(c *gin.Context) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.tvappService.Link(c.Request.Context(), req.DeviceName, req.DeviceKey)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// getPlaylist returns the device's playlist, or a nested one it can reach
func (h *tvappHandler) getPlaylist(c *gin.Context) {
	var requested *int64
	if c.Param("playlistId") != "" {
		id, ok := paramID(c, "playlistId")
		if !ok {
			return
		}
		requested = &id
	}

	playlist, err := h.tvappService.Playlist(c.Request.Context(), c.Param("deviceCode"), requested)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if playlist == nil {
		c.JSON(http.StatusOK, gin.H{"message": "No playlist assigned", "playlist": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Playlist fetched successfully", "playlist": playlist})
}

// createPlayLog records a playback, which also counts as a heartbeat
func (h *tvappHandler) createPlayLog(c *gin.Context) {
	var req playLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	id, err := h.tvappService.PlayLog(c.Request.Context(), c.Param("deviceCode"), services.PlayLogInput{
		FileID:         req.FileID,
		PlaylistID:     req.PlaylistID,
		PlaylistFileID: req.PlaylistFileID,
		SubPlaylistID:  req.SubPlaylistID,
		IsSubPlaylist:  req.IsSubPlaylist,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Play log created", "playLogId": id})
}

// bindOptionalJSON allows an empty body
func bindOptionalJSON(c *gin.Context, obj interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil {
		bindError(c, err)
		return false
	}
	return true
}

func (h *tvappHandler) startSession(c *gin.Context) {
	var req sessionStartRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	result, err := h.sessionService.Start(c.Request.Context(), c.Param("deviceCode"), req.ForceNew)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	status := http.StatusCreated
	if result.Message == "Session already active" {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

func (h *tvappHandler) endSession(c *gin.Context) {
	var req sessionEndRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	ended, err := h.sessionService.End(c.Request.Context(), c.Param("deviceCode"), req.EndAll)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session ended", "endedCount": ended})
}
