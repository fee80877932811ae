package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/brandonhuynh1/signage-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// wsPingInterval keeps idle dashboard sockets alive through proxies
const wsPingInterval = 30 * time.Second

// RegisterPlayerHandlers registers the admin player routes and the live stream
func RegisterPlayerHandlers(r *gin.Engine, playerService *services.PlayerService, events *services.EventBus, tokens *services.TokenManager, logger zerolog.Logger) {
	handler := &playerHandler{
		playerService: playerService,
		events:        events,
		tokens:        tokens,
		logger:        logger.With().Str("handler", "player").Logger(),
	}

	// WebSocket endpoint for real-time updates
	r.GET("/ws/players", handler.playerEventsWebSocket)

	players := r.Group("/api/players")
	players.Use(authMiddleware(tokens))
	{
		players.GET("", handler.listPlayers)
		players.POST("", handler.createPlayer)
		players.POST("/edit", handler.editPlayer)
		players.DELETE("/:playerId", handler.deletePlayer)
		players.POST("/:playerId/update-playlist", handler.updatePlaylist)
		players.GET("/get-activity", handler.getActivity)
	}
}

type playerHandler struct {
	playerService *services.PlayerService
	events        *services.EventBus
	tokens        *services.TokenManager
	logger        zerolog.Logger
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced on the HTTP routes; sockets are gated by token
	},
}

type playerRequest struct {
	Name       string `json:"name" binding:"required,min=1,max=100"`
	Location   string `json:"location" binding:"max=255"`
	PlaylistID *int64 `json:"playlistId" binding:"omitempty,gt=0"`
	DeviceKey  string `json:"deviceKey" binding:"omitempty,min=8,max=16"`
}

type editPlayerRequest struct {
	PlayerID int64 `json:"playerId" binding:"required,gt=0"`
	playerRequest
}

type assignPlaylistRequest struct {
	PlaylistID int64 `json:"playlistId" binding:"required,gt=0"`
}

func (r playerRequest) input() services.PlayerInput {
	return services.PlayerInput{
		Name:       r.Name,
		Location:   r.Location,
		PlaylistID: r.PlaylistID,
		DeviceKey:  r.DeviceKey,
	}
}

// playerEventsWebSocket streams player events to the dashboard
func (h *playerHandler) playerEventsWebSocket(c *gin.Context) {
	// Browsers cannot set headers on a socket handshake
	token := c.Query("token")
	if token == "" {
		token = bearerToken(c)
	}
	if _, ok := authenticate(c, h.tokens, token); !ok {
		return
	}

	// Upgrade to WebSocket connection
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade to WebSocket connection")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Subscribe to Redis channel for player events
	pubsub := h.events.Subscribe(ctx)
	defer pubsub.Close()
	ch := pubsub.Channel()

	// Reader detects the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	// Listen for messages from Redis channel
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Forward player event to the WebSocket client
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				h.logger.Debug().Err(err).Msg("Failed to write to WebSocket")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// listPlayers returns every player with its latest session
func (h *playerHandler) listPlayers(c *gin.Context) {
	filter := services.PlayerFilter{
		Status:    c.Query("status"),
		SortBy:    c.Query("sortBy"),
		SortOrder: sortOrder(c, services.Desc),
	}

	players, err := h.playerService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Players fetched successfully", "players": players})
}

func (h *playerHandler) createPlayer(c *gin.Context) {
	var req playerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	player, err := h.playerService.Create(c.Request.Context(), req.input())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Player created successfully", "player": player})
}

func (h *playerHandler) editPlayer(c *gin.Context) {
	var req editPlayerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	player, err := h.playerService.Edit(c.Request.Context(), req.PlayerID, req.input())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Player updated successfully", "player": player})
}

func (h *playerHandler) deletePlayer(c *gin.Context) {
	id, ok := paramID(c, "playerId")
	if !ok {
		return
	}

	if err := h.playerService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Player deleted successfully"})
}

func (h *playerHandler) updatePlaylist(c *gin.Context) {
	id, ok := paramID(c, "playerId")
	if !ok {
		return
	}
	var req assignPlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	player, err := h.playerService.AssignPlaylist(c.Request.Context(), id, req.PlaylistID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Playlist assigned successfully", "player": player})
}

// getActivity returns the online/offline feed
func (h *playerHandler) getActivity(c *gin.Context) {
	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	limit := services.ClampLimit(queryInt(c, "limit", 20), 20, 100)

	items, pagination, err := h.playerService.Activity(c.Request.Context(), offset, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "pagination": pagination})
}
