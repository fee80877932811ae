package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/brandonhuynh1/signage-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RegisterPlaylistHandlers registers all playlist routes
func RegisterPlaylistHandlers(r *gin.Engine, playlistService *services.PlaylistService, events *services.EventBus, tokens *services.TokenManager, logger zerolog.Logger) {
	handler := &playlistHandler{
		playlistService: playlistService,
		events:          events,
		logger:          logger.With().Str("handler", "playlist").Logger(),
	}

	playlists := r.Group("/api/playlist")
	playlists.Use(authMiddleware(tokens))
	{
		playlists.GET("", handler.listPlaylists)
		playlists.GET("/list", handler.playlistRefs)
		playlists.POST("/create", handler.createPlaylist)
		playlists.PUT("/:playlistId", handler.updatePlaylist)
		playlists.GET("/:playlistId", handler.getPlaylist)
		playlists.DELETE("/:playlistId", handler.deletePlaylist)
		playlists.POST("/add-file", handler.addFile)
		playlists.POST("/add-sub-playlist", handler.addSubPlaylist)
		playlists.POST("/move-item", handler.moveItem)
		playlists.DELETE("/playlistFile/:playlistFileId", handler.deleteItem)
		playlists.PATCH("/playlistFile/:playlistFileId/duration", handler.editItemDuration)
		playlists.POST("/:playlistId/bulk-add-files", handler.bulkAddFiles)
		playlists.POST("/:playlistId/bulk-add-sub-playlists", handler.bulkAddSubPlaylists)
		playlists.POST("/bulk-add-files-to-playlists", handler.bulkAddFilesToPlaylists)
		playlists.POST("/bulk-delete", handler.bulkDelete)
		playlists.POST("/bulk-delete-items", handler.bulkDeleteItems)
		playlists.POST("/bulk-edit-duration", handler.bulkEditDuration)
	}
}

type playlistHandler struct {
	playlistService *services.PlaylistService
	events          *services.EventBus
	logger          zerolog.Logger
}

type createPlaylistRequest struct {
	Name     string `json:"name" binding:"required,min=3,max=50"`
	Duration int    `json:"duration" binding:"omitempty,min=1,max=300"`
}

type updatePlaylistRequest struct {
	Name            string `json:"name" binding:"required,min=3,max=50"`
	DefaultDuration *int   `json:"defaultDuration" binding:"omitempty,min=1,max=300"`
}

type addFileRequest struct {
	PlaylistID int64 `json:"playlistId" binding:"required,gt=0"`
	FileID     int64 `json:"fileId" binding:"required,gt=0"`
	Duration   int   `json:"duration" binding:"required,min=1,max=86400"`
}

type addSubPlaylistRequest struct {
	PlaylistID    int64 `json:"playlistId" binding:"required,gt=0"`
	SubPlaylistID int64 `json:"subPlaylistId" binding:"required,gt=0"`
}

type moveItemRequest struct {
	PlaylistFileID int64 `json:"playlistFileId" binding:"required,gt=0"`
	PlayOrder      int   `json:"playOrder" binding:"required,min=1"`
}

type durationRequest struct {
	Duration int `json:"duration" binding:"required,min=1,max=86400"`
}

type bulkFilesRequest struct {
	Items []services.FileDuration `json:"items" binding:"required,min=1,dive"`
}

type bulkSubPlaylistsRequest struct {
	Items []services.SubPlaylistDuration `json:"items" binding:"required,min=1,dive"`
}

type filesToPlaylistsRequest struct {
	FileIDs     []int64 `json:"fileIds" binding:"required,min=1,dive,gt=0"`
	PlaylistIDs []int64 `json:"playlistIds" binding:"required,min=1,dive,gt=0"`
	Duration    *int    `json:"duration" binding:"omitempty,min=1,max=86400"`
}

type playlistIDsRequest struct {
	PlaylistIDs []int64 `json:"playlistIds" binding:"required,min=1,dive,gt=0"`
}

type playlistFileIDsRequest struct {
	PlaylistFileIDs []int64 `json:"playlistFileIds" binding:"required,min=1,dive,gt=0"`
}

type bulkDurationRequest struct {
	PlaylistFileIDs []int64 `json:"playlistFileIds" binding:"required,min=1,dive,gt=0"`
	Duration        int     `json:"duration" binding:"required,min=1,max=86400"`
}

// listPlaylists returns the playlist dashboard
func (h *playlistHandler) listPlaylists(c *gin.Context) {
	filter := services.PlaylistFilter{
		Search:           c.Query("search"),
		LastModifiedFrom: queryTime(c, "lastModifiedFrom"),
		LastModifiedTo:   queryTime(c, "lastModifiedTo"),
		DurationBucket:   c.Query("durationBucket"),
		DurationFrom:     queryIntPtr(c, "durationFrom"),
		DurationTo:       queryIntPtr(c, "durationTo"),
		SortBy:           c.Query("sortBy"),
		SortOrder:        sortOrder(c, services.Desc),
	}

	playlists, err := h.playlistService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Playlists fetched successfully", "playlists": playlists})
}

func (h *playlistHandler) playlistRefs(c *gin.Context) {
	refs, err := h.playlistService.Refs(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, refs)
}

func (h *playlistHandler) createPlaylist(c *gin.Context) {
	var req createPlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	playlist, err := h.playlistService.Create(c.Request.Context(), req.Name, req.Duration)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Playlist created successfully", "playlist": playlist})
}

func (h *playlistHandler) updatePlaylist(c *gin.Context) {
	id, ok := paramID(c, "playlistId")
	if !ok {
		return
	}
	var req updatePlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	playlist, err := h.playlistService.Update(c.Request.Context(), id, req.Name, req.DefaultDuration)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Playlist updated successfully", "playlist": playlist})
}

// getPlaylist returns one playlist with its filtered items
func (h *playlistHandler) getPlaylist(c *gin.Context) {
	id, ok := paramID(c, "playlistId")
	if !ok {
		return
	}

	filter := services.ItemFilter{
		Search:           c.Query("search"),
		SizeBucket:       c.Query("sizeBucket"),
		Type:             c.Query("type"),
		LastModifiedFrom: queryTime(c, "lastModifiedFrom"),
		LastModifiedTo:   queryTime(c, "lastModifiedTo"),
		DurationBucket:   c.Query("durationBucket"),
		SortBy:           c.Query("sortBy"),
		SortOrder:        sortOrder(c, services.Asc),
	}

	playlist, err := h.playlistService.Get(c.Request.Context(), id, filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Playlist fetched successfully", "playlist": playlist})
}

// notifyUnassigned tells dashboards about players that lost their playlist
func (h *playlistHandler) notifyUnassigned(ctx context.Context, playerIDs []int64) {
	now := time.Now()
	for _, id := range playerIDs {
		h.events.Publish(ctx, services.PlayerEvent{Type: services.EventPlaylistChanged, PlayerID: id, At: now})
	}
}

func (h *playlistHandler) deletePlaylist(c *gin.Context) {
	id, ok := paramID(c, "playlistId")
	if !ok {
		return
	}

	unassigned, err := h.playlistService.Delete(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.notifyUnassigned(c.Request.Context(), unassigned)
	c.JSON(http.StatusOK, gin.H{"message": "Playlist deleted successfully"})
}

func (h *playlistHandler) addFile(c *gin.Context) {
	var req addFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	item, err := h.playlistService.AddFile(c.Request.Context(), req.PlaylistID, req.FileID, req.Duration)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "File added to playlist", "playlistFile": item})
}

func (h *playlistHandler) addSubPlaylist(c *gin.Context) {
	var req addSubPlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	item, err := h.playlistService.AddSubPlaylist(c.Request.Context(), req.PlaylistID, req.SubPlaylistID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Sub playlist added to playlist", "playlistFile": item})
}

// moveItem reorders a playlist item
func (h *playlistHandler) moveItem(c *gin.Context) {
	var req moveItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	item, err := h.playlistService.MoveItem(c.Request.Context(), req.PlaylistFileID, req.PlayOrder)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item moved successfully", "playlistFile": item})
}

func (h *playlistHandler) deleteItem(c *gin.Context) {
	id, ok := paramID(c, "playlistFileId")
	if !ok {
		return
	}

	if err := h.playlistService.DeleteItem(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Playlist item deleted successfully"})
}

func (h *playlistHandler) editItemDuration(c *gin.Context) {
	id, ok := paramID(c, "playlistFileId")
	if !ok {
		return
	}
	var req durationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.playlistService.EditItemDuration(c.Request.Context(), id, req.Duration)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *playlistHandler) bulkAddFiles(c *gin.Context) {
	id, ok := paramID(c, "playlistId")
	if !ok {
		return
	}
	var req bulkFilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.playlistService.BulkAddFiles(c.Request.Context(), id, req.Items)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *playlistHandler) bulkAddSubPlaylists(c *gin.Context) {
	id, ok := paramID(c, "playlistId")
	if !ok {
		return
	}
	var req bulkSubPlaylistsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.playlistService.BulkAddSubPlaylists(c.Request.Context(), id, req.Items)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *playlistHandler) bulkAddFilesToPlaylists(c *gin.Context) {
	var req filesToPlaylistsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	created, err := h.playlistService.BulkAddFilesToPlaylists(c.Request.Context(), req.FileIDs, req.PlaylistIDs, req.Duration)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Files added to playlists", "createdCount": created})
}

func (h *playlistHandler) bulkDelete(c *gin.Context) {
	var req playlistIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	deleted, unassigned, err := h.playlistService.BulkDelete(c.Request.Context(), req.PlaylistIDs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.notifyUnassigned(c.Request.Context(), unassigned)
	c.JSON(http.StatusOK, gin.H{"message": "Playlists deleted successfully", "deletedCount": deleted})
}

func (h *playlistHandler) bulkDeleteItems(c *gin.Context) {
	var req playlistFileIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	deleted, err := h.playlistService.BulkDeleteItems(c.Request.Context(), req.PlaylistFileIDs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Playlist items deleted successfully", "deletedCount": deleted})
}

func (h *playlistHandler) bulkEditDuration(c *gin.Context) {
	var req bulkDurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	updated, skipped, err := h.playlistService.BulkEditDuration(c.Request.Context(), req.PlaylistFileIDs, req.Duration)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Durations updated", "updatedCount": updated, "skippedCount": skipped})
}
