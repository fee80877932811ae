package handlers

import (
	"net/http"

	"github.com/brandonhuynh1/signage-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RegisterTrashHandlers registers the recycle bin routes
func RegisterTrashHandlers(r *gin.Engine, trashService *services.TrashService, tokens *services.TokenManager, logger zerolog.Logger) {
	handler := &trashHandler{
		trashService: trashService,
		logger:       logger.With().Str("handler", "trash").Logger(),
	}

	trash := r.Group("/api/trash")
	trash.Use(authMiddleware(tokens))
	{
		trash.GET("", handler.listTrash)
		trash.POST("/restore-all", handler.restoreAll)
		trash.POST("/empty", handler.emptyTrash)
		trash.POST("/:kind/:id/restore", handler.restore)
		trash.DELETE("/:kind/:id", handler.deletePermanently)
	}
}

type trashHandler struct {
	trashService *services.TrashService
	logger       zerolog.Logger
}

func (h *trashHandler) listTrash(c *gin.Context) {
	items, err := h.trashService.List(c.Request.Context(), c.Query("search"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

// restore brings a folder or file back, renaming it if its name was reused
func (h *trashHandler) restore(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	kind := c.Param("kind")

	if err := h.trashService.Restore(c.Request.Context(), kind, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Restored successfully", "kind": kind, "id": id})
}

func (h *trashHandler) deletePermanently(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	kind := c.Param("kind")

	if err := h.trashService.DeletePermanently(c.Request.Context(), kind, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Deleted permanently", "kind": kind, "id": id})
}

func (h *trashHandler) restoreAll(c *gin.Context) {
	counts, err := h.trashService.RestoreAll(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Trash restored", "restored": counts})
}

func (h *trashHandler) emptyTrash(c *gin.Context) {
	counts, err := h.trashService.Empty(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Trash emptied", "deleted": counts})
}
