package handlers

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/brandonhuynh1/signage-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// multipartOverhead leaves room for form fields next to the file part
const multipartOverhead = 1 << 20

// RegisterMediaHandlers registers folder and file routes
func RegisterMediaHandlers(r *gin.Engine, mediaService *services.MediaService, tokens *services.TokenManager, maxFileMB int, logger zerolog.Logger) {
	handler := &mediaHandler{
		mediaService: mediaService,
		maxBodyBytes: int64(maxFileMB)*1024*1024 + multipartOverhead,
		logger:       logger.With().Str("handler", "media").Logger(),
	}

	media := r.Group("/api/media")
	media.Use(authMiddleware(tokens))
	{
		media.GET("/folders", handler.listFolders)
		media.POST("/folders/create", handler.createFolder)
		media.POST("/edit-folder", handler.editFolder)
		media.POST("/delete-folder", handler.deleteFolder)
		media.POST("/bulk/delete-folder", handler.bulkDeleteFolders)
		media.POST("/:folderId/upload-media", handler.uploadMedia)
		media.GET("/:folderId/media", handler.listFiles)
		media.POST("/edit-file-name", handler.editFileName)
		media.POST("/delete-file", handler.deleteFile)
		media.POST("/bulk/delete-file", handler.bulkDeleteFiles)
		media.GET("/get-folders", handler.folderRefs)
		media.GET("/:folderId/get-files", handler.folderFiles)
	}
}

type mediaHandler struct {
	mediaService *services.MediaService
	maxBodyBytes int64
	logger       zerolog.Logger
}

type folderRequest struct {
	Name      string  `json:"name" binding:"required,min=3,max=50"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

type editFolderRequest struct {
	FolderID int64 `json:"folderId" binding:"required,gt=0"`
	folderRequest
}

type folderIDRequest struct {
	FolderID int64 `json:"folderId" binding:"required,gt=0"`
}

type folderIDsRequest struct {
	FolderIDs []int64 `json:"folderIds" binding:"required,min=1,dive,gt=0"`
}

type renameFileRequest struct {
	FileID int64  `json:"fileId" binding:"required,gt=0"`
	Name   string `json:"name" binding:"required,min=1,max=255"`
}

type fileIDRequest struct {
	FileID int64 `json:"fileId" binding:"required,gt=0"`
}

type fileIDsRequest struct {
	FileIDs []int64 `json:"fileIds" binding:"required,min=1,dive,gt=0"`
}

// listFolders returns the folder dashboard
func (h *mediaHandler) listFolders(c *gin.Context) {
	filter := services.FolderFilter{
		Search:           c.Query("search"),
		LastModifiedFrom: queryTime(c, "lastModifiedFrom"),
		LastModifiedTo:   queryTime(c, "lastModifiedTo"),
		SizeBucket:       c.Query("sizeBucket"),
		Status:           c.Query("status"),
		SortBy:           c.Query("sortBy"),
		SortOrder:        sortOrder(c, services.Desc),
	}

	folders, err := h.mediaService.ListFolders(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Folders fetched successfully",
		"folders": folders,
		"meta": gin.H{
			"total":            len(folders),
			"search":           filter.Search,
			"lastModifiedFrom": filter.LastModifiedFrom,
			"lastModifiedTo":   filter.LastModifiedTo,
			"sizeBucket":       filter.SizeBucket,
			"status":           filter.Status,
			"sortBy":           filter.SortBy,
			"sortOrder":        filter.SortOrder,
		},
	})
}

func (r folderRequest) dates() (start, end *time.Time, err error) {
	if start, err = optionalTime(r.StartDate); err != nil {
		return nil, nil, err
	}
	if end, err = optionalTime(r.EndDate); err != nil {
		return nil, nil, err
	}
	return start, end, nil
}

// createFolder adds a client folder
func (h *mediaHandler) createFolder(c *gin.Context) {
	var req folderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	start, end, err := req.dates()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	folder, err := h.mediaService.CreateFolder(c.Request.Context(), req.Name, start, end)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Folder created successfully", "folder": folder})
}

// editFolder renames a folder or changes its validity window
func (h *mediaHandler) editFolder(c *gin.Context) {
	var req editFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	start, end, err := req.dates()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	folder, err := h.mediaService.EditFolder(c.Request.Context(), req.FolderID, req.Name, start, end)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Folder updated successfully", "folder": folder})
}

func (h *mediaHandler) deleteFolder(c *gin.Context) {
	var req folderIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if _, err := h.mediaService.DeleteFolders(c.Request.Context(), []int64{req.FolderID}); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Folder deleted successfully"})
}

func (h *mediaHandler) bulkDeleteFolders(c *gin.Context) {
	var req folderIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	count, err := h.mediaService.DeleteFolders(c.Request.Context(), req.FolderIDs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Folders deleted successfully", "deletedCount": count})
}

// uploadMedia streams a single multipart file part into the folder
func (h *mediaHandler) uploadMedia(c *gin.Context) {
	folderID, ok := paramID(c, "folderId")
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	form, err := c.MultipartForm()
	if err != nil {
		h.logger.Warn().Err(err).Int64("folderID", folderID).Msg("Failed to parse upload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart upload"})
		return
	}
	defer form.RemoveAll() //nolint:errcheck

	var parts []*multipart.FileHeader
	for _, headers := range form.File {
		parts = append(parts, headers...)
	}
	if len(parts) != 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Exactly one file is required"})
		return
	}
	part := parts[0]

	in := services.UploadInput{
		FileName:     part.Filename,
		ContentType:  part.Header.Get("Content-Type"),
		DeclaredType: c.PostForm("type"),
		Size:         part.Size,
	}
	if raw := c.PostForm("duration"); raw != "" {
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid duration"})
			return
		}
		in.Duration = &d
	}

	body, err := part.Open()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	defer body.Close()
	in.Body = body

	result, err := h.mediaService.Upload(c.Request.Context(), folderID, in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":   "File uploaded successfully",
		"file":      result.File,
		"signedUrl": result.SignedURL,
	})
}

// listFiles returns a folder's files
func (h *mediaHandler) listFiles(c *gin.Context) {
	folderID, ok := paramID(c, "folderId")
	if !ok {
		return
	}

	filter := services.FileFilter{
		Search:     c.Query("search"),
		From:       queryTime(c, "from"),
		To:         queryTime(c, "to"),
		FileType:   c.Query("fileType"),
		SizeBucket: c.Query("sizeBucket"),
		Status:     c.Query("status"),
		SortBy:     c.Query("sortBy"),
		SortOrder:  sortOrder(c, services.Desc),
	}

	files, err := h.mediaService.ListFiles(c.Request.Context(), folderID, filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Media fetched successfully", "files": files})
}

func (h *mediaHandler) editFileName(c *gin.Context) {
	var req renameFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	file, err := h.mediaService.RenameFile(c.Request.Context(), req.FileID, req.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File renamed successfully", "file": file})
}

func (h *mediaHandler) deleteFile(c *gin.Context) {
	var req fileIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if _, err := h.mediaService.DeleteFiles(c.Request.Context(), []int64{req.FileID}); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File deleted successfully"})
}

func (h *mediaHandler) bulkDeleteFiles(c *gin.Context) {
	var req fileIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	count, err := h.mediaService.DeleteFiles(c.Request.Context(), req.FileIDs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Files deleted successfully", "deletedCount": count})
}

// folderRefs lists folder ids and names for pickers
func (h *mediaHandler) folderRefs(c *gin.Context) {
	refs, err := h.mediaService.FolderRefs(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": refs})
}

func (h *mediaHandler) folderFiles(c *gin.Context) {
	folderID, ok := paramID(c, "folderId")
	if !ok {
		return
	}

	files, err := h.mediaService.FolderFiles(c.Request.Context(), folderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}
