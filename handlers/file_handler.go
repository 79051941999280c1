package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"visamate-backend/httpx"
	"visamate-backend/middleware"
	"visamate-backend/models"
	"visamate-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// FileHandler handles HTTP requests for raw uploads and file metadata
type FileHandler struct {
	files *service.FileService
}

// NewFileHandler creates a new file handler
func NewFileHandler(files *service.FileService) *FileHandler {
	return &FileHandler{files: files}
}

// UploadFile handles POST /upload/file (multipart field "file")
func (h *FileHandler) UploadFile(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	// Leave headroom for the multipart envelope around the file part
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.files.MaxFileSize()+1<<20)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondServiceError(c, fmt.Errorf("%w: limit is %d bytes", service.ErrFileTooLarge, h.files.MaxFileSize()))
			return
		}
		httpx.Error(c, http.StatusBadRequest, "MISSING_FILE", "File is required")
		return
	}
	if fileHeader.Size > h.files.MaxFileSize() {
		respondServiceError(c, fmt.Errorf("%w: limit is %d bytes", service.ErrFileTooLarge, h.files.MaxFileSize()))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		_ = c.Error(err)
		httpx.Error(c, http.StatusInternalServerError, "FILE_OPEN_ERROR", "Failed to read uploaded file")
		return
	}
	defer file.Close()

	obj, err := h.files.Upload(c.Request.Context(), service.UploadRequest{
		UserID:      userID,
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        file,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	httpx.OK(c, http.StatusCreated, obj)
}

// ListFiles handles GET /user/files
func (h *FileHandler) ListFiles(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	files, err := h.files.List(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, files)
}

// RecordFile handles POST /user/files, saving metadata for an uploaded object
func (h *FileHandler) RecordFile(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var file models.File
	if err := c.ShouldBindJSON(&file); err != nil {
		invalidBody(c, err)
		return
	}

	saved, err := h.files.Record(c.Request.Context(), service.RecordRequest{
		UserID: userID,
		File:   file,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	httpx.OK(c, http.StatusCreated, saved)
}

// DeleteFile handles DELETE /user/files?id=<uuid>
func (h *FileHandler) DeleteFile(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	fileID, ok := parseUUID(c, c.Query("id"), "file id")
	if !ok {
		return
	}

	if err := h.files.Delete(c.Request.Context(), userID, fileID); err != nil {
		respondServiceError(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, gin.H{"id": fileID})
}

// DiscardUpload handles DELETE /upload/file?path=<storage path>, removing an
// uploaded object that was never recorded
func (h *FileHandler) DiscardUpload(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	storagePath := c.Query("path")
	if storagePath == "" {
		httpx.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "path is required")
		return
	}

	if err := h.files.Discard(c.Request.Context(), userID, storagePath); err != nil {
		respondServiceError(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, gin.H{"path": storagePath})
}

// GetFileContent handles GET /user/files/:id/content
func (h *FileHandler) GetFileContent(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	fileID, ok := parseUUID(c, c.Param("id"), "file id")
	if !ok {
		return
	}

	file, reader, err := h.files.Open(c.Request.Context(), userID, fileID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	defer reader.Close()

	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	size := file.Size
	if size <= 0 {
		size = -1
	}
	c.DataFromReader(http.StatusOK, size, mimeType, reader, map[string]string{
		"Content-Disposition": "attachment; filename=" + strconv.Quote(file.Filename),
	})
}

func parseUUID(c *gin.Context, raw, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		httpx.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+what+" format")
		return uuid.Nil, false
	}
	return id, true
}
