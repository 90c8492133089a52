package handlers

import (
	"context"
	"net/http"

	"github.com/gitlite/gitlite/internal/api/middleware"
	"github.com/gitlite/gitlite/internal/metrics"
	"github.com/gitlite/gitlite/internal/models"
	"github.com/gitlite/gitlite/internal/vcs"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// FileService defines the version chain operations used by file endpoints.
// *vcs.Chain satisfies it.
type FileService interface {
	CreateFile(ctx context.Context, in vcs.CreateFileInput) (*models.File, *models.Version, error)
	UpdateFile(ctx context.Context, in vcs.UpdateFileInput) (*models.Version, error)
	DeleteFile(ctx context.Context, fileID int64) error
}

// FileStore defines the read operations used for ownership checks and
// listings.
type FileStore interface {
	GetRepository(ctx context.Context, id int64) (*models.Repository, error)
	GetFile(ctx context.Context, fileID int64) (*models.File, error)
	GetRepositoryFiles(ctx context.Context, repositoryID int64) ([]*models.File, error)
}

// FilesHandler handles file HTTP endpoints.
type FilesHandler struct {
	service   FileService
	store     FileStore
	collector *metrics.Collector
	logger    zerolog.Logger
}

// NewFilesHandler creates a new FilesHandler. The collector may be nil.
func NewFilesHandler(service FileService, store FileStore, collector *metrics.Collector, logger zerolog.Logger) *FilesHandler {
	return &FilesHandler{
		service:   service,
		store:     store,
		collector: collector,
		logger:    logger.With().Str("component", "files_handler").Logger(),
	}
}

// RegisterRoutes registers file routes on the given router group.
func (h *FilesHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/repositories/:id/files", h.Create)
	r.GET("/repositories/:id/files", h.ListByRepository)

	files := r.Group("/files")
	{
		files.GET("/:id", h.Get)
		files.PUT("/:id", h.Update)
		files.DELETE("/:id", h.Delete)
	}
}

// ownedFile loads a file and verifies the caller owns its repository.
func ownedFile(c *gin.Context, store FileStore, fileID int64) *models.File {
	identity := middleware.RequireIdentity(c)
	if identity == nil {
		return nil
	}

	file, err := store.GetFile(c.Request.Context(), fileID)
	if err != nil {
		respondError(c, err, "failed to load file")
		return nil
	}

	repo, err := store.GetRepository(c.Request.Context(), file.RepositoryID)
	if err != nil {
		respondError(c, err, "failed to load repository")
		return nil
	}
	if repo.OwnerSubject != identity.Subject {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return nil
	}
	return file
}

// ownedRepo verifies the caller owns the repository with the given id.
func ownedRepo(c *gin.Context, store FileStore, repositoryID int64) bool {
	identity := middleware.RequireIdentity(c)
	if identity == nil {
		return false
	}

	repo, err := store.GetRepository(c.Request.Context(), repositoryID)
	if err != nil {
		respondError(c, err, "failed to load repository")
		return false
	}
	if repo.OwnerSubject != identity.Subject {
		c.JSON(http.StatusNotFound, gin.H{"error": "repository not found"})
		return false
	}
	return true
}

// CreateFileRequest is the request body for creating a file. Exactly one of
// content_text/content_binary must be set; content_binary is base64 in JSON.
type CreateFileRequest struct {
	Filename      string  `json:"filename" binding:"required"`
	ContentText   *string `json:"content_text"`
	ContentBinary []byte  `json:"content_binary"`
	MIMEType      string  `json:"mime_type"`
	CommitMessage *string `json:"commit_message"`
}

// CreateFileResponse carries the new file and its first version's metadata.
type CreateFileResponse struct {
	File    *models.File    `json:"file"`
	Version *models.Version `json:"version"`
}

// Create creates a file with its first version.
// POST /api/v1/repositories/:id/files
func (h *FilesHandler) Create(c *gin.Context) {
	repoID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if !ownedRepo(c, h.store, repoID) {
		return
	}

	var req CreateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filename is required"})
		return
	}

	file, version, err := h.service.CreateFile(c.Request.Context(), vcs.CreateFileInput{
		RepositoryID:  repoID,
		Filename:      req.Filename,
		ContentText:   req.ContentText,
		ContentBinary: req.ContentBinary,
		MIMEType:      req.MIMEType,
		CommitMessage: req.CommitMessage,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("filename", req.Filename).Msg("failed to create file")
		respondError(c, err, "failed to create file")
		return
	}

	if h.collector != nil {
		h.collector.VersionsCreated.Inc()
	}

	c.JSON(http.StatusCreated, CreateFileResponse{File: file, Version: version.Metadata()})
}

// ListByRepository returns all files in a repository.
// GET /api/v1/repositories/:id/files
func (h *FilesHandler) ListByRepository(c *gin.Context) {
	repoID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if !ownedRepo(c, h.store, repoID) {
		return
	}

	files, err := h.store.GetRepositoryFiles(c.Request.Context(), repoID)
	if err != nil {
		h.logger.Error().Err(err).Int64("repository_id", repoID).Msg("failed to list files")
		respondError(c, err, "failed to list files")
		return
	}
	if files == nil {
		files = []*models.File{}
	}

	c.JSON(http.StatusOK, files)
}

// Get returns file metadata.
// GET /api/v1/files/:id
func (h *FilesHandler) Get(c *gin.Context) {
	fileID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	file := ownedFile(c, h.store, fileID)
	if file == nil {
		return
	}

	c.JSON(http.StatusOK, file)
}

// UpdateFileRequest is the request body for writing a new version.
type UpdateFileRequest struct {
	ContentText   *string `json:"content_text"`
	ContentBinary []byte  `json:"content_binary"`
	CommitMessage *string `json:"commit_message"`
}

// Update appends a new version to the file's chain.
// PUT /api/v1/files/:id
func (h *FilesHandler) Update(c *gin.Context) {
	fileID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if ownedFile(c, h.store, fileID) == nil {
		return
	}

	var req UpdateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	version, err := h.service.UpdateFile(c.Request.Context(), vcs.UpdateFileInput{
		FileID:        fileID,
		ContentText:   req.ContentText,
		ContentBinary: req.ContentBinary,
		CommitMessage: req.CommitMessage,
	})
	if err != nil {
		h.logger.Error().Err(err).Int64("file_id", fileID).Msg("failed to update file")
		respondError(c, err, "failed to update file")
		return
	}

	if h.collector != nil {
		h.collector.VersionsCreated.Inc()
	}

	c.JSON(http.StatusCreated, version.Metadata())
}

// Delete removes a file and its entire version chain.
// DELETE /api/v1/files/:id
func (h *FilesHandler) Delete(c *gin.Context) {
	fileID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if ownedFile(c, h.store, fileID) == nil {
		return
	}

	if err := h.service.DeleteFile(c.Request.Context(), fileID); err != nil {
		h.logger.Error().Err(err).Int64("file_id", fileID).Msg("failed to delete file")
		respondError(c, err, "failed to delete file")
		return
	}

	c.Status(http.StatusNoContent)
}
