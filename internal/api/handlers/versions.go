package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gitlite/gitlite/internal/metrics"
	"github.com/gitlite/gitlite/internal/models"
	"github.com/gitlite/gitlite/internal/vcs"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// VersionService defines the version chain read operations used by version
// endpoints. *vcs.Chain satisfies it.
type VersionService interface {
	GetVersion(ctx context.Context, fileID int64, versionNumber int) (*models.Version, error)
	ListVersions(ctx context.Context, fileID int64) ([]*models.Version, error)
}

// VersionsHandler handles version history and diff HTTP endpoints.
type VersionsHandler struct {
	service   VersionService
	store     FileStore
	collector *metrics.Collector
	logger    zerolog.Logger
}

// NewVersionsHandler creates a new VersionsHandler. The collector may be nil.
func NewVersionsHandler(service VersionService, store FileStore, collector *metrics.Collector, logger zerolog.Logger) *VersionsHandler {
	return &VersionsHandler{
		service:   service,
		store:     store,
		collector: collector,
		logger:    logger.With().Str("component", "versions_handler").Logger(),
	}
}

// RegisterRoutes registers version routes on the given router group.
func (h *VersionsHandler) RegisterRoutes(r *gin.RouterGroup) {
	files := r.Group("/files")
	{
		files.GET("/:id/versions", h.List)
		files.GET("/:id/versions/:number", h.Get)
		files.GET("/:id/diff", h.Diff)
	}
}

// List returns all versions of a file, newest first, metadata only.
// GET /api/v1/files/:id/versions
func (h *VersionsHandler) List(c *gin.Context) {
	fileID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if ownedFile(c, h.store, fileID) == nil {
		return
	}

	versions, err := h.service.ListVersions(c.Request.Context(), fileID)
	if err != nil {
		h.logger.Error().Err(err).Int64("file_id", fileID).Msg("failed to list versions")
		respondError(c, err, "failed to list versions")
		return
	}
	if versions == nil {
		versions = []*models.Version{}
	}

	c.JSON(http.StatusOK, versions)
}

// Get returns one version with its content. The stored hash is verified
// against the payload before anything is returned.
// GET /api/v1/files/:id/versions/:number
func (h *VersionsHandler) Get(c *gin.Context) {
	fileID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid version number"})
		return
	}

	if ownedFile(c, h.store, fileID) == nil {
		return
	}

	version, err := h.service.GetVersion(c.Request.Context(), fileID, number)
	if err != nil {
		if h.collector != nil && errors.Is(err, vcs.ErrIntegrity) {
			h.collector.IntegrityFailures.Inc()
		}
		h.logger.Error().Err(err).Int64("file_id", fileID).Int("version", number).Msg("failed to get version")
		respondError(c, err, "failed to get version")
		return
	}

	c.JSON(http.StatusOK, version)
}

// Diff compares two versions of a file.
// GET /api/v1/files/:id/diff?v1=N&v2=M&compact=true
func (h *VersionsHandler) Diff(c *gin.Context) {
	fileID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	v1, err := strconv.Atoi(c.Query("v1"))
	if err != nil || v1 < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "v1 must be a positive version number"})
		return
	}
	v2, err := strconv.Atoi(c.Query("v2"))
	if err != nil || v2 < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "v2 must be a positive version number"})
		return
	}

	file := ownedFile(c, h.store, fileID)
	if file == nil {
		return
	}

	from, err := h.service.GetVersion(c.Request.Context(), fileID, v1)
	if err != nil {
		respondError(c, err, "failed to load version")
		return
	}
	to, err := h.service.GetVersion(c.Request.Context(), fileID, v2)
	if err != nil {
		respondError(c, err, "failed to load version")
		return
	}

	result, err := vcs.DiffVersions(file.Filename, from, to)
	if err != nil {
		h.logger.Error().Err(err).Int64("file_id", fileID).Msg("failed to compute diff")
		respondError(c, err, "failed to compute diff")
		return
	}

	if h.collector != nil {
		h.collector.DiffsComputed.Inc()
	}

	if c.Query("compact") == "true" {
		result.Diff = result.Compact
	}

	c.JSON(http.StatusOK, result)
}
