package handlers

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gitlite/gitlite/internal/api/middleware"
	"github.com/gitlite/gitlite/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RepositoryStore defines the interface for repository persistence operations.
type RepositoryStore interface {
	CreateRepository(ctx context.Context, repo *models.Repository) error
	GetRepository(ctx context.Context, id int64) (*models.Repository, error)
	GetRepositoriesByOwner(ctx context.Context, ownerSubject string) ([]*models.Repository, error)
	UpdateRepository(ctx context.Context, repo *models.Repository) error
	DeleteRepository(ctx context.Context, id int64) error
	GetRepositoryStats(ctx context.Context, repositoryID int64) (*models.RepositoryStats, error)
	GetRepositoryActivity(ctx context.Context, repositoryID int64, limit int) ([]*models.ActivityEntry, error)
	GetRepositoryFiles(ctx context.Context, repositoryID int64) ([]*models.File, error)
}

// Reconstructor defines the interface for temporal state queries.
type Reconstructor interface {
	StateAt(ctx context.Context, repositoryID int64, at time.Time) (map[int64]*models.Version, error)
	Compare(ctx context.Context, repositoryID int64, t1, t2 time.Time) ([]models.ChangedFile, error)
}

// RepositoriesHandler handles repository HTTP endpoints.
type RepositoriesHandler struct {
	store         RepositoryStore
	recon         Reconstructor
	activityLimit int
	logger        zerolog.Logger
}

// NewRepositoriesHandler creates a new RepositoriesHandler.
func NewRepositoriesHandler(store RepositoryStore, recon Reconstructor, activityLimit int, logger zerolog.Logger) *RepositoriesHandler {
	if activityLimit <= 0 {
		activityLimit = 20
	}
	return &RepositoriesHandler{
		store:         store,
		recon:         recon,
		activityLimit: activityLimit,
		logger:        logger.With().Str("component", "repositories_handler").Logger(),
	}
}

// RegisterRoutes registers repository routes on the given router group.
func (h *RepositoriesHandler) RegisterRoutes(r *gin.RouterGroup) {
	repos := r.Group("/repositories")
	{
		repos.POST("", h.Create)
		repos.GET("", h.List)
		repos.GET("/:id", h.Get)
		repos.PUT("/:id", h.Update)
		repos.DELETE("/:id", h.Delete)
		repos.GET("/:id/stats", h.Stats)
		repos.GET("/:id/activity", h.Activity)
		repos.GET("/:id/state", h.StateAt)
		repos.GET("/:id/compare", h.Compare)
	}
}

// parseIDParam parses the :id path parameter, responding 400 on failure.
func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// ownedRepository loads a repository and verifies the caller owns it.
// Repositories owned by someone else are reported as not found rather than
// forbidden, so ids cannot be probed.
func (h *RepositoriesHandler) ownedRepository(c *gin.Context, id int64) *models.Repository {
	identity := middleware.RequireIdentity(c)
	if identity == nil {
		return nil
	}

	repo, err := h.store.GetRepository(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "failed to load repository")
		return nil
	}
	if repo.OwnerSubject != identity.Subject {
		c.JSON(http.StatusNotFound, gin.H{"error": "repository not found"})
		return nil
	}
	return repo
}

// CreateRepositoryRequest is the request body for creating a repository.
type CreateRepositoryRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

// Create creates a new repository owned by the caller.
// POST /api/v1/repositories
func (h *RepositoriesHandler) Create(c *gin.Context) {
	identity := middleware.RequireIdentity(c)
	if identity == nil {
		return
	}

	var req CreateRepositoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	repo := models.NewRepository(identity.Subject, req.Name, req.Description)
	if err := h.store.CreateRepository(c.Request.Context(), repo); err != nil {
		h.logger.Error().Err(err).Str("name", req.Name).Msg("failed to create repository")
		respondError(c, err, "failed to create repository")
		return
	}

	c.JSON(http.StatusCreated, repo)
}

// List returns all repositories owned by the caller, newest first.
// GET /api/v1/repositories
func (h *RepositoriesHandler) List(c *gin.Context) {
	identity := middleware.RequireIdentity(c)
	if identity == nil {
		return
	}

	repos, err := h.store.GetRepositoriesByOwner(c.Request.Context(), identity.Subject)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list repositories")
		respondError(c, err, "failed to list repositories")
		return
	}
	if repos == nil {
		repos = []*models.Repository{}
	}

	c.JSON(http.StatusOK, repos)
}

// Get returns a single repository.
// GET /api/v1/repositories/:id
func (h *RepositoriesHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	repo := h.ownedRepository(c, id)
	if repo == nil {
		return
	}

	c.JSON(http.StatusOK, repo)
}

// UpdateRepositoryRequest is the request body for updating a repository.
type UpdateRepositoryRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

// Update updates a repository's name and description.
// PUT /api/v1/repositories/:id
func (h *RepositoriesHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	repo := h.ownedRepository(c, id)
	if repo == nil {
		return
	}

	var req UpdateRepositoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	repo.Name = req.Name
	repo.Description = req.Description
	if err := h.store.UpdateRepository(c.Request.Context(), repo); err != nil {
		h.logger.Error().Err(err).Int64("repository_id", id).Msg("failed to update repository")
		respondError(c, err, "failed to update repository")
		return
	}

	c.JSON(http.StatusOK, repo)
}

// Delete hard-deletes a repository with all its files and versions.
// DELETE /api/v1/repositories/:id
func (h *RepositoriesHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if h.ownedRepository(c, id) == nil {
		return
	}

	if err := h.store.DeleteRepository(c.Request.Context(), id); err != nil {
		h.logger.Error().Err(err).Int64("repository_id", id).Msg("failed to delete repository")
		respondError(c, err, "failed to delete repository")
		return
	}

	c.Status(http.StatusNoContent)
}

// Stats returns aggregate statistics for a repository.
// GET /api/v1/repositories/:id/stats
func (h *RepositoriesHandler) Stats(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if h.ownedRepository(c, id) == nil {
		return
	}

	stats, err := h.store.GetRepositoryStats(c.Request.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Int64("repository_id", id).Msg("failed to get repository stats")
		respondError(c, err, "failed to get repository stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Activity returns the most recent version writes in a repository.
// GET /api/v1/repositories/:id/activity?limit=N
func (h *RepositoriesHandler) Activity(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if h.ownedRepository(c, id) == nil {
		return
	}

	limit := h.activityLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	entries, err := h.store.GetRepositoryActivity(c.Request.Context(), id, limit)
	if err != nil {
		h.logger.Error().Err(err).Int64("repository_id", id).Msg("failed to get repository activity")
		respondError(c, err, "failed to get repository activity")
		return
	}
	if entries == nil {
		entries = []*models.ActivityEntry{}
	}

	c.JSON(http.StatusOK, entries)
}

// FileStateResponse is one file's resolved version in a state snapshot.
type FileStateResponse struct {
	FileID        int64   `json:"file_id"`
	Filename      string  `json:"filename"`
	VersionNumber int     `json:"version_number"`
	ContentHash   string  `json:"content_hash"`
	MIMEType      string  `json:"mime_type"`
	FileSize      int64   `json:"file_size"`
	CommitMessage *string `json:"commit_message"`
	CreatedAt     string  `json:"created_at"`
}

// StateAtResponse is the reconstructed repository state at an instant.
type StateAtResponse struct {
	RepositoryID int64               `json:"repository_id"`
	At           string              `json:"at"`
	Files        []FileStateResponse `json:"files"`
}

// StateAt reconstructs the repository as it existed at a past instant.
// GET /api/v1/repositories/:id/state?at=RFC3339
func (h *RepositoriesHandler) StateAt(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if h.ownedRepository(c, id) == nil {
		return
	}

	at, err := time.Parse(time.RFC3339, c.Query("at"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at must be an RFC 3339 timestamp"})
		return
	}

	state, err := h.recon.StateAt(c.Request.Context(), id, at)
	if err != nil {
		h.logger.Error().Err(err).Int64("repository_id", id).Msg("failed to reconstruct state")
		respondError(c, err, "failed to reconstruct state")
		return
	}

	files, err := h.store.GetRepositoryFiles(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "failed to load files")
		return
	}
	names := make(map[int64]string, len(files))
	for _, f := range files {
		names[f.ID] = f.Filename
	}

	resp := StateAtResponse{
		RepositoryID: id,
		At:           at.Format(time.RFC3339),
		Files:        make([]FileStateResponse, 0, len(state)),
	}
	for fileID, v := range state {
		resp.Files = append(resp.Files, FileStateResponse{
			FileID:        fileID,
			Filename:      names[fileID],
			VersionNumber: v.VersionNumber,
			ContentHash:   v.ContentHash,
			MIMEType:      v.MIMEType,
			FileSize:      v.FileSize,
			CommitMessage: v.CommitMessage,
			CreatedAt:     v.CreatedAt.Format(time.RFC3339),
		})
	}
	sort.Slice(resp.Files, func(i, j int) bool { return resp.Files[i].FileID < resp.Files[j].FileID })

	c.JSON(http.StatusOK, resp)
}

// Compare diffs the repository state between two instants.
// GET /api/v1/repositories/:id/compare?from=RFC3339&to=RFC3339
func (h *RepositoriesHandler) Compare(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if h.ownedRepository(c, id) == nil {
		return
	}

	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must be an RFC 3339 timestamp"})
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to must be an RFC 3339 timestamp"})
		return
	}

	changes, err := h.recon.Compare(c.Request.Context(), id, from, to)
	if err != nil {
		h.logger.Error().Err(err).Int64("repository_id", id).Msg("failed to compare states")
		respondError(c, err, "failed to compare states")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"repository_id": id,
		"from":          from.Format(time.RFC3339),
		"to":            to.Format(time.RFC3339),
		"changes":       changes,
	})
}
