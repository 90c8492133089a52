// Package handlers implements the HTTP handlers for the GitLite API.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gitlite/gitlite/internal/vcs"
	"github.com/gin-gonic/gin"
)

// statusFromError maps engine errors onto HTTP status codes.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, vcs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, vcs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, vcs.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes a JSON error response. Internal details never reach
// the client; public is the message the caller sees.
func respondError(c *gin.Context, err error, public string) {
	status := statusFromError(err)
	if status == http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": public})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
