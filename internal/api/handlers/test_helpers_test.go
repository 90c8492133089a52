package handlers

import (
	"github.com/gitlite/gitlite/internal/api/middleware"
	"github.com/gitlite/gitlite/internal/auth"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testIdentity creates an Identity for testing.
func testIdentity() *auth.Identity {
	return &auth.Identity{
		Subject: "user-123",
		Email:   "test@example.com",
		Name:    "Test User",
	}
}

// injectIdentity returns a middleware that sets the given identity on the
// request context, standing in for the real bearer token middleware. A nil
// identity simulates an unauthenticated request.
func injectIdentity(identity *auth.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		if identity != nil {
			c.Set(string(middleware.IdentityContextKey), identity)
		}
		c.Next()
	}
}
