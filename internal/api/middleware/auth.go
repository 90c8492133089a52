// Package middleware provides HTTP middleware for the GitLite API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gitlite/gitlite/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys used by this package.
type ContextKey string

// IdentityContextKey is the context key for the authenticated identity.
const IdentityContextKey ContextKey = "identity"

// TokenVerifier is the interface for verifying bearer tokens.
type TokenVerifier interface {
	VerifyBearer(ctx context.Context, rawToken string) (*auth.Identity, error)
}

// ExtractBearerToken returns the token from an "Authorization: Bearer ..."
// header, or "" if the header is absent or malformed.
func ExtractBearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// AuthMiddleware returns a Gin middleware that requires a valid bearer token.
func AuthMiddleware(verifier TokenVerifier, logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "auth_middleware").Logger()

	return func(c *gin.Context) {
		token := ExtractBearerToken(c.GetHeader("Authorization"))
		if token == "" {
			log.Debug().Str("path", c.Request.URL.Path).Msg("missing bearer token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		identity, err := verifier.VerifyBearer(c.Request.Context(), token)
		if err != nil {
			log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("token verification failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(string(IdentityContextKey), identity)

		log.Debug().
			Str("subject", identity.Subject).
			Str("path", c.Request.URL.Path).
			Msg("authenticated request")

		c.Next()
	}
}

// GetIdentity retrieves the authenticated identity from the Gin context.
// Returns nil if the request is unauthenticated.
func GetIdentity(c *gin.Context) *auth.Identity {
	v, exists := c.Get(string(IdentityContextKey))
	if !exists {
		return nil
	}
	identity, ok := v.(*auth.Identity)
	if !ok {
		return nil
	}
	return identity
}

// RequireIdentity is a helper that gets the authenticated identity or aborts
// with 401. Use this in handlers that expect AuthMiddleware to have run.
func RequireIdentity(c *gin.Context) *auth.Identity {
	identity := GetIdentity(c)
	if identity == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return nil
	}
	return identity
}
