package handlers

import (
	"net/http"

	"github.com/gitlite/gitlite/internal/api/middleware"
	"github.com/gitlite/gitlite/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// stateCookieName holds the OIDC state between login and callback.
const stateCookieName = "gitlite_oidc_state"

// stateCookieMaxAge bounds how long a login attempt stays valid.
const stateCookieMaxAge = 600

// AuthHandler handles the interactive OIDC login flow. API requests
// authenticate with bearer tokens; this flow exists so users can obtain one.
type AuthHandler struct {
	oidc   *auth.OIDC
	logger zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(oidc *auth.OIDC, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		oidc:   oidc,
		logger: logger.With().Str("component", "auth_handler").Logger(),
	}
}

// RegisterRoutes registers auth routes on the given router group.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/login", h.Login)
	r.GET("/callback", h.Callback)
}

// Login initiates the OIDC authentication flow.
// GET /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	state, err := auth.GenerateState()
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to generate state")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to initiate login"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookieName, state, stateCookieMaxAge, "/auth", "", false, true)

	authURL := h.oidc.AuthorizationURL(state)
	h.logger.Debug().Msg("redirecting to OIDC provider")
	c.Redirect(http.StatusTemporaryRedirect, authURL)
}

// TokenResponse carries the tokens issued after a completed login. The
// id_token is what API clients present as their bearer token.
type TokenResponse struct {
	IDToken     string         `json:"id_token"`
	AccessToken string         `json:"access_token"`
	Identity    *auth.Identity `json:"identity"`
}

// Callback handles the OIDC callback after authentication and returns the
// tokens as JSON.
// GET /auth/callback?code=...&state=...
func (h *AuthHandler) Callback(c *gin.Context) {
	if errParam := c.Query("error"); errParam != "" {
		h.logger.Warn().
			Str("error", errParam).
			Str("description", c.Query("error_description")).
			Msg("OIDC provider returned an error")
		c.JSON(http.StatusBadRequest, gin.H{"error": "authentication failed"})
		return
	}

	state := c.Query("state")
	storedState, err := c.Cookie(stateCookieName)
	if err != nil || state == "" || state != storedState {
		h.logger.Warn().Msg("OIDC state mismatch")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid state parameter"})
		return
	}
	c.SetCookie(stateCookieName, "", -1, "/auth", "", false, true)

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing authorization code"})
		return
	}

	token, err := h.oidc.Exchange(c.Request.Context(), code)
	if err != nil {
		h.logger.Error().Err(err).Msg("code exchange failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "authentication failed"})
		return
	}

	identity, err := h.oidc.VerifyIDToken(c.Request.Context(), token)
	if err != nil {
		h.logger.Error().Err(err).Msg("ID token verification failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "authentication failed"})
		return
	}

	rawIDToken, _ := token.Extra("id_token").(string)

	h.logger.Info().Str("subject", identity.Subject).Msg("user logged in")
	c.JSON(http.StatusOK, TokenResponse{
		IDToken:     rawIDToken,
		AccessToken: token.AccessToken,
		Identity:    identity,
	})
}

// Me returns the caller's identity. Registered under the authenticated API
// group.
// GET /api/v1/me
func (h *AuthHandler) Me(c *gin.Context) {
	identity := middleware.RequireIdentity(c)
	if identity == nil {
		return
	}
	c.JSON(http.StatusOK, identity)
}

// RegisterAPIRoutes registers the authenticated identity route.
func (h *AuthHandler) RegisterAPIRoutes(r *gin.RouterGroup) {
	r.GET("/me", h.Me)
}
