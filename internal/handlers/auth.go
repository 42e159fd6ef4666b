package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/actionable-app/actionable/pkg/crypto"
	appErrors "github.com/actionable-app/actionable/pkg/errors"
	"github.com/actionable-app/actionable/pkg/metrics"
	"github.com/actionable-app/actionable/pkg/response"

	iauth "github.com/actionable-app/actionable/internal/auth"
	"github.com/actionable-app/actionable/internal/auth/providers"
	"github.com/actionable-app/actionable/internal/cache"
	"github.com/actionable-app/actionable/internal/models"
	"github.com/actionable-app/actionable/internal/realtime"
)

const (
	oauthCodePrefix = "oauth:code:"
	oauthCodeTTL    = 5 * time.Minute
)

// AuthHandler serves sign-up, sign-in, session and OAuth endpoints.
type AuthHandler struct {
	local    *providers.LocalProvider
	google   *providers.GoogleProvider
	accounts *iauth.AccountService
	sessions *iauth.SessionService
	kv       cache.Store
	hub      *realtime.Hub

	// deepLinkURL is the app scheme callback, e.g. actionable://auth/callback.
	deepLinkURL string
}

// NewAuthHandler constructs an AuthHandler. The google provider may be nil
// when OAuth is not configured.
func NewAuthHandler(
	local *providers.LocalProvider,
	google *providers.GoogleProvider,
	accounts *iauth.AccountService,
	sessions *iauth.SessionService,
	kv cache.Store,
	hub *realtime.Hub,
	deepLinkURL string,
) *AuthHandler {
	return &AuthHandler{
		local:       local,
		google:      google,
		accounts:    accounts,
		sessions:    sessions,
		kv:          kv,
		hub:         hub,
		deepLinkURL: deepLinkURL,
	}
}

type signUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Name     string `json:"name" validate:"max=128"`
}

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type exchangeRequest struct {
	Code string `json:"code" validate:"required"`
}

type tokenPayload struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         *models.User `json:"user,omitempty"`
}

// SignUp registers a local account and opens a session.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req signUpRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.local.Register(requestContext(c), providers.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, err)
		return
	}

	h.respondWithSession(c, user, http.StatusCreated)
}

// SignIn authenticates a local account and opens a session.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req signInRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.local.Authenticate(requestContext(c), req.Email, req.Password, c.ClientIP())
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, err)
		return
	}

	h.respondWithSession(c, user, http.StatusOK)
}

// SignOut revokes the current session.
func (h *AuthHandler) SignOut(c *gin.Context) {
	sessionID := currentSessionID(c)
	if sessionID != "" {
		if err := h.sessions.RevokeSession(requestContext(c), sessionID); err != nil {
			response.Error(c, err)
			return
		}
	}

	if h.hub != nil {
		h.hub.PublishSessionEvent(currentUserID(c), "signed_out", gin.H{"session_id": sessionID})
	}
	response.Success(c, http.StatusOK, gin.H{"signed_out": true})
}

// Refresh rotates a refresh token and issues a new access token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}

	tokens, err := h.sessions.RefreshSession(requestContext(c), req.RefreshToken, iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, tokenPayload{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
	})
}

// BeginGoogle starts the Google OAuth flow and returns the authorization URL.
func (h *AuthHandler) BeginGoogle(c *gin.Context) {
	if h.google == nil {
		response.Error(c, appErrors.NewBadRequest("Google sign-in is not configured"))
		return
	}

	req, err := h.google.Begin(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, req)
}

// GoogleCallback completes the OAuth flow. On success it redirects to the app
// deep link with a one-time authorization code; with legacy=1 it instead
// carries the tokens in the URL fragment for older clients.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if h.google == nil {
		response.Error(c, appErrors.NewBadRequest("Google sign-in is not configured"))
		return
	}

	ident, err := h.google.Exchange(requestContext(c), c.Query("state"), c.Query("code"))
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, err)
		return
	}

	user, err := h.accounts.FindOrCreate(requestContext(c), iauth.ExternalIdentity{
		Provider: "google",
		Subject:  ident.Subject,
		Email:    ident.Email,
		Name:     ident.Name,
		Picture:  ident.Picture,
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, err)
		return
	}

	tokens, err := h.sessions.CreateSession(requestContext(c), user.ID, iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	metrics.AuthAttempts.WithLabelValues("success").Inc()

	if c.Query("legacy") == "1" {
		fragment := url.Values{
			"access_token":  {tokens.AccessToken},
			"refresh_token": {tokens.RefreshToken},
		}
		c.Redirect(http.StatusFound, h.deepLinkURL+"#"+fragment.Encode())
		return
	}

	code, err := h.issueOneTimeCode(c, tokens, user)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Redirect(http.StatusFound, h.deepLinkURL+"?code="+url.QueryEscape(code))
}

// ExchangeCode swaps a one-time authorization code for the session tokens.
// Codes are single-use and expire after five minutes.
func (h *AuthHandler) ExchangeCode(c *gin.Context) {
	var req exchangeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	key := oauthCodePrefix + req.Code
	payload, found, err := h.kv.Get(requestContext(c), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !found {
		response.Error(c, appErrors.NewBadRequest("Unknown or expired authorization code"))
		return
	}
	if err := h.kv.Delete(requestContext(c), key); err != nil {
		response.Error(c, err)
		return
	}

	var tokens tokenPayload
	if err := json.Unmarshal(payload, &tokens); err != nil {
		response.Error(c, fmt.Errorf("auth handler: decode code payload: %w", err))
		return
	}
	response.Success(c, http.StatusOK, tokens)
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.accounts.Get(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

func (h *AuthHandler) respondWithSession(c *gin.Context, user *models.User, status int) {
	tokens, err := h.sessions.CreateSession(requestContext(c), user.ID, iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	if h.hub != nil {
		h.hub.PublishSessionEvent(user.ID, "signed_in", gin.H{"session_id": tokens.SessionID})
	}

	response.Success(c, status, tokenPayload{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
		User:         user,
	})
}

func (h *AuthHandler) issueOneTimeCode(c *gin.Context, tokens *iauth.SessionTokens, user *models.User) (string, error) {
	code, err := crypto.GenerateToken(32)
	if err != nil {
		return "", fmt.Errorf("auth handler: generate code: %w", err)
	}

	payload, err := json.Marshal(tokenPayload{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
		User:         user,
	})
	if err != nil {
		return "", fmt.Errorf("auth handler: encode code payload: %w", err)
	}
	if err := h.kv.Set(requestContext(c), oauthCodePrefix+code, payload, oauthCodeTTL); err != nil {
		return "", fmt.Errorf("auth handler: store code: %w", err)
	}
	return code, nil
}
