package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/YKarmar/JobMail/internal/store"
	"github.com/YKarmar/JobMail/internal/types"
)

// Login starts the Google consent flow.
// GET /auth/login
func (h *Handler) Login(c *gin.Context) {
	if h.oauth == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Google OAuth credentials not configured. Set gmail.client_id and gmail.client_secret",
		})
		return
	}

	state := uuid.NewString()
	h.states.add(state, h.now())

	authURL := h.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
	c.JSON(http.StatusOK, gin.H{"auth_url": authURL})
}

// Callback exchanges the authorization code, stores the token and sends the
// browser back to the frontend.
// GET /auth/callback?code=...&state=...
func (h *Handler) Callback(c *gin.Context) {
	if h.oauth == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Google OAuth credentials not configured"})
		return
	}

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}
	if !h.states.consume(c.Query("state"), h.now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired OAuth state"})
		return
	}

	ctx := c.Request.Context()
	token, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		h.callbackFailed(c, err)
		return
	}
	email, err := h.lookupEmail(ctx, token)
	if err != nil {
		h.callbackFailed(c, err)
		return
	}

	record := &types.UserToken{
		Email:        email,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		record.TokenExpiry = &expiry
	}
	if err := h.tokens.Save(ctx, record); err != nil {
		h.internalError(c, err)
		return
	}

	h.log.Info().Str("email", email).Msg("mailbox connected")
	c.Redirect(http.StatusTemporaryRedirect, h.frontendURL+"?auth=success&email="+url.QueryEscape(email))
}

func (h *Handler) callbackFailed(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("OAuth callback failed: %v", err)})
}

// AuthStatus reports whether a usable token is stored. A token counts while
// its access token is unexpired or it carries a refresh token.
// GET /auth/status
func (h *Handler) AuthStatus(c *gin.Context) {
	token, err := h.tokens.Latest(c.Request.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"authenticated": false, "email": nil})
			return
		}
		h.internalError(c, err)
		return
	}

	usable := token.RefreshToken != "" ||
		(token.TokenExpiry != nil && token.TokenExpiry.After(h.now()))
	if !usable {
		c.JSON(http.StatusOK, gin.H{"authenticated": false, "email": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "email": token.Email})
}

// POST /auth/logout
func (h *Handler) Logout(c *gin.Context) {
	if err := h.tokens.DeleteAll(c.Request.Context()); err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
