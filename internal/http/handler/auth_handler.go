package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/adsbridge/internal/domain"
	authsvc "github.com/smallbiznis/adsbridge/internal/service/auth"
)

// AuthService is the OAuth surface used by AuthHandler.
type AuthService interface {
	Start(ctx context.Context, userID string) (*authsvc.StartOutput, error)
	Callback(ctx context.Context, in authsvc.CallbackInput) (*authsvc.CallbackOutput, error)
	Status(ctx context.Context, userID string) (*authsvc.StatusOutput, error)
}

var _ AuthService = (*authsvc.Service)(nil)

// AuthHandler serves the OAuth endpoints.
type AuthHandler struct {
	Auth   AuthService
	logger *zap.Logger
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth AuthService, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.L()
	}
	return &AuthHandler{Auth: auth, logger: logger}
}

// Start returns the authorization URL for the caller.
func (h *AuthHandler) Start(c *gin.Context) {
	userID := requestUserID(c)
	if userID == "" {
		respondError(c, h.logger, domain.NewValidationError("userId is required"))
		return
	}

	out, err := h.Auth.Start(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"authUrl": out.AuthURL,
		"message": "Redirect the user to authUrl to connect their Meta account.",
	})
}

// Callback completes the OAuth redirect.
func (h *AuthHandler) Callback(c *gin.Context) {
	out, err := h.Auth.Callback(c.Request.Context(), authsvc.CallbackInput{
		Code:             c.Query("code"),
		State:            c.Query("state"),
		Error:            c.Query("error"),
		ErrorDescription: c.Query("error_description"),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Authentication successful.",
		"userId":    out.UserID,
		"expiresAt": out.ExpiresAt,
	})
}

// Status reports whether the caller holds a usable credential.
func (h *AuthHandler) Status(c *gin.Context) {
	userID := requestUserID(c)
	if userID == "" {
		respondError(c, h.logger, domain.NewValidationError("userId is required"))
		return
	}

	out, err := h.Auth.Status(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"authenticated": out.Authenticated,
		"expired":       out.Expired,
		"expiresAt":     out.ExpiresAt,
		"adAccountId":   out.AdAccountID,
	})
}

func requestUserID(c *gin.Context) string {
	if userID := strings.TrimSpace(c.Query("userId")); userID != "" {
		return userID
	}
	return strings.TrimSpace(c.GetHeader("X-User-ID"))
}
