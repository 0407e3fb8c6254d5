package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/adsbridge/internal/domain"
	"github.com/smallbiznis/adsbridge/internal/repository"
)

const (
	accessTokenKey = "accessToken"
	adAccountIDKey = "adAccountId"
	userIDKey      = "userId"

	// UserIDHeader is the fallback carrier for the caller's user id.
	UserIDHeader = "X-User-ID"
)

// Gate resolves the caller's stored credential before data endpoints run.
type Gate struct {
	repo   repository.CredentialRepository
	now    func() time.Time
	logger *zap.Logger
}

// NewGate builds the credential gate.
func NewGate(repo repository.CredentialRepository, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.L()
	}
	return &Gate{repo: repo, now: time.Now, logger: logger}
}

// RequireCredential aborts with 401 unless the user holds an unexpired credential.
func (g *Gate) RequireCredential(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		userID = strings.TrimSpace(c.GetHeader(UserIDHeader))
	}
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success":       false,
			"error":         "userId is required",
			"authenticated": false,
		})
		return
	}

	cred, err := g.repo.FindByUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success":       false,
				"error":         "User not authenticated. Please authenticate first.",
				"authenticated": false,
			})
			return
		}
		g.logger.Error("credential lookup failed", zap.String("user_id", userID), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Internal server error",
		})
		return
	}

	if cred.IsExpired(g.now()) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Token expired. Please re-authenticate.",
			"expired": true,
		})
		return
	}

	adAccountID := strings.TrimSpace(c.Query("adAccountId"))
	if adAccountID == "" {
		adAccountID = cred.AdAccount()
	}

	c.Set(userIDKey, userID)
	c.Set(accessTokenKey, cred.AccessToken)
	c.Set(adAccountIDKey, adAccountID)
	c.Next()
}

// GetAccessToken exposes the resolved access token to handlers.
func GetAccessToken(c *gin.Context) (string, bool) {
	return getString(c, accessTokenKey)
}

// GetAdAccountID returns the request's ad account, "" when none could be resolved.
func GetAdAccountID(c *gin.Context) string {
	id, _ := getString(c, adAccountIDKey)
	return id
}

// GetUserID returns the gated user id.
func GetUserID(c *gin.Context) (string, bool) {
	return getString(c, userIDKey)
}

func getString(c *gin.Context, key string) (string, bool) {
	value, ok := c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok && s != ""
}
