package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/adsbridge/internal/adapter/graph"
	"github.com/smallbiznis/adsbridge/internal/domain"
)

// respondError maps service errors onto the {success:false, error} envelope.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	if logger == nil {
		logger = zap.L()
	}
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		logger.Warn("invalid request", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": validationErr.Message})
	case errors.Is(err, domain.ErrInvalidRequest):
		logger.Warn("invalid request", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, domain.ErrTokenExpired):
		logger.Warn("token expired", zap.String("path", c.FullPath()))
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Token expired. Please re-authenticate.", "expired": true})
	case errors.Is(err, domain.ErrNotAuthenticated), errors.Is(err, domain.ErrCredentialNotFound):
		logger.Warn("not authenticated", zap.String("path", c.FullPath()))
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "User not authenticated. Please authenticate first.", "authenticated": false})
	default:
		if upErr, ok := graph.AsUpstreamError(err); ok {
			logger.Error("upstream request failed",
				zap.String("path", c.FullPath()),
				zap.Int("upstream_status", upErr.StatusCode),
				zap.Error(err),
			)
			body := gin.H{"success": false, "error": upErr.Message}
			if upErr.StatusCode > 0 {
				body["upstreamStatus"] = upErr.StatusCode
			}
			c.JSON(http.StatusInternalServerError, body)
			return
		}
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
	}
}
