package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/smallbiznis/adsbridge/internal/config"
	"github.com/smallbiznis/adsbridge/internal/http/handler"
	httpmiddleware "github.com/smallbiznis/adsbridge/internal/http/middleware"
	"github.com/smallbiznis/adsbridge/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(
	cfg config.Config,
	authHandler *handler.AuthHandler,
	metaHandler *handler.MetaHandler,
	gate *httpmiddleware.Gate,
	rateLimiter *middleware.RateLimiter,
	logger *zap.Logger,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(logger))
	r.Use(httpmiddleware.Metrics())
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/health", handler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := r.Group("/auth")
	{
		authGroup.GET("/start", authHandler.Start)
		authGroup.GET("/callback", authHandler.Callback)
		authGroup.GET("/status", authHandler.Status)
	}

	meta := r.Group("/meta", gate.RequireCredential)
	{
		meta.GET("/accounts", metaHandler.Accounts)
		meta.GET("/campaigns", metaHandler.Campaigns)
		meta.GET("/spend", metaHandler.Spend)
		meta.GET("/leads", metaHandler.Leads)
		meta.GET("/adsets", metaHandler.AdSets)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Not found"})
	})

	return r
}
