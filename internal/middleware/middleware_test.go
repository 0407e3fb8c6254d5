package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/adsbridge/internal/config"
)

func TestRateLimiterDisabled(t *testing.T) {
	require.Nil(t, NewRateLimiter(0))

	gin.SetMode(gin.TestMode)
	var limiter *RateLimiter
	r := gin.New()
	r.Use(limiter.Handler())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimiterRejectsBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRateLimiter(1).Handler())
	r.GET("/meta/accounts", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/meta/accounts", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/meta/accounts", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Contains(t, w.Body.String(), `"success":false`)
	require.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestRateLimiterIgnoresRotatingUserIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewRateLimiter(60)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	r := gin.New()
	r.Use(limiter.Handler())
	r.GET("/meta/accounts", func(c *gin.Context) { c.Status(http.StatusOK) })

	allowed, limited := 0, 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/meta/accounts?userId=u%d", i), nil)
		req.Header.Set("X-User-ID", fmt.Sprintf("h%d", i))
		req.RemoteAddr = "203.0.113.7:4000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		switch w.Code {
		case http.StatusOK:
			allowed++
		case http.StatusTooManyRequests:
			limited++
		}
	}
	require.Equal(t, 6, allowed)
	require.Equal(t, 44, limited)
	require.Equal(t, 1, limiter.Tracked())
}

func TestRateLimiterBoundsTrackedClients(t *testing.T) {
	limiter := NewRateLimiter(60)
	limiter.maxClients = 3
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		now = now.Add(time.Second)
		require.True(t, limiter.allow(fmt.Sprintf("10.0.0.%d", i)))
	}
	require.Equal(t, 3, limiter.Tracked())

	now = now.Add(idleWindow + time.Minute)
	require.True(t, limiter.allow("10.0.1.1"))
	require.Equal(t, 1, limiter.Tracked())
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.Config{
		CORSAllowedOrigins: []string{"https://app.example.com"},
		CORSAllowedMethods: []string{"GET", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "X-User-ID"},
	}
	r := gin.New()
	r.Use(CORS(cfg))
	r.GET("/meta/accounts", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/meta/accounts", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "Content-Type, X-User-ID", w.Header().Get("Access-Control-Allow-Headers"))

	req = httptest.NewRequest(http.MethodGet, "/meta/accounts", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
