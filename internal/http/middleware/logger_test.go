package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedactQuery(t *testing.T) {
	out := RedactQuery("code=abc&state=xyz&userId=u1&access_token=secret")
	values, err := url.ParseQuery(out)
	require.NoError(t, err)
	require.Equal(t, "REDACTED", values.Get("code"))
	require.Equal(t, "REDACTED", values.Get("state"))
	require.Equal(t, "REDACTED", values.Get("access_token"))
	require.Equal(t, "u1", values.Get("userId"))

	require.Empty(t, RedactQuery(""))
	require.Equal(t, "REDACTED", RedactQuery("%zz"))
}

func TestRequestLoggerNeverLogsCode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)

	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/auth/callback", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/callback?code=very-secret&state=s", nil))
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))

	entries := logs.All()
	require.Len(t, entries, 1)
	path := entries[0].ContextMap()["path"].(string)
	require.NotContains(t, path, "very-secret")
	require.Contains(t, path, "REDACTED")
}
