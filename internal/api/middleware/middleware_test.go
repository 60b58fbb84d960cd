package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestEngine(buf *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	r := gin.New()
	r.Use(RequestID())
	r.Use(Recovery(logger))
	r.Use(Logging(logger))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/v1/status", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func TestRequestID(t *testing.T) {
	r := newTestEngine(&bytes.Buffer{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	assert.NotEmpty(t, rec.Header().Get(RequestIDKey))

	assert.True(t, strings.HasPrefix(rec.Header().Get(RequestIDKey), "req_"))

	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	req.Header.Set(RequestIDKey, "abc-123")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDKey))

	// Oversized or unprintable IDs are replaced
	for _, bad := range []string{strings.Repeat("x", 65), "abc 123", "abc\u00e9"} {
		req = httptest.NewRequest(http.MethodGet, "/v1/status", nil)
		req.Header.Set(RequestIDKey, bad)
		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.True(t, strings.HasPrefix(rec.Header().Get(RequestIDKey), "req_"), "id %q", bad)
	}
}

func TestLogging_QuietHealth(t *testing.T) {
	var buf bytes.Buffer
	r := newTestEngine(&buf)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, buf.String())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/status?x=1", nil))
	assert.Contains(t, buf.String(), `"path":"/v1/status?x=1"`)
	assert.Contains(t, buf.String(), `"status":200`)
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	r := newTestEngine(&buf)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	assert.Contains(t, buf.String(), "panic in status API handler")
	assert.Contains(t, buf.String(), `"route":"/panic"`)
	assert.Contains(t, buf.String(), `"panic":"boom"`)
}
