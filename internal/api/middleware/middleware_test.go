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

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSlogLoggerCarriesCorrelationID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := gin.New()
	r.Use(CorrelationIDMiddleware(), SlogLoggerMiddleware(logger))
	r.GET("/items/:id", func(c *gin.Context) {
		LoggerOr(c, nil).Info("handling")
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/items/7", nil)
	req.Header.Set("X-Correlation-ID", "cid-42")
	w := serve(r, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, buf.String(), `"correlation_id":"cid-42"`)
	assert.Contains(t, buf.String(), `"path":"/items/:id"`)
	assert.Contains(t, buf.String(), `"msg":"request completed"`)
}

func TestCorrelationIDReplacesMalformedHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CorrelationIDMiddleware())
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = GetCorrelationID(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderCorrelationID, "bad id\r\ninjected")
	w := serve(r, req)
	assert.NotEqual(t, "bad id\r\ninjected", seen)
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, w.Header().Get(HeaderCorrelationID))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderCorrelationID, strings.Repeat("a", 65))
	serve(r, req)
	assert.Len(t, seen, 36)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderCorrelationID, "web_client.7f3a-01")
	serve(r, req)
	assert.Equal(t, "web_client.7f3a-01", seen)
}

func TestSlogLoggerLevelsByStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := gin.New()
	r.Use(CorrelationIDMiddleware(), SlogLoggerMiddleware(logger))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/broken", func(c *gin.Context) { c.Status(http.StatusBadGateway) })
	r.GET("/mine", func(c *gin.Context) {
		c.Set(UserIDKey, uint(9))
		c.Status(http.StatusNotFound)
	})

	serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, buf.String(), "healthy probes are not logged")

	serve(r, httptest.NewRequest(http.MethodGet, "/broken", nil))
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
	buf.Reset()

	serve(r, httptest.NewRequest(http.MethodGet, "/mine", nil))
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), `"user_id":9`)
}

func TestLoggerOrFallsBack(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	fallback := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	assert.Same(t, fallback, LoggerOr(c, fallback))
	assert.NotNil(t, LoggerOr(c, nil))
}

func TestInternalSecretMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	build := func(secret string) *gin.Engine {
		r := gin.New()
		r.GET("/internal", InternalSecretMiddleware(secret), func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}

	req := httptest.NewRequest(http.MethodGet, "/internal", nil)
	assert.Equal(t, http.StatusInternalServerError, serve(build(""), req).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(build("s"), req).Code)

	req = httptest.NewRequest(http.MethodGet, "/internal?secret=s", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(build("s"), req).Code)

	req.Header.Set("X-Internal-Secret", "s")
	assert.Equal(t, http.StatusOK, serve(build("s"), req).Code)
}

func TestRoleGates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	build := func(admin, mustChange bool) *gin.Engine {
		r := gin.New()
		r.Use(func(c *gin.Context) {
			c.Set(IsAdminKey, admin)
			c.Set(MustChangePasswordKey, mustChange)
		})
		r.GET("/admin", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })
		r.GET("/app", RequirePasswordChangeCompletedMiddleware(), func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}

	assert.Equal(t, http.StatusForbidden, serve(build(false, false), httptest.NewRequest(http.MethodGet, "/admin", nil)).Code)
	assert.Equal(t, http.StatusOK, serve(build(true, false), httptest.NewRequest(http.MethodGet, "/admin", nil)).Code)
	assert.Equal(t, http.StatusForbidden, serve(build(false, true), httptest.NewRequest(http.MethodGet, "/app", nil)).Code)
	assert.Equal(t, http.StatusOK, serve(build(false, false), httptest.NewRequest(http.MethodGet, "/app", nil)).Code)
}
