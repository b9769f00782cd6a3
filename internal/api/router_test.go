package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthAndMetricsEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/health", nil, "", "")
	requireStatus(t, w, http.StatusOK)
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))

	requireStatus(t, env.do(http.MethodGet, "/metrics", nil, "", ""), http.StatusUnauthorized)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-Internal-Secret", testSecret)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	requireStatus(t, rec, http.StatusOK)
	assert.Contains(t, rec.Body.String(), "# TYPE")
}

func TestCorrelationIDIsPropagated(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Correlation-ID", "cid-123")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, "cid-123", rec.Header().Get("X-Correlation-ID"))
}
