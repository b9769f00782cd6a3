package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("MINIO_ACCESS_KEY_ID", "minio")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "minio-secret")
}

func TestLoadAppliesDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, "rod", cfg.PDF.Engine)
	assert.Equal(t, 60*time.Second, cfg.Assemble.RenderTimeout)
	assert.Equal(t, 30*time.Second, cfg.Assemble.FetchTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Preview.BlobTTL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, "host=localhost port=5432 user=cvforge password=cvforge dbname=cvforge sslmode=disable", cfg.Database.DSN())
}

func TestLoadReadsEnvironment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("API_PORT", "9090")
	t.Setenv("API_PUBLIC_BASE_URL", "https://cv.example.com/")
	t.Setenv("PDF_ENGINE", "chromedp")
	t.Setenv("ASSEMBLE_FETCH_TIMEOUT", "5s")
	t.Setenv("JWT_ACCESS_TOKEN_TTL", "1h")
	t.Setenv("API_ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")
	t.Setenv("INTERNAL_API_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, "https://cv.example.com", cfg.API.PublicBaseURL)
	assert.Equal(t, "chromedp", cfg.PDF.Engine)
	assert.Equal(t, 5*time.Second, cfg.Assemble.FetchTimeout)
	assert.Equal(t, time.Hour, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.API.AllowedOrigins)
	assert.Equal(t, "s3cret", cfg.API.InternalSecret)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown engine":     {"PDF_ENGINE": "wkhtmltopdf"},
		"relative base url":  {"API_PUBLIC_BASE_URL": "/v1"},
		"missing minio key":  {"MINIO_ACCESS_KEY_ID": ""},
		"zero concurrency":   {"ASSEMBLE_CONCURRENCY": "0"},
		"negative api port":  {"API_PORT": "-1"},
		"zero login limiter": {"LOGIN_RATE_LIMIT_PER_HOUR": "0"},
		"zero annexe limit":  {"API_MAX_ANNEXE_SIZE": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
