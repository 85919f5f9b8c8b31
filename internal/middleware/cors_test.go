package middleware

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoretsky/pipegate/internal/pipeline"
)

func corsRequest(method, origin string) *pipeline.Request {
	req := pipeline.NewRequest(method, "/api/users")
	if origin != "" {
		req.Header.Set(HeaderOrigin, origin)
	}
	return req
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	t.Parallel()

	m := NewCORS("/", DefaultCORSConfig())

	verdict, err := m.Before(context.Background(),
		corsRequest(http.MethodOptions, "https://example.com"))
	require.NoError(t, err)

	assert.Equal(t, pipeline.ActionShortCircuit, verdict.Action)
	require.NotNil(t, verdict.Response)
	assert.Equal(t, http.StatusNoContent, verdict.Response.StatusCode)
	assert.Equal(t, "https://example.com",
		verdict.Response.Header.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, verdict.Response.Header.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "86400", verdict.Response.Header.Get("Access-Control-Max-Age"))
}

func TestCORS_RegularRequestContinuesWithHeaders(t *testing.T) {
	t.Parallel()

	m := NewCORS("/", DefaultCORSConfig())

	verdict, err := m.Before(context.Background(),
		corsRequest(http.MethodGet, "https://example.com"))
	require.NoError(t, err)

	assert.Equal(t, pipeline.ActionContinueWithHeaders, verdict.Action)
	assert.Equal(t, "https://example.com",
		verdict.Headers.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", verdict.Headers.Get("Vary"))
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	t.Parallel()

	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = []string{"https://allowed.com"}

	m := NewCORS("/", cfg)

	verdict, err := m.Before(context.Background(),
		corsRequest(http.MethodGet, "https://evil.com"))
	require.NoError(t, err)

	assert.Equal(t, pipeline.ActionContinueWithHeaders, verdict.Action)
	assert.Empty(t, verdict.Headers.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, verdict.Headers.Get("Access-Control-Allow-Methods"))
}

func TestCORS_AllowCredentials(t *testing.T) {
	t.Parallel()

	cfg := DefaultCORSConfig()
	cfg.AllowCredentials = true

	m := NewCORS("/", cfg)

	verdict, err := m.Before(context.Background(),
		corsRequest(http.MethodGet, "https://example.com"))
	require.NoError(t, err)

	assert.Equal(t, "true", verdict.Headers.Get("Access-Control-Allow-Credentials"))
}

func TestMatchWildcardOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		origin  string
		pattern string
		want    bool
	}{
		{"subdomain matches", "https://api.example.com", "*.example.com", true},
		{"nested subdomain matches", "https://a.b.example.com", "*.example.com", true},
		{"with port", "http://api.example.com:8080", "*.example.com", true},
		{"bare domain does not match", "https://example.com", "*.example.com", false},
		{"different domain", "https://api.other.com", "*.example.com", false},
		{"suffix trick", "https://evilexample.com", "*.example.com", false},
		{"non-wildcard pattern", "https://api.example.com", "example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, matchWildcardOrigin(tt.origin, tt.pattern))
		})
	}
}

func TestCORS_WildcardSubdomains(t *testing.T) {
	t.Parallel()

	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = []string{"*.example.com"}

	m := NewCORS("/", cfg)

	verdict, err := m.Before(context.Background(),
		corsRequest(http.MethodGet, "https://api.example.com"))
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com",
		verdict.Headers.Get("Access-Control-Allow-Origin"))

	verdict, err = m.Before(context.Background(),
		corsRequest(http.MethodGet, "https://example.com"))
	require.NoError(t, err)
	assert.Empty(t, verdict.Headers.Get("Access-Control-Allow-Origin"))
}
