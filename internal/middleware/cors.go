package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/dkoretsky/pipegate/internal/pipeline"
)

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSConfig returns default CORS configuration.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		MaxAge:       86400,
	}
}

// CORS is a pre-middleware that answers preflight requests and carries CORS
// headers forward on regular requests. Preflights short-circuit with 204;
// everything else continues with the computed headers pending.
type CORS struct {
	name    string
	scope   string
	headers *corsHeaders
}

// NewCORS creates the CORS middleware for the given path scope.
func NewCORS(scope string, cfg CORSConfig) *CORS {
	return &CORS{
		name:    "cors",
		scope:   scope,
		headers: newCORSHeaders(cfg),
	}
}

// Name implements pipeline.Middleware.
func (m *CORS) Name() string { return m.name }

// Scope implements pipeline.Middleware.
func (m *CORS) Scope() string { return m.scope }

// Before implements pipeline.PreMiddleware.
func (m *CORS) Before(_ context.Context, req *pipeline.Request) (pipeline.Verdict, error) {
	origin := req.Header.Get(HeaderOrigin)

	headers := make(http.Header)
	m.headers.apply(headers, origin)

	if origin != "" && !m.headers.isOriginAllowed(origin) {
		GetMiddlewareMetrics().corsOriginsRejected.Inc()
	}

	if req.Method == http.MethodOptions {
		GetMiddlewareMetrics().corsPreflights.Inc()

		resp := pipeline.NewResponse()
		resp.StatusCode = http.StatusNoContent
		resp.Header = headers
		return pipeline.ShortCircuit(resp), nil
	}

	return pipeline.ContinueWithHeaders(headers), nil
}

// corsHeaders holds pre-computed CORS header values.
type corsHeaders struct {
	allowOrigins     map[string]bool
	wildcardPatterns []string // Patterns like "*.example.com"
	allowAllOrigins  bool
	allowMethods     string
	allowHeaders     string
	exposeHeaders    string
	maxAge           string
	allowCredentials bool
	hasAllowMethods  bool
	hasAllowHeaders  bool
	hasExposeHeaders bool
	hasMaxAge        bool
}

// newCORSHeaders creates pre-computed CORS headers from config.
func newCORSHeaders(cfg CORSConfig) *corsHeaders {
	allowOrigins := make(map[string]bool)
	var wildcardPatterns []string
	allowAllOrigins := false

	for _, origin := range cfg.AllowOrigins {
		switch {
		case origin == "*":
			allowAllOrigins = true
		case strings.HasPrefix(origin, "*."):
			// Wildcard subdomain pattern like "*.example.com"
			wildcardPatterns = append(wildcardPatterns, origin)
		default:
			allowOrigins[origin] = true
		}
	}

	return &corsHeaders{
		allowOrigins:     allowOrigins,
		wildcardPatterns: wildcardPatterns,
		allowAllOrigins:  allowAllOrigins,
		allowMethods:     strings.Join(cfg.AllowMethods, ", "),
		allowHeaders:     strings.Join(cfg.AllowHeaders, ", "),
		exposeHeaders:    strings.Join(cfg.ExposeHeaders, ", "),
		maxAge:           strconv.Itoa(cfg.MaxAge),
		allowCredentials: cfg.AllowCredentials,
		hasAllowMethods:  len(cfg.AllowMethods) > 0,
		hasAllowHeaders:  len(cfg.AllowHeaders) > 0,
		hasExposeHeaders: len(cfg.ExposeHeaders) > 0,
		hasMaxAge:        cfg.MaxAge > 0,
	}
}

// isOriginAllowed checks if the given origin is allowed.
func (h *corsHeaders) isOriginAllowed(origin string) bool {
	if origin == "" {
		return false
	}

	if h.allowAllOrigins {
		return true
	}

	if h.allowOrigins[origin] {
		return true
	}

	for _, pattern := range h.wildcardPatterns {
		if matchWildcardOrigin(origin, pattern) {
			return true
		}
	}

	return false
}

// matchWildcardOrigin checks if an origin matches a wildcard pattern.
// Pattern format: "*.example.com" matches "sub.example.com", "api.example.com", etc.
func matchWildcardOrigin(origin, pattern string) bool {
	if !strings.HasPrefix(pattern, "*.") {
		return false
	}

	// Extract the domain suffix from the pattern (e.g., ".example.com")
	suffix := pattern[1:]

	// Origin format: "https://sub.example.com" or "http://sub.example.com:8080"
	host := origin

	if idx := strings.Index(host, "://"); idx != -1 {
		host = host[idx+3:]
	}

	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}

	// Require at least one character before the suffix (the subdomain)
	return len(host) > len(suffix) && strings.HasSuffix(host, suffix)
}

// apply sets CORS headers for the given origin.
func (h *corsHeaders) apply(headers http.Header, origin string) {
	if h.isOriginAllowed(origin) {
		// Echo the specific origin; required when credentials are allowed
		headers.Set("Access-Control-Allow-Origin", origin)
		headers.Set("Vary", "Origin")
	}

	if h.hasAllowMethods {
		headers.Set("Access-Control-Allow-Methods", h.allowMethods)
	}

	if h.hasAllowHeaders {
		headers.Set("Access-Control-Allow-Headers", h.allowHeaders)
	}

	if h.hasExposeHeaders {
		headers.Set("Access-Control-Expose-Headers", h.exposeHeaders)
	}

	if h.allowCredentials {
		headers.Set("Access-Control-Allow-Credentials", "true")
	}

	if h.hasMaxAge {
		headers.Set("Access-Control-Max-Age", h.maxAge)
	}
}
