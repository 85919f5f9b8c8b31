package middleware

import (
	"context"

	"github.com/dkoretsky/pipegate/internal/pipeline"
)

// SecurityHeadersConfig configures security headers.
type SecurityHeadersConfig struct {
	XFrameOptions           string
	XContentTypeOptions     string
	XXSSProtection          string
	StrictTransportSecurity string
	ReferrerPolicy          string
	PermissionsPolicy       string
	CustomHeaders           map[string]string
}

// DefaultSecurityHeadersConfig returns default security headers.
func DefaultSecurityHeadersConfig() SecurityHeadersConfig {
	return SecurityHeadersConfig{
		XFrameOptions:       "DENY",
		XContentTypeOptions: "nosniff",
		XXSSProtection:      "1; mode=block",
		ReferrerPolicy:      "strict-origin-when-cross-origin",
	}
}

// SecurityHeaders is a post-middleware that stamps security headers on the
// outgoing response. Headers the handler already set are overwritten so the
// policy always wins.
type SecurityHeaders struct {
	name  string
	scope string
	cfg   SecurityHeadersConfig
}

// NewSecurityHeaders creates the security headers middleware for the given
// path scope.
func NewSecurityHeaders(scope string, cfg SecurityHeadersConfig) *SecurityHeaders {
	return &SecurityHeaders{
		name:  "security_headers",
		scope: scope,
		cfg:   cfg,
	}
}

// Name implements pipeline.Middleware.
func (m *SecurityHeaders) Name() string { return m.name }

// Scope implements pipeline.Middleware.
func (m *SecurityHeaders) Scope() string { return m.scope }

// After implements pipeline.PostMiddleware.
func (m *SecurityHeaders) After(
	_ context.Context,
	_ *pipeline.Request,
	resp *pipeline.Response,
) (*pipeline.Response, error) {
	if m.cfg.XFrameOptions != "" {
		resp.SetHeader("X-Frame-Options", m.cfg.XFrameOptions)
	}
	if m.cfg.XContentTypeOptions != "" {
		resp.SetHeader("X-Content-Type-Options", m.cfg.XContentTypeOptions)
	}
	if m.cfg.XXSSProtection != "" {
		resp.SetHeader("X-XSS-Protection", m.cfg.XXSSProtection)
	}
	if m.cfg.StrictTransportSecurity != "" {
		resp.SetHeader("Strict-Transport-Security", m.cfg.StrictTransportSecurity)
	}
	if m.cfg.ReferrerPolicy != "" {
		resp.SetHeader("Referrer-Policy", m.cfg.ReferrerPolicy)
	}
	if m.cfg.PermissionsPolicy != "" {
		resp.SetHeader("Permissions-Policy", m.cfg.PermissionsPolicy)
	}
	for key, value := range m.cfg.CustomHeaders {
		resp.SetHeader(key, value)
	}
	return resp, nil
}
