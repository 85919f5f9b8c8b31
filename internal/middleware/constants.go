// Package middleware provides the built-in pipeline middlewares: rate
// limiting, CORS, security headers, request IDs, and circuit breaking.
package middleware

// HTTP header constants.
const (
	// HeaderContentType is the Content-Type header name.
	HeaderContentType = "Content-Type"

	// HeaderRetryAfter is the Retry-After header name.
	HeaderRetryAfter = "Retry-After"

	// HeaderOrigin is the Origin header name.
	HeaderOrigin = "Origin"

	// HeaderXRequestID is the X-Request-ID header name.
	HeaderXRequestID = "X-Request-ID"

	// HeaderRateLimitLimit is the X-RateLimit-Limit header name.
	HeaderRateLimitLimit = "X-RateLimit-Limit"

	// HeaderRateLimitRemaining is the X-RateLimit-Remaining header name.
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"

	// HeaderRateLimitReset is the X-RateLimit-Reset header name.
	HeaderRateLimitReset = "X-RateLimit-Reset"
)

// Content type constants.
const (
	// ContentTypeJSON is the JSON content type.
	ContentTypeJSON = "application/json"
)

// Error response constants.
const (
	// ErrRateLimitExceeded is the error message for rate limit exceeded.
	ErrRateLimitExceeded = `{"error":"rate limit exceeded"}`

	// ErrServiceUnavailable is the error message for service unavailable.
	ErrServiceUnavailable = `{"error":"service unavailable","message":"circuit breaker open"}`
)
