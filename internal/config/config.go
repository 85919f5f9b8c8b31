package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for the pipeline server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"readTimeout,omitempty"`
	WriteTimeout    Duration `yaml:"writeTimeout,omitempty"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout,omitempty"`
	MaxBodyBytes    int64    `yaml:"maxBodyBytes,omitempty"`
}

// Address returns the host:port listen address.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"serviceName,omitempty"`
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty"`
}

// PipelineConfig configures the built-in middlewares.
type PipelineConfig struct {
	RateLimit       *RateLimitConfig       `yaml:"rateLimit,omitempty"`
	CORS            *CORSConfig            `yaml:"cors,omitempty"`
	SecurityHeaders *SecurityHeadersConfig `yaml:"securityHeaders,omitempty"`
	CircuitBreaker  *CircuitBreakerConfig  `yaml:"circuitBreaker,omitempty"`
	RequestID       *RequestIDConfig       `yaml:"requestId,omitempty"`
}

// RateLimitConfig configures the per-client rate limiter.
type RateLimitConfig struct {
	Enabled          bool         `yaml:"enabled"`
	Scope            string       `yaml:"scope,omitempty"`
	MaxRequests      int          `yaml:"maxRequests"`
	Window           Duration     `yaml:"window"`
	ProxyMode        bool         `yaml:"proxyMode,omitempty"`
	SweepInterval    Duration     `yaml:"sweepInterval,omitempty"`
	RejectionMessage string       `yaml:"rejectionMessage,omitempty"`
	GlobalRPS        float64      `yaml:"globalRps,omitempty"`
	GlobalBurst      int          `yaml:"globalBurst,omitempty"`
	Redis            *RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig configures the optional shared limiter store.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db,omitempty"`
	KeyPrefix string `yaml:"keyPrefix,omitempty"`
}

// CORSConfig configures cross-origin resource sharing.
type CORSConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Scope            string   `yaml:"scope,omitempty"`
	AllowOrigins     []string `yaml:"allowOrigins,omitempty"`
	AllowMethods     []string `yaml:"allowMethods,omitempty"`
	AllowHeaders     []string `yaml:"allowHeaders,omitempty"`
	ExposeHeaders    []string `yaml:"exposeHeaders,omitempty"`
	AllowCredentials bool     `yaml:"allowCredentials,omitempty"`
	MaxAge           int      `yaml:"maxAge,omitempty"`
}

// SecurityHeadersConfig configures security response headers.
type SecurityHeadersConfig struct {
	Enabled                 bool              `yaml:"enabled"`
	Scope                   string            `yaml:"scope,omitempty"`
	XFrameOptions           string            `yaml:"xFrameOptions,omitempty"`
	XContentTypeOptions     string            `yaml:"xContentTypeOptions,omitempty"`
	XXSSProtection          string            `yaml:"xXSSProtection,omitempty"`
	StrictTransportSecurity string            `yaml:"strictTransportSecurity,omitempty"`
	ReferrerPolicy          string            `yaml:"referrerPolicy,omitempty"`
	PermissionsPolicy       string            `yaml:"permissionsPolicy,omitempty"`
	CustomHeaders           map[string]string `yaml:"customHeaders,omitempty"`
}

// CircuitBreakerConfig configures the handler circuit breaker.
type CircuitBreakerConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Threshold int      `yaml:"threshold,omitempty"`
	Timeout   Duration `yaml:"timeout,omitempty"`
}

// RequestIDConfig configures request ID stamping.
type RequestIDConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Pipeline: PipelineConfig{
			RequestID: &RequestIDConfig{Enabled: true},
		},
	}
}

// validLogLevels are the accepted logging levels.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
	"fatal": true,
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Logging.Level != "" && !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.Format != "" && c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Tracing.Enabled && c.Tracing.OTLPEndpoint == "" {
		return fmt.Errorf("tracing enabled but otlpEndpoint is empty")
	}

	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("tracing sampling rate must be between 0 and 1, got %f", c.Tracing.SamplingRate)
	}

	if rl := c.Pipeline.RateLimit; rl != nil && rl.Enabled {
		if rl.MaxRequests < 1 {
			return fmt.Errorf("rate limit maxRequests must be positive, got %d", rl.MaxRequests)
		}
		if rl.Window.Duration() <= 0 {
			return fmt.Errorf("rate limit window must be positive, got %s", rl.Window.Duration())
		}
		if rl.GlobalRPS < 0 {
			return fmt.Errorf("rate limit globalRps must not be negative, got %f", rl.GlobalRPS)
		}
		if rl.Redis != nil && rl.Redis.Addr == "" {
			return fmt.Errorf("rate limit redis configured but addr is empty")
		}
	}

	if cb := c.Pipeline.CircuitBreaker; cb != nil && cb.Enabled {
		if cb.Threshold < 1 {
			return fmt.Errorf("circuit breaker threshold must be positive, got %d", cb.Threshold)
		}
		if cb.Timeout.Duration() <= 0 {
			return fmt.Errorf("circuit breaker timeout must be positive, got %s", cb.Timeout.Duration())
		}
	}

	return nil
}
