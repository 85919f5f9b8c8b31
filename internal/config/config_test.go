package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	require.NotNil(t, cfg.Pipeline.RequestID)
	assert.True(t, cfg.Pipeline.RequestID.Enabled)

	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "default is valid",
			mutate: func(*Config) {},
		},
		{
			name: "invalid port",
			mutate: func(c *Config) {
				c.Server.Port = 0
			},
			wantErr: "port",
		},
		{
			name: "invalid log level",
			mutate: func(c *Config) {
				c.Logging.Level = "verbose"
			},
			wantErr: "log level",
		},
		{
			name: "invalid log format",
			mutate: func(c *Config) {
				c.Logging.Format = "xml"
			},
			wantErr: "log format",
		},
		{
			name: "tracing without endpoint",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
			},
			wantErr: "otlpEndpoint",
		},
		{
			name: "sampling rate out of range",
			mutate: func(c *Config) {
				c.Tracing.SamplingRate = 1.5
			},
			wantErr: "sampling rate",
		},
		{
			name: "rate limit without max requests",
			mutate: func(c *Config) {
				c.Pipeline.RateLimit = &RateLimitConfig{
					Enabled: true,
					Window:  Duration(time.Second),
				}
			},
			wantErr: "maxRequests",
		},
		{
			name: "rate limit without window",
			mutate: func(c *Config) {
				c.Pipeline.RateLimit = &RateLimitConfig{
					Enabled:     true,
					MaxRequests: 10,
				}
			},
			wantErr: "window",
		},
		{
			name: "rate limit disabled skips checks",
			mutate: func(c *Config) {
				c.Pipeline.RateLimit = &RateLimitConfig{Enabled: false}
			},
		},
		{
			name: "redis without addr",
			mutate: func(c *Config) {
				c.Pipeline.RateLimit = &RateLimitConfig{
					Enabled:     true,
					MaxRequests: 10,
					Window:      Duration(time.Second),
					Redis:       &RedisConfig{},
				}
			},
			wantErr: "redis",
		},
		{
			name: "circuit breaker without threshold",
			mutate: func(c *Config) {
				c.Pipeline.CircuitBreaker = &CircuitBreakerConfig{
					Enabled: true,
					Timeout: Duration(time.Second),
				}
			},
			wantErr: "threshold",
		},
		{
			name: "circuit breaker without timeout",
			mutate: func(c *Config) {
				c.Pipeline.CircuitBreaker = &CircuitBreakerConfig{
					Enabled:   true,
					Threshold: 5,
				}
			},
			wantErr: "timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDuration_YAML(t *testing.T) {
	t.Parallel()

	var d Duration
	err := d.UnmarshalYAML(func(v interface{}) error {
		*(v.(*string)) = "90s"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d.Duration())

	out, err := d.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", out)
}

func TestDuration_Empty(t *testing.T) {
	t.Parallel()

	var d Duration
	err := d.UnmarshalYAML(func(v interface{}) error {
		*(v.(*string)) = ""
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), d.Duration())
}

func TestDuration_Invalid(t *testing.T) {
	t.Parallel()

	var d Duration
	err := d.UnmarshalYAML(func(v interface{}) error {
		*(v.(*string)) = "not-a-duration"
		return nil
	})
	assert.Error(t, err)
}
