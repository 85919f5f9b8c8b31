// Package config provides YAML configuration loading for the pipeline
// server.
//
// Features:
//   - YAML parsing with human-readable durations ("30s", "5m")
//   - Environment variable substitution with ${VAR:-default} syntax
//   - Validation of loaded configuration
//   - File watching with debounced hot reload
package config
