package config

import (
	"strings"
	"time"

	"github.com/marmos91/ldapauth/internal/telemetry"
	"github.com/marmos91/ldapauth/pkg/authprovider"
	"github.com/marmos91/ldapauth/pkg/cache"
	"github.com/marmos91/ldapauth/pkg/directory/ldap"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Settings where zero is meaningful (cache.max_elements, cache.ttl,
//     directory.min_pool_size, directory.validation_interval) are left
//     alone; Load supplies their defaults through viper instead
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyMetricsDefaults(&cfg.Metrics)
	cfg.Server.ApplyDefaults()
	cfg.Directory.ApplyDefaults()
	applyCacheDefaults(&cfg.Cache)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	// Default sample rate is 1.0 (sample all traces)
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	defaults := telemetry.DefaultProfilingConfig()

	if cfg.Endpoint == "" {
		cfg.Endpoint = defaults.Endpoint
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = defaults.ProfileTypes
	}
}

// applyShutdownTimeoutDefaults sets shutdown timeout defaults.
func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Port defaults to 9090 if metrics are enabled
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyCacheDefaults sets cache defaults.
func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.Name == "" {
		cfg.Name = "directory"
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = cache.DefaultSweepInterval
	}
	if cfg.KeyStrategy == "" {
		cfg.KeyStrategy = string(authprovider.KeyStrategyCredentials)
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Metrics: MetricsConfig{
			Port: 9090,
		},
		Directory: ldap.DefaultConfig(),
		Cache: CacheConfig{
			MaxElements: authprovider.DefaultCapacity,
			TimeToLive:  cache.DefaultTimeToLive,
		},
	}
	cfg.Directory.URL = "ldap://localhost:389"
	cfg.Directory.BaseDN = "dc=example,dc=com"

	ApplyDefaults(cfg)
	return cfg
}
