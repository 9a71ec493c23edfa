package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/ldapauth/pkg/authprovider"
)

// minJWTSecretLength matches the HS256 key size.
const minJWTSecretLength = 32

// Validate checks struct tags first, then the rules that span fields or
// sections. It does not modify cfg.
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return errors.New("telemetry.endpoint is required when telemetry is enabled")
	}
	if cfg.Telemetry.Profiling.Enabled && cfg.Telemetry.Profiling.Endpoint == "" {
		return errors.New("telemetry.profiling.endpoint is required when profiling is enabled")
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port == cfg.Server.Port {
		return fmt.Errorf("metrics.port and server.port must differ (both %d)", cfg.Metrics.Port)
	}

	if err := cfg.Directory.Validate(); err != nil {
		return fmt.Errorf("directory: %w", err)
	}

	if err := validateCache(&cfg.Cache); err != nil {
		return err
	}

	if secret := cfg.Server.GetJWTSecret(); secret != "" && len(secret) < minJWTSecretLength {
		return fmt.Errorf("server.jwt.secret must be at least %d characters", minJWTSecretLength)
	}

	return nil
}

func validateCache(cfg *CacheConfig) error {
	if cfg.MaxElements < 0 {
		return fmt.Errorf("cache.max_elements must not be negative, got %d", cfg.MaxElements)
	}
	if cfg.MaxElements > 0 && cfg.SweepInterval <= 0 {
		return fmt.Errorf("cache.sweep_interval must be positive, got %s", cfg.SweepInterval)
	}
	if _, err := authprovider.ParseKeyStrategy(cfg.KeyStrategy); err != nil {
		return fmt.Errorf("cache.key_strategy: %w", err)
	}
	return nil
}
