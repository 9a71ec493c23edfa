package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Errorf("Expected valid config, got error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.Logging.Level = "INVALID" },
			wantErr: "oneof",
		},
		{
			name:    "invalid log format",
			modify:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "oneof",
		},
		{
			name:    "zero shutdown timeout",
			modify:  func(c *Config) { c.ShutdownTimeout = 0 },
			wantErr: "ShutdownTimeout",
		},
		{
			name:    "server port out of range",
			modify:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "max",
		},
		{
			name:    "telemetry sample rate above one",
			modify:  func(c *Config) { c.Telemetry.SampleRate = 1.5 },
			wantErr: "lte",
		},
		{
			name: "metrics port clashes with server port",
			modify: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Port = c.Server.Port
			},
			wantErr: "must differ",
		},
		{
			name:    "missing directory url",
			modify:  func(c *Config) { c.Directory.URL = "" },
			wantErr: "required",
		},
		{
			name:    "unsupported directory scheme",
			modify:  func(c *Config) { c.Directory.URL = "http://ldap.example.com" },
			wantErr: "scheme must be ldap or ldaps",
		},
		{
			name:    "search filter without placeholder",
			modify:  func(c *Config) { c.Directory.UserSearchFilter = "(uid=fry)" },
			wantErr: "must contain",
		},
		{
			name:    "min pool above max pool",
			modify:  func(c *Config) { c.Directory.MinPoolSize = 20 },
			wantErr: "min_pool_size",
		},
		{
			name:    "negative max elements",
			modify:  func(c *Config) { c.Cache.MaxElements = -1 },
			wantErr: "gte",
		},
		{
			name:    "unknown key strategy",
			modify:  func(c *Config) { c.Cache.KeyStrategy = "password" },
			wantErr: "oneof",
		},
		{
			name:    "zero sweep interval with caching enabled",
			modify:  func(c *Config) { c.Cache.SweepInterval = 0 },
			wantErr: "sweep_interval",
		},
		{
			name:    "short jwt secret",
			modify:  func(c *Config) { c.Server.JWT.Secret = "too-short" },
			wantErr: "at least 32 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.modify(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_CacheDisabled(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Cache.MaxElements = 0
	cfg.Cache.TimeToLive = 0
	cfg.Cache.SweepInterval = 0

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected disabled cache to validate, got: %v", err)
	}
}

func TestValidate_ValidLogLevels(t *testing.T) {
	for _, level := range []string{"DEBUG", "INFO", "WARN", "ERROR", "debug", "info"} {
		t.Run(level, func(t *testing.T) {
			cfg := GetDefaultConfig()
			cfg.Logging.Level = level
			if err := Validate(cfg); err != nil {
				t.Errorf("Expected level %q to be valid, got: %v", level, err)
			}
		})
	}
}

func TestValidate_MetricsDisabledIgnoresPortClash(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Enabled = false
	cfg.Metrics.Port = cfg.Server.Port

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected no error with metrics disabled, got: %v", err)
	}
}

func TestValidate_JWTSecretFromEnv(t *testing.T) {
	t.Setenv("LDAPAUTH_JWT_SECRET", "env-secret-key-for-testing-minimum-32-chars")

	cfg := GetDefaultConfig()
	cfg.Server.JWT.Secret = "short"

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected env secret to take precedence, got: %v", err)
	}
}

func TestValidate_DoesNotModify(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Cache.TimeToLive = 1500 * time.Millisecond

	_ = Validate(cfg)

	if cfg.Cache.TimeToLive != 1500*time.Millisecond {
		t.Errorf("Validate modified the config: ttl %v", cfg.Cache.TimeToLive)
	}
}
