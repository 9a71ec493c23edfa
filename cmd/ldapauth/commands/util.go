package commands

import (
	"fmt"

	"github.com/marmos91/ldapauth/internal/logger"
	"github.com/marmos91/ldapauth/pkg/authprovider"
	"github.com/marmos91/ldapauth/pkg/config"
	"github.com/marmos91/ldapauth/pkg/directory"
	"github.com/marmos91/ldapauth/pkg/metrics"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// loadConfig loads the file named by --config, which must exist. Without
// --config the default file is used when present; otherwise the defaults
// and LDAPAUTH_* environment variables are.
func loadConfig() (*config.Config, error) {
	if path := GetConfigFile(); path != "" {
		return config.MustLoad(path)
	}
	return config.Load("")
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults and environment"
}

// providerOptions maps the configuration onto authprovider.Options. Metric
// constructors return nil unless config.InitializeMetrics enabled them.
func providerOptions(cfg *config.Config, dir directory.Authenticator) authprovider.Options {
	return authprovider.Options{
		Name:          cfg.Cache.Name,
		Directory:     dir,
		Attributes:    cfg.Directory.Attributes,
		Capacity:      cfg.Cache.MaxElements,
		TimeToLive:    cfg.Cache.TimeToLive,
		SweepInterval: cfg.Cache.SweepInterval,
		KeyStrategy:   authprovider.KeyStrategy(cfg.Cache.KeyStrategy),
		CacheMetrics:  metrics.NewCacheMetrics(cfg.Cache.Name),
		Metrics:       metrics.NewAuthMetrics(),
	}
}
