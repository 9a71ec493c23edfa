package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/ldapauth/internal/logger"
	"github.com/marmos91/ldapauth/internal/telemetry"
	"github.com/marmos91/ldapauth/pkg/api"
	"github.com/marmos91/ldapauth/pkg/authprovider"
	"github.com/marmos91/ldapauth/pkg/config"
	"github.com/marmos91/ldapauth/pkg/directory/ldap"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/ldapauth/pkg/metrics/prometheus"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the authentication API server",
	Long: `Run the ldapauth HTTP API in the foreground.

The server verifies credentials against the configured LDAP directory and
caches successful results. It stops gracefully on SIGINT or SIGTERM.

Examples:
  # Serve with the default config file
  ldapauth serve

  # Serve with a custom config file
  ldapauth serve --config /etc/ldapauth/config.yaml

  # Serve from environment variables only
  LDAPAUTH_DIRECTORY_URL=ldap://ldap:389 LDAPAUTH_DIRECTORY_BASE_DN=dc=example,dc=com ldapauth serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    telemetry.ServiceName,
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", logger.KeyError, err.Error())
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    telemetry.ServiceName,
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
		Tags: map[string]string{
			telemetry.TagCache:       cfg.Cache.Name,
			telemetry.TagKeyStrategy: cfg.Cache.KeyStrategy,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.KeyError, err.Error())
		}
	}()

	logger.Info("ldapauth starting", "version", Version, "commit", Commit)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, logger.KeyCache, cfg.Cache.Name)
	}

	// Metrics first: the provider's metric constructors return nil until the
	// registry exists.
	metricsResult := config.InitializeMetrics(cfg)

	dir, err := ldap.New(ctx, cfg.Directory)
	if err != nil {
		return fmt.Errorf("failed to create LDAP authenticator: %w", err)
	}
	defer func() { _ = dir.Close() }()

	provider, err := authprovider.New(providerOptions(cfg, dir))
	if err != nil {
		return fmt.Errorf("failed to create authentication provider: %w", err)
	}
	defer provider.Close()

	apiServer, err := api.NewServer(cfg.Server, provider, dir)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return apiServer.Start(gctx) })
	if metricsResult.Server != nil {
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
		g.Go(func() error { return metricsResult.Server.Start(gctx) })
	} else {
		logger.Info("Metrics collection disabled")
	}

	serverDone := make(chan error, 1)
	go func() { serverDone <- g.Wait() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	logger.Info("Server is running. Press Ctrl+C to stop, send SIGHUP to purge the cache.")

	for {
		select {
		case sig := <-sigChan:
			if !handleSignal(sig, provider) {
				continue
			}
			logger.Info("Shutdown signal received, initiating graceful shutdown", "signal", sig.String())
			cancel()
			return waitForShutdown(serverDone, cfg.ShutdownTimeout)

		case err := <-serverDone:
			if err != nil {
				logger.Error("Server error", logger.KeyError, err.Error())
				return err
			}
			logger.Info("Server stopped")
			return nil
		}
	}
}

// cachePurger drops every cached profile. *authprovider.Provider implements it.
type cachePurger interface {
	Name() string
	Purge()
}

// handleSignal purges the cache on SIGHUP and reports whether sig should
// stop the server.
func handleSignal(sig os.Signal, p cachePurger) bool {
	if sig != syscall.SIGHUP {
		return true
	}
	p.Purge()
	logger.Info("Authentication cache purged", logger.KeyProvider, p.Name(), "signal", sig.String())
	return false
}

// waitForShutdown waits for the servers to stop, giving up after timeout.
func waitForShutdown(done <-chan error, timeout time.Duration) error {
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Server shutdown error", logger.KeyError, err.Error())
			return err
		}
		logger.Info("Server stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timed out after %s", timeout)
	}
}
