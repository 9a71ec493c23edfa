package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/ldapauth/internal/cli/output"
	"github.com/marmos91/ldapauth/pkg/authprovider"
	"github.com/marmos91/ldapauth/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Load and validate the ldapauth configuration, then print a summary
and any settings worth a second look.

Examples:
  # Validate the default config file
  ldapauth config validate

  # Validate a specific file
  ldapauth config validate --config /etc/ldapauth/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printer := output.NewPrinter(out, output.FormatTable, false)
	printer.Success("Configuration is valid")
	_, _ = fmt.Fprintln(out)

	if err := output.SimpleTable(out, summary(cfg)); err != nil {
		return err
	}

	warnings := configWarnings(cfg)
	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(out)
		for _, w := range warnings {
			printer.Warning(w)
		}
	}
	return nil
}

func summary(cfg *config.Config) [][2]string {
	cache := "disabled"
	if cfg.Cache.MaxElements > 0 {
		cache = fmt.Sprintf("%d entries, ttl %s, key %s", cfg.Cache.MaxElements, cfg.Cache.TimeToLive, cfg.Cache.KeyStrategy)
	}
	metrics := "disabled"
	if cfg.Metrics.Enabled {
		metrics = fmt.Sprintf("port %d", cfg.Metrics.Port)
	}
	return [][2]string{
		{"Directory", cfg.Directory.URL},
		{"Base DN", cfg.Directory.BaseDN},
		{"Search filter", cfg.Directory.UserSearchFilter},
		{"Pool", fmt.Sprintf("%d-%d connections", cfg.Directory.MinPoolSize, cfg.Directory.MaxPoolSize)},
		{"Cache", cache},
		{"API port", fmt.Sprintf("%d", cfg.Server.Port)},
		{"Metrics", metrics},
	}
}

// configWarnings lists valid settings that change behavior in ways an
// operator may not expect.
func configWarnings(cfg *config.Config) []string {
	var warnings []string
	if !cfg.Server.HasJWTSecret() {
		warnings = append(warnings, "no JWT secret configured: token endpoints are disabled")
	}
	if cfg.Cache.MaxElements == 0 {
		warnings = append(warnings, "cache.max_elements is 0: every request binds against the directory")
	} else if cfg.Cache.TimeToLive == 0 {
		warnings = append(warnings, "cache.ttl is 0: cached profiles expire immediately")
	}
	if cfg.Cache.KeyStrategy == string(authprovider.KeyStrategyIdentity) {
		warnings = append(warnings, "cache.key_strategy is identity: cached profiles are served without checking the password")
	}
	if cfg.Directory.BindDN == "" {
		warnings = append(warnings, "directory.bind_dn is empty: user searches run anonymously")
	}
	return warnings
}
