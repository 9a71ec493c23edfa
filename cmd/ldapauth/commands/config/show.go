package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/ldapauth/internal/cli/output"
	"github.com/marmos91/ldapauth/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective ldapauth configuration, with defaults and
environment overrides applied. Secrets are redacted.

By default outputs YAML format. Use --output to change format.

Examples:
  # Show the default config file as YAML
  ldapauth config show

  # Show as JSON
  ldapauth config show --output json

  # Show a specific config file
  ldapauth config show --config /etc/ldapauth/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	redacted := config.Redacted(cfg)
	out := cmd.OutOrStdout()

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(out, redacted)
	default:
		data, err := config.Marshal(redacted)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}
}
