package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/ldapauth/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with defaults",
	Long: `Create a configuration file populated with the defaults and a freshly
generated JWT signing secret.

The file is written to $XDG_CONFIG_HOME/ldapauth/config.yaml unless --config
names another path.

Examples:
  # Create the default config file
  ldapauth config init

  # Create at a custom path, replacing any existing file
  ldapauth config init --config ./ldapauth.yaml --force`,
	RunE: runConfigInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing configuration file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	path := configPath
	if path != "" {
		if err := config.InitConfigToPath(path, initForce); err != nil {
			return err
		}
	} else {
		p, err := config.InitConfig(initForce)
		if err != nil {
			return err
		}
		path = p
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration written to %s\n\n", path)
	_, _ = fmt.Fprintln(out, "Next steps:")
	_, _ = fmt.Fprintln(out, "  1. Set directory.url and directory.base_dn")
	_, _ = fmt.Fprintln(out, "  2. Set the service account (directory.bind_dn, LDAPAUTH_BIND_PASSWORD)")
	_, _ = fmt.Fprintln(out, "  3. Run: ldapauth config validate")
	return nil
}
