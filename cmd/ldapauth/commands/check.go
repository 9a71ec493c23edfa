package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/marmos91/ldapauth/internal/cli/output"
	"github.com/marmos91/ldapauth/internal/cli/prompt"
	"github.com/marmos91/ldapauth/pkg/authprovider"
	"github.com/marmos91/ldapauth/pkg/directory/ldap"
)

var (
	checkPasswordStdin bool
	checkOutput        string
	checkAttributes    []string
)

// errAuthenticationFailed is returned when the directory rejects the
// credentials. The reason is never shown.
var errAuthenticationFailed = errors.New("authentication failed")

var checkCmd = &cobra.Command{
	Use:   "check [username]",
	Short: "Verify a username and password against the directory",
	Long: `Verify credentials against the configured LDAP directory and print the
profile returned for the user.

The password is prompted for unless --password-stdin is given.

Examples:
  # Prompt for username and password
  ldapauth check

  # Check a user, reading the password from stdin
  echo "$PASSWORD" | ldapauth check professor --password-stdin

  # Only return selected attributes, as JSON
  ldapauth check professor --attributes cn,mail -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkPasswordStdin, "password-stdin", false, "Read the password from stdin")
	checkCmd.Flags().StringVarP(&checkOutput, "output", "o", "table", "Output format (table|json|yaml)")
	checkCmd.Flags().StringSliceVar(&checkAttributes, "attributes", nil, "Attributes to return (overrides directory.attributes)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(checkOutput)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Keep the profile readable: only warnings and errors from the library.
	cfg.Logging.Level = "WARN"
	cfg.Logging.Output = "stderr"
	if err := InitLogger(cfg); err != nil {
		return err
	}

	username, password, err := readCheckCredentials(cmd, args)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("attributes") {
		cfg.Directory.Attributes = checkAttributes
	}
	// A single check needs one connection and no background validation.
	cfg.Directory.MinPoolSize = 0
	cfg.Directory.ValidationInterval = 0
	cfg.Directory.MaxPoolSize = 1

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Directory.ConnectTimeout+2*cfg.Directory.ResponseTimeout+time.Second)
	defer cancel()

	dir, err := ldap.New(ctx, cfg.Directory)
	if err != nil {
		return fmt.Errorf("failed to create LDAP authenticator: %w", err)
	}
	defer func() { _ = dir.Close() }()

	provider, err := authprovider.New(authprovider.Options{
		Name:       "check",
		Directory:  dir,
		Attributes: cfg.Directory.Attributes,
	})
	if err != nil {
		return err
	}
	defer provider.Close()

	start := time.Now()
	profile, ok := provider.Authenticate(ctx, username, password)
	if !ok {
		return errAuthenticationFailed
	}

	view := output.NewProfileView(username, profile, time.Since(start))
	out := cmd.OutOrStdout()
	printer := output.NewPrinter(out, format, isTerminal(out))

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(out, view)
	case output.FormatYAML:
		return output.PrintYAML(out, view)
	default:
		printer.Success("Authenticated " + username)
		if err := output.SimpleTable(out, view.Summary()); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out)
		return printer.Print(view)
	}
}

// readCheckCredentials resolves the username from args or a prompt, and the
// password from stdin or a masked prompt.
func readCheckCredentials(cmd *cobra.Command, args []string) (string, string, error) {
	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		if checkPasswordStdin {
			return "", "", errors.New("a username argument is required with --password-stdin")
		}
		u, err := prompt.Username("Username")
		if err != nil {
			return "", "", err
		}
		username = u
	}

	if checkPasswordStdin {
		password, err := prompt.ReadSecret(cmd.InOrStdin())
		if err != nil {
			return "", "", err
		}
		return username, password, nil
	}

	password, err := prompt.Password("Password")
	if err != nil {
		return "", "", err
	}
	return username, password, nil
}

// isTerminal reports whether w is a terminal.
func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
