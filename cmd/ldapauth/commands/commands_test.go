package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfgFile = ""
	checkPasswordStdin = false
	checkOutput = "table"
	checkAttributes = nil

	var out bytes.Buffer
	cmd := GetRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "ldapauth")
	assert.Contains(t, out, Version)
}

func TestConfigInitShowValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ldapauth.yaml")

	out, err := execute(t, "", "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	require.FileExists(t, path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "# ldapauth Configuration File")

	_, err = execute(t, "", "config", "init", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	out, err = execute(t, "", "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "directory:")
	assert.Contains(t, out, "ttl: 1m0s")
	assert.Contains(t, out, "********")

	out, err = execute(t, "", "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
	assert.Contains(t, out, "ldap://localhost:389")
	assert.NotContains(t, out, "token endpoints are disabled")
}

func TestConfigShow_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ldapauth.yaml")
	_, err := execute(t, "", "config", "init", "--config", path)
	require.NoError(t, err)

	out, err := execute(t, "", "config", "show", "--config", path, "--output", "json")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "{"))
	assert.Contains(t, out, "ldap://localhost:389")
}

func TestConfigShow_MissingFile(t *testing.T) {
	_, err := execute(t, "", "config", "show", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration file not found")
}

func TestConfigValidate_Warnings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ldapauth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
directory:
  url: ldap://localhost:10389
  base_dn: dc=planetexpress,dc=com
cache:
  max_elements: 0
  key_strategy: identity
`), 0600))

	out, err := execute(t, "", "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "token endpoints are disabled")
	assert.Contains(t, out, "every request binds against the directory")
	assert.Contains(t, out, "served without checking the password")
	assert.Contains(t, out, "user searches run anonymously")
}

func TestConfigWarnings_CleanConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ldapauth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  jwt:
    secret: 0123456789abcdef0123456789abcdef
directory:
  url: ldap://localhost:10389
  base_dn: dc=planetexpress,dc=com
  bind_dn: cn=admin,dc=planetexpress,dc=com
`), 0600))

	out, err := execute(t, "", "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.NotContains(t, out, "token endpoints")
	assert.NotContains(t, out, "anonymously")
}

func TestCheck_RequiresUsernameWithPasswordStdin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ldapauth.yaml")
	_, err := execute(t, "", "config", "init", "--config", path)
	require.NoError(t, err)

	_, err = execute(t, "secret\n", "check", "--config", path, "--password-stdin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username argument is required")
}

func TestCheck_InvalidOutput(t *testing.T) {
	_, err := execute(t, "", "check", "professor", "--output", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}

func TestCheck_UnreachableDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ldapauth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
directory:
  url: ldap://127.0.0.1:1
  base_dn: dc=planetexpress,dc=com
  connect_timeout: 500
  response_timeout: 500
`), 0600))

	_, err := execute(t, "professor\n", "check", "professor", "--config", path, "--password-stdin")
	require.ErrorIs(t, err, errAuthenticationFailed)
}
