package ldap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURLs(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr string
	}{
		{name: "single", raw: "ldap://localhost:10389", want: []string{"ldap://localhost:10389"}},
		{name: "default ldap port", raw: "ldap://ldap.example.com", want: []string{"ldap://ldap.example.com:389"}},
		{name: "default ldaps port", raw: "ldaps://ldap.example.com", want: []string{"ldaps://ldap.example.com:636"}},
		{name: "comma separated", raw: "ldap://a,ldap://b", want: []string{"ldap://a:389", "ldap://b:389"}},
		{name: "space separated", raw: "ldap://a ldaps://b:1636", want: []string{"ldap://a:389", "ldaps://b:1636"}},
		{name: "mixed separators", raw: " ldap://a, \tldap://b\n", want: []string{"ldap://a:389", "ldap://b:389"}},
		{name: "uppercase scheme", raw: "LDAP://a", want: []string{"ldap://a:389"}},
		{name: "ipv6", raw: "ldap://[::1]:10389", want: []string{"ldap://[::1]:10389"}},
		{name: "empty", raw: " , ", wantErr: "at least one url"},
		{name: "bad scheme", raw: "http://a", wantErr: "scheme must be ldap or ldaps"},
		{name: "missing host", raw: "ldap://:389", wantErr: "missing host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			urls, err := ParseURLs(tt.raw)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)

			got := make([]string, len(urls))
			for i, u := range urls {
				got[i] = u.String()
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, DefaultUserSearchFilter, cfg.UserSearchFilter)
	assert.Equal(t, DefaultConnectTimeout, cfg.ConnectTimeout)
	assert.Equal(t, DefaultResponseTimeout, cfg.ResponseTimeout)
	assert.Equal(t, DefaultMaxPoolSize, cfg.MaxPoolSize)
	assert.Equal(t, 0, cfg.MinPoolSize, "zero min pool size is meaningful")
	assert.Equal(t, time.Duration(0), cfg.ValidationInterval, "zero validation interval is meaningful")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "uid={0}", cfg.UserSearchFilter)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 5*time.Second, cfg.ResponseTimeout)
	assert.Equal(t, 5, cfg.MinPoolSize)
	assert.Equal(t, 15, cfg.MaxPoolSize)
	assert.Equal(t, 60*time.Second, cfg.ValidationInterval)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		cfg := DefaultConfig()
		cfg.URL = "ldap://localhost"
		cfg.BaseDN = "dc=planetexpress,dc=com"
		return cfg
	}

	t.Run("Valid", func(t *testing.T) {
		cfg := valid()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("UserPlaceholder", func(t *testing.T) {
		cfg := valid()
		cfg.UserSearchFilter = "(&(objectClass=person)(uid={user}))"
		assert.NoError(t, cfg.Validate())
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"MissingURL", func(c *Config) { c.URL = "" }, "at least one url"},
		{"MissingBaseDN", func(c *Config) { c.BaseDN = " " }, "base_dn"},
		{"FilterWithoutPlaceholder", func(c *Config) { c.UserSearchFilter = "uid=fry" }, "must contain"},
		{"ZeroMaxPool", func(c *Config) { c.MaxPoolSize = 0 }, "max_pool_size"},
		{"MinAboveMax", func(c *Config) { c.MinPoolSize = 20 }, "min_pool_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_UserSearchDN(t *testing.T) {
	cfg := Config{BaseDN: "dc=planetexpress,dc=com"}
	assert.Equal(t, "dc=planetexpress,dc=com", cfg.UserSearchDN())

	cfg.UserSearchBase = "ou=people"
	assert.Equal(t, "ou=people,dc=planetexpress,dc=com", cfg.UserSearchDN())
}

func TestConfig_ResolveBindPassword(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bind_password")
	require.NoError(t, os.WriteFile(file, []byte("  from-file\n"), 0600))

	t.Run("Inline", func(t *testing.T) {
		t.Setenv(BindPasswordEnv, "")
		cfg := Config{BindPassword: "inline"}
		pw, err := cfg.ResolveBindPassword()
		require.NoError(t, err)
		assert.Equal(t, "inline", pw)
	})

	t.Run("FileBeatsInline", func(t *testing.T) {
		t.Setenv(BindPasswordEnv, "")
		cfg := Config{BindPassword: "inline", BindPasswordFile: file}
		pw, err := cfg.ResolveBindPassword()
		require.NoError(t, err)
		assert.Equal(t, "from-file", pw)
	})

	t.Run("EnvBeatsFile", func(t *testing.T) {
		t.Setenv(BindPasswordEnv, "from-env")
		cfg := Config{BindPassword: "inline", BindPasswordFile: file}
		pw, err := cfg.ResolveBindPassword()
		require.NoError(t, err)
		assert.Equal(t, "from-env", pw)
	})

	t.Run("MissingFile", func(t *testing.T) {
		t.Setenv(BindPasswordEnv, "")
		cfg := Config{BindPasswordFile: filepath.Join(dir, "missing")}
		_, err := cfg.ResolveBindPassword()
		require.Error(t, err)
	})
}
