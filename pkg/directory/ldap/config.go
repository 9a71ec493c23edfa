package ldap

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"
)

// BindPasswordEnv overrides every other source of the service account password.
const BindPasswordEnv = "LDAPAUTH_BIND_PASSWORD"

// Defaults.
const (
	DefaultUserSearchFilter   = "uid={0}"
	DefaultConnectTimeout     = 5 * time.Second
	DefaultResponseTimeout    = 5 * time.Second
	DefaultMinPoolSize        = 5
	DefaultMaxPoolSize        = 15
	DefaultValidationInterval = 60 * time.Second
)

// AttributeLDAPURL is a synthetic attribute. When requested, the result
// carries the URL of the server that verified the credentials.
const AttributeLDAPURL = "ldapURL"

// Config configures the LDAP authenticator.
type Config struct {
	// URL lists one or more LDAP URLs separated by commas and/or whitespace.
	// Servers are tried in order; later ones are used only when earlier
	// ones cannot be reached.
	// Example: "ldap://ldap1.example.com ldaps://ldap2.example.com:636"
	URL string `mapstructure:"url" validate:"required" yaml:"url"`

	// UseStartTLS upgrades ldap:// connections with StartTLS.
	UseStartTLS bool `mapstructure:"use_start_tls" yaml:"use_start_tls"`

	// InsecureSkipVerify disables server certificate verification.
	// For test fixtures only.
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`

	// BaseDN is the root of the directory tree.
	BaseDN string `mapstructure:"base_dn" validate:"required" yaml:"base_dn"`

	// BindDN is the service account used to search for users.
	// Empty binds anonymously.
	BindDN string `mapstructure:"bind_dn" yaml:"bind_dn"`

	// BindPassword is the service account password. Overridden by
	// BindPasswordFile and the LDAPAUTH_BIND_PASSWORD environment variable.
	BindPassword string `mapstructure:"bind_password" yaml:"bind_password,omitempty"`

	// BindPasswordFile is a file holding the service account password.
	// Surrounding whitespace is trimmed.
	BindPasswordFile string `mapstructure:"bind_password_file" yaml:"bind_password_file,omitempty"`

	// UserSearchBase is prefixed to BaseDN (with a comma) to form the
	// search base for users. Example: "ou=people".
	UserSearchBase string `mapstructure:"user_search_base" yaml:"user_search_base"`

	// UserSearchFilter locates a user entry. "{0}" and "{user}" are
	// replaced by the escaped identity.
	// Default: "uid={0}"
	UserSearchFilter string `mapstructure:"user_search_filter" yaml:"user_search_filter"`

	// Attributes lists the attributes returned for an authenticated user.
	// Empty returns all user attributes. "ldapURL" is synthetic.
	Attributes []string `mapstructure:"attributes" yaml:"attributes"`

	// ConnectTimeout bounds establishing a TCP connection.
	// Default: 5s
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"gte=0" yaml:"connect_timeout"`

	// ResponseTimeout bounds each LDAP operation.
	// Default: 5s
	ResponseTimeout time.Duration `mapstructure:"response_timeout" validate:"gte=0" yaml:"response_timeout"`

	// MinPoolSize is the number of connections opened at startup and kept
	// alive by validation. Zero disables pre-warming.
	// Default: 5
	MinPoolSize int `mapstructure:"min_pool_size" validate:"gte=0" yaml:"min_pool_size"`

	// MaxPoolSize caps concurrent connections.
	// Default: 15
	MaxPoolSize int `mapstructure:"max_pool_size" validate:"gte=1" yaml:"max_pool_size"`

	// ValidationInterval is how often idle connections are checked.
	// Zero disables validation.
	// Default: 60s
	ValidationInterval time.Duration `mapstructure:"validation_interval" validate:"gte=0" yaml:"validation_interval"`
}

// DefaultConfig returns a Config with every default set. URL and BaseDN
// still need values.
func DefaultConfig() Config {
	return Config{
		UserSearchFilter:   DefaultUserSearchFilter,
		ConnectTimeout:     DefaultConnectTimeout,
		ResponseTimeout:    DefaultResponseTimeout,
		MinPoolSize:        DefaultMinPoolSize,
		MaxPoolSize:        DefaultMaxPoolSize,
		ValidationInterval: DefaultValidationInterval,
	}
}

// ApplyDefaults fills zero-valued fields for which zero is not meaningful.
// MinPoolSize and ValidationInterval are left alone: zero disables pre-warm
// and validation respectively.
func (c *Config) ApplyDefaults() {
	if c.UserSearchFilter == "" {
		c.UserSearchFilter = DefaultUserSearchFilter
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ResponseTimeout == 0 {
		c.ResponseTimeout = DefaultResponseTimeout
	}
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = DefaultMaxPoolSize
	}
}

// Validate checks the settings New depends on.
func (c *Config) Validate() error {
	if _, err := ParseURLs(c.URL); err != nil {
		return err
	}
	if strings.TrimSpace(c.BaseDN) == "" {
		return errors.New("ldap: base_dn is required")
	}
	if !strings.Contains(c.UserSearchFilter, "{0}") && !strings.Contains(c.UserSearchFilter, "{user}") {
		return fmt.Errorf("ldap: user_search_filter %q must contain {0} or {user}", c.UserSearchFilter)
	}
	if c.MaxPoolSize < 1 {
		return fmt.Errorf("ldap: max_pool_size must be at least 1, got %d", c.MaxPoolSize)
	}
	if c.MinPoolSize < 0 || c.MinPoolSize > c.MaxPoolSize {
		return fmt.Errorf("ldap: min_pool_size %d must be between 0 and max_pool_size %d", c.MinPoolSize, c.MaxPoolSize)
	}
	return nil
}

// UserSearchDN returns the base for user searches.
func (c *Config) UserSearchDN() string {
	if c.UserSearchBase == "" {
		return c.BaseDN
	}
	return c.UserSearchBase + "," + c.BaseDN
}

// ResolveBindPassword returns the service account password. The environment
// variable wins over the file, which wins over the inline value.
func (c *Config) ResolveBindPassword() (string, error) {
	if v, ok := os.LookupEnv(BindPasswordEnv); ok && v != "" {
		return v, nil
	}
	if c.BindPasswordFile != "" {
		data, err := os.ReadFile(c.BindPasswordFile)
		if err != nil {
			return "", fmt.Errorf("ldap: read bind password file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return c.BindPassword, nil
}

// serverURL is a parsed LDAP server address.
type serverURL struct {
	Scheme string // ldap or ldaps
	Host   string
	Port   string
}

func (u serverURL) Addr() string {
	return net.JoinHostPort(u.Host, u.Port)
}

func (u serverURL) String() string {
	return u.Scheme + "://" + u.Addr()
}

// ParseURLs splits a comma and/or whitespace separated list of LDAP URLs.
// Missing ports default to 389 (ldap) and 636 (ldaps).
func ParseURLs(raw string) ([]serverURL, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields) == 0 {
		return nil, errors.New("ldap: at least one url is required")
	}

	urls := make([]serverURL, 0, len(fields))
	for _, f := range fields {
		u, err := url.Parse(f)
		if err != nil {
			return nil, fmt.Errorf("ldap: invalid url %q: %w", f, err)
		}

		scheme := strings.ToLower(u.Scheme)
		var defaultPort string
		switch scheme {
		case "ldap":
			defaultPort = "389"
		case "ldaps":
			defaultPort = "636"
		default:
			return nil, fmt.Errorf("ldap: invalid url %q: scheme must be ldap or ldaps", f)
		}

		host := u.Hostname()
		if host == "" {
			return nil, fmt.Errorf("ldap: invalid url %q: missing host", f)
		}
		port := u.Port()
		if port == "" {
			port = defaultPort
		}

		urls = append(urls, serverURL{Scheme: scheme, Host: host, Port: port})
	}
	return urls, nil
}
