package ldap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	ldapv3 "github.com/go-ldap/ldap/v3"

	"github.com/marmos91/ldapauth/internal/logger"
)

// ldapConn is the subset of *ldapv3.Conn the authenticator uses.
type ldapConn interface {
	Bind(username, password string) error
	UnauthenticatedBind(username string) error
	Search(req *ldapv3.SearchRequest) (*ldapv3.SearchResult, error)
	Close() error
	IsClosing() bool
}

// dialFunc opens a connection to one server. Replaced in tests.
type dialFunc func(ctx context.Context, u serverURL) (ldapConn, error)

// pooledConn is a pool resource: a connection bound as the service account
// and the server it is connected to.
type pooledConn struct {
	conn ldapConn
	url  serverURL
}

// dialServer connects to one server, optionally upgrading with StartTLS.
func (a *Authenticator) dialServer(ctx context.Context, u serverURL) (ldapConn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := []ldapv3.DialOpt{
		ldapv3.DialWithDialer(&net.Dialer{Timeout: a.cfg.ConnectTimeout}),
	}
	if u.Scheme == "ldaps" {
		opts = append(opts, ldapv3.DialWithTLSConfig(a.tlsConfig(u.Host)))
	}

	conn, err := ldapv3.DialURL(u.String(), opts...)
	if err != nil {
		return nil, err
	}

	if a.cfg.UseStartTLS && u.Scheme == "ldap" {
		if err := conn.StartTLS(a.tlsConfig(u.Host)); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("starttls: %w", err)
		}
	}

	conn.SetTimeout(a.cfg.ResponseTimeout)
	return conn, nil
}

func (a *Authenticator) tlsConfig(host string) *tls.Config {
	return &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: a.cfg.InsecureSkipVerify, //nolint:gosec // opt-in for test fixtures
		MinVersion:         tls.VersionTLS12,
	}
}

// connect dials the configured servers in order and binds the first one that
// answers as the service account.
func (a *Authenticator) connect(ctx context.Context) (*pooledConn, error) {
	var lastErr error
	for i, u := range a.urls {
		conn, err := a.dial(ctx, u)
		if err != nil {
			lastErr = err
			logger.Warn("LDAP server unreachable",
				logger.KeyLDAPURL, u.String(),
				logger.KeyAttempt, i+1,
				logger.KeyError, err.Error(),
			)
			continue
		}

		if err := a.bindService(conn); err != nil {
			_ = conn.Close()
			// A refused service bind is a configuration problem, not a
			// server outage; trying the next server would not help.
			return nil, fmt.Errorf("ldap: service bind to %s: %w", u, err)
		}

		logger.Debug("LDAP connection established", logger.KeyLDAPURL, u.String())
		return &pooledConn{conn: conn, url: u}, nil
	}
	return nil, fmt.Errorf("ldap: no server reachable: %w", lastErr)
}

// bindService authenticates conn as the service account, or anonymously
// when no bind DN is configured.
func (a *Authenticator) bindService(conn ldapConn) error {
	if a.cfg.BindDN == "" {
		return conn.UnauthenticatedBind("")
	}
	return conn.Bind(a.cfg.BindDN, a.bindPassword)
}

// ping checks a connection with a root DSE read.
func (a *Authenticator) ping(conn ldapConn) error {
	req := ldapv3.NewSearchRequest(
		"", ldapv3.ScopeBaseObject, ldapv3.NeverDerefAliases,
		0, a.timeLimit(), false,
		"(objectClass=*)", []string{"1.1"}, nil,
	)
	_, err := conn.Search(req)
	return err
}

// timeLimit converts the response timeout to the whole seconds the LDAP
// search time limit is expressed in.
func (a *Authenticator) timeLimit() int {
	secs := int(a.cfg.ResponseTimeout.Seconds())
	if secs < 1 && a.cfg.ResponseTimeout > 0 {
		secs = 1
	}
	return secs
}
