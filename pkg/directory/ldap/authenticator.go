// Package ldap implements directory.Authenticator against an LDAP server.
//
// Authentication is search-then-bind: the service account searches for the
// user's entry, the connection is rebound as that user with the presented
// password, and the entry is read with the requested attributes. The
// connection is then rebound as the service account and returned to a pool.
//
// Connections are pooled with puddle. Each pooled connection is dialed with
// failover across the configured URLs, optionally upgraded with StartTLS,
// and bound as the service account. A background loop checks idle
// connections and keeps the pool at its minimum size.
package ldap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	ldapv3 "github.com/go-ldap/ldap/v3"
	"github.com/jackc/puddle/v2"

	"github.com/marmos91/ldapauth/internal/logger"
	"github.com/marmos91/ldapauth/internal/telemetry"
	"github.com/marmos91/ldapauth/pkg/directory"
)

// PoolStats is a snapshot of the connection pool.
type PoolStats struct {
	Total        int32
	Idle         int32
	Acquired     int32
	Constructing int32
	Max          int32
	AcquireCount int64
	EmptyAcquire int64
}

// Authenticator verifies credentials against LDAP.
//
// Thread safety: safe for concurrent use.
type Authenticator struct {
	cfg          Config
	urls         []serverURL
	bindPassword string
	dial         dialFunc
	pool         *puddle.Pool[*pooledConn]

	stopCh    chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// Ensure Authenticator implements directory.Authenticator.
var _ directory.Authenticator = (*Authenticator)(nil)

// New creates an Authenticator, pre-warms the pool and starts connection
// validation.
//
// Pre-warming does not fail fast: an unreachable directory is logged and New
// still succeeds, so the service can start before the directory does.
// Configuration errors (bad URLs, unreadable password file) are returned.
func New(ctx context.Context, cfg Config) (*Authenticator, error) {
	return newAuthenticator(ctx, cfg, nil)
}

func newAuthenticator(ctx context.Context, cfg Config, dial dialFunc) (*Authenticator, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	urls, err := ParseURLs(cfg.URL)
	if err != nil {
		return nil, err
	}

	password, err := cfg.ResolveBindPassword()
	if err != nil {
		return nil, err
	}

	a := &Authenticator{
		cfg:          cfg,
		urls:         urls,
		bindPassword: password,
		stopCh:       make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	a.dial = dial
	if a.dial == nil {
		a.dial = a.dialServer
	}

	a.pool, err = puddle.NewPool(&puddle.Config[*pooledConn]{
		Constructor: a.connect,
		Destructor: func(pc *pooledConn) {
			_ = pc.conn.Close()
		},
		MaxSize: int32(cfg.MaxPoolSize),
	})
	if err != nil {
		return nil, fmt.Errorf("ldap: create pool: %w", err)
	}

	a.topUp(ctx)

	if cfg.ValidationInterval > 0 {
		go a.validationLoop()
	} else {
		close(a.stopped)
	}

	logger.Info("LDAP authenticator started",
		logger.KeyLDAPURL, cfg.URL,
		logger.KeyBaseDN, cfg.BaseDN,
		logger.KeyPoolSize, a.pool.Stat().TotalResources(),
		"max_pool_size", cfg.MaxPoolSize,
	)

	return a, nil
}

// Authenticate implements directory.Authenticator.
func (a *Authenticator) Authenticate(ctx context.Context, identity, secret string, attributes []string) (*directory.Result, error) {
	if identity == "" {
		return nil, directory.Reject("empty identity")
	}
	// An empty password would be an unauthenticated bind, which servers
	// accept for any DN.
	if secret == "" {
		return nil, directory.Reject("empty password")
	}

	res, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("ldap: acquire connection: %w", err)
	}
	pc := res.Value()

	result, err := a.authenticate(ctx, pc, identity, secret, attributes)

	// Rebind as the service account before the connection goes back to
	// the pool. A connection that cannot be restored is discarded.
	if pc.conn.IsClosing() {
		res.Destroy()
	} else if rerr := a.bindService(pc.conn); rerr != nil {
		logger.Warn("LDAP service rebind failed, discarding connection",
			logger.KeyLDAPURL, pc.url.String(),
			logger.KeyError, rerr.Error(),
		)
		res.Destroy()
	} else {
		res.Release()
	}

	return result, err
}

func (a *Authenticator) authenticate(ctx context.Context, pc *pooledConn, identity, secret string, attributes []string) (*directory.Result, error) {
	dn, err := a.findUser(ctx, pc, identity)
	if err != nil {
		return nil, err
	}

	if err := a.bindUser(ctx, pc, dn, secret); err != nil {
		return nil, err
	}

	attrs, err := a.readEntry(ctx, pc, dn, attributes)
	if err != nil {
		return nil, err
	}

	return &directory.Result{PrincipalID: dn, Attributes: attrs}, nil
}

// findUser resolves identity to a DN with a subtree search.
func (a *Authenticator) findUser(ctx context.Context, pc *pooledConn, identity string) (string, error) {
	base := a.cfg.UserSearchDN()
	filter := userFilter(a.cfg.UserSearchFilter, identity)

	_, span := telemetry.StartDirectorySpan(ctx, "search",
		telemetry.LDAPURL(pc.url.String()),
		telemetry.LDAPBaseDN(base),
		telemetry.LDAPFilter(filter),
	)
	defer span.End()

	req := ldapv3.NewSearchRequest(
		base, ldapv3.ScopeWholeSubtree, ldapv3.NeverDerefAliases,
		2, a.timeLimit(), false,
		filter, []string{"1.1"}, nil,
	)

	sr, err := pc.conn.Search(req)
	if err != nil && !ldapv3.IsErrorWithCode(err, ldapv3.LDAPResultSizeLimitExceeded) {
		span.RecordError(err)
		if ldapv3.IsErrorWithCode(err, ldapv3.LDAPResultNoSuchObject) {
			return "", fmt.Errorf("ldap: search base %q does not exist: %w", base, err)
		}
		return "", fmt.Errorf("ldap: search user: %w", err)
	}

	var n int
	if sr != nil {
		n = len(sr.Entries)
	}
	span.SetAttributes(telemetry.LDAPEntries(n))

	switch {
	case n == 0:
		return "", directory.Reject("user not found")
	case n > 1 || ldapv3.IsErrorWithCode(err, ldapv3.LDAPResultSizeLimitExceeded):
		return "", directory.Rejectf("multiple entries match identity under %s", base)
	}
	return sr.Entries[0].DN, nil
}

// bindUser verifies the password by binding as dn.
func (a *Authenticator) bindUser(ctx context.Context, pc *pooledConn, dn, secret string) error {
	_, span := telemetry.StartDirectorySpan(ctx, "bind",
		telemetry.LDAPURL(pc.url.String()),
		telemetry.Principal(dn),
	)
	defer span.End()

	err := pc.conn.Bind(dn, secret)
	if err == nil {
		return nil
	}

	var lerr *ldapv3.Error
	if errors.As(err, &lerr) {
		span.SetAttributes(telemetry.LDAPResultCode(lerr.ResultCode))
		if isRejectionCode(lerr.ResultCode) {
			return directory.Reject(diagnostic(lerr))
		}
	}
	span.RecordError(err)
	return fmt.Errorf("ldap: bind %q: %w", dn, err)
}

// readEntry reads dn with the requested attributes.
func (a *Authenticator) readEntry(ctx context.Context, pc *pooledConn, dn string, requested []string) (map[string]string, error) {
	ldapAttrs, wantURL := entryAttributes(requested)

	_, span := telemetry.StartDirectorySpan(ctx, "entry",
		telemetry.LDAPURL(pc.url.String()),
		telemetry.Principal(dn),
	)
	defer span.End()

	req := ldapv3.NewSearchRequest(
		dn, ldapv3.ScopeBaseObject, ldapv3.NeverDerefAliases,
		1, a.timeLimit(), false,
		"(objectClass=*)", ldapAttrs, nil,
	)

	sr, err := pc.conn.Search(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("ldap: read entry %q: %w", dn, err)
	}

	attrs := map[string]string{}
	if len(sr.Entries) > 0 {
		attrs = firstValues(sr.Entries[0])
	}
	if wantURL {
		attrs[AttributeLDAPURL] = pc.url.String()
	}
	return attrs, nil
}

// Stats returns a snapshot of the connection pool.
func (a *Authenticator) Stats() PoolStats {
	s := a.pool.Stat()
	return PoolStats{
		Total:        s.TotalResources(),
		Idle:         s.IdleResources(),
		Acquired:     s.AcquiredResources(),
		Constructing: s.ConstructingResources(),
		Max:          s.MaxResources(),
		AcquireCount: s.AcquireCount(),
		EmptyAcquire: s.EmptyAcquireCount(),
	}
}

// Ping checks that the directory is reachable using a pooled connection.
func (a *Authenticator) Ping(ctx context.Context) error {
	res, err := a.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("ldap: acquire connection: %w", err)
	}
	if err := a.ping(res.Value().conn); err != nil {
		res.Destroy()
		return fmt.Errorf("ldap: ping %s: %w", res.Value().url, err)
	}
	res.Release()
	return nil
}

// Close stops validation and closes every pooled connection. It blocks until
// acquired connections are released. Calling Close more than once is harmless.
func (a *Authenticator) Close() error {
	a.closeOnce.Do(func() {
		close(a.stopCh)
		<-a.stopped
		a.pool.Close()
		logger.Info("LDAP authenticator stopped")
	})
	return nil
}

// ============================================================================
// Pool maintenance
// ============================================================================

// topUp opens connections until the pool holds MinPoolSize. Failures are
// logged and stop the attempt; the next validation pass retries.
func (a *Authenticator) topUp(ctx context.Context) {
	for a.pool.Stat().TotalResources() < int32(a.cfg.MinPoolSize) {
		if err := a.pool.CreateResource(ctx); err != nil {
			if !errors.Is(err, puddle.ErrClosedPool) {
				logger.Warn("LDAP pool could not reach minimum size",
					logger.KeyPoolSize, a.pool.Stat().TotalResources(),
					"min_pool_size", a.cfg.MinPoolSize,
					logger.KeyError, err.Error(),
				)
			}
			return
		}
	}
}

func (a *Authenticator) validationLoop() {
	defer close(a.stopped)

	ticker := time.NewTicker(a.cfg.ValidationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.validate()
		}
	}
}

// validate pings idle connections, destroys broken ones and tops the pool
// back up to its minimum.
func (a *Authenticator) validate() {
	var broken int
	for _, res := range a.pool.AcquireAllIdle() {
		if err := a.ping(res.Value().conn); err != nil {
			broken++
			logger.Debug("LDAP connection failed validation",
				logger.KeyLDAPURL, res.Value().url.String(),
				logger.KeyError, err.Error(),
			)
			res.Destroy()
			continue
		}
		res.ReleaseUnused()
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ConnectTimeout+a.cfg.ResponseTimeout)
	defer cancel()
	a.topUp(ctx)

	if broken > 0 {
		stat := a.pool.Stat()
		logger.Info("LDAP pool validated",
			"broken", broken,
			logger.KeyPoolSize, stat.TotalResources(),
			logger.KeyPoolIdle, stat.IdleResources(),
		)
	}
}
