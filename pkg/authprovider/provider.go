package authprovider

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/marmos91/ldapauth/internal/logger"
	"github.com/marmos91/ldapauth/internal/telemetry"
	"github.com/marmos91/ldapauth/pkg/cache"
	"github.com/marmos91/ldapauth/pkg/directory"
)

// DefaultCapacity is the default maximum number of cached profiles.
const DefaultCapacity = 100

// ErrNoDirectory is returned by New when Options.Directory is nil.
var ErrNoDirectory = errors.New("authprovider: directory authenticator is required")

// errEmptyResult is reported when a directory returns neither a result nor
// an error.
var errEmptyResult = errors.New("directory returned no result")

// Options configures a Provider.
type Options struct {
	// Name identifies the provider in logs, traces and metrics.
	// Defaults to "directory".
	Name string

	// Directory is the upstream authenticator. Required.
	Directory directory.Authenticator

	// Attributes lists the attributes to request. Empty requests all user
	// attributes.
	Attributes []string

	// Capacity bounds the cache. Zero disables caching.
	Capacity int

	// TimeToLive is how long a profile is served from cache after a
	// successful authentication.
	TimeToLive time.Duration

	// SweepInterval is how often expired profiles are removed.
	SweepInterval time.Duration

	// KeyStrategy selects cache key derivation. Defaults to
	// KeyStrategyCredentials.
	KeyStrategy KeyStrategy

	// CacheMetrics and Metrics are optional.
	CacheMetrics cache.CacheMetrics
	Metrics      Metrics
}

// Stats is a snapshot of provider counters.
type Stats struct {
	// Hits and Misses are cache lookups.
	Hits   int64
	Misses int64

	// Successes, Rejections and Failures count directory calls by outcome.
	Successes  int64
	Rejections int64
	Failures   int64

	// CacheSize is the current number of cached profiles.
	CacheSize int

	// CacheEnabled is false when the cache capacity is zero.
	CacheEnabled bool
}

// Provider authenticates credentials against a directory, caching successful
// results.
//
// Thread safety: safe for concurrent use. The directory call runs outside any
// cache lock.
type Provider struct {
	name       string
	dir        directory.Authenticator
	attributes []string
	strategy   KeyStrategy
	cache      *cache.Cache[Key, *Profile]
	metrics    Metrics

	successes  atomic.Int64
	rejections atomic.Int64
	failures   atomic.Int64
}

// New creates a Provider and starts its cache sweeper. Call Close to stop it.
func New(opts Options) (*Provider, error) {
	if opts.Directory == nil {
		return nil, ErrNoDirectory
	}

	strategy, err := ParseKeyStrategy(string(opts.KeyStrategy))
	if err != nil {
		return nil, fmt.Errorf("authprovider: %w", err)
	}

	name := opts.Name
	if name == "" {
		name = "directory"
	}

	c, err := cache.New[Key, *Profile](cache.Options{
		Name:          name,
		Capacity:      opts.Capacity,
		TimeToLive:    opts.TimeToLive,
		SweepInterval: opts.SweepInterval,
		Metrics:       opts.CacheMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("authprovider: %w", err)
	}

	if strategy == KeyStrategyIdentity {
		logger.Warn("Cache keys ignore the password; any password is accepted for a cached identity",
			logger.KeyProvider, name,
			logger.KeyStrategy, string(strategy),
		)
	}

	if c.Enabled() {
		logger.Info("Authentication provider started",
			logger.KeyProvider, name,
			logger.KeyCacheCapacity, opts.Capacity,
			"ttl", opts.TimeToLive.String(),
			logger.KeyStrategy, string(strategy),
		)
	} else {
		logger.Info("Authentication provider started, cache disabled",
			logger.KeyProvider, name,
		)
	}

	return &Provider{
		name:       name,
		dir:        opts.Directory,
		attributes: slices.Clone(opts.Attributes),
		strategy:   strategy,
		cache:      c,
		metrics:    opts.Metrics,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return p.name
}

// Authenticate returns the profile for the given credentials, or false if
// they could not be verified.
//
// A cached profile is returned as-is without contacting the directory. On a
// miss the directory is called once; only a successful result is cached.
// Rejections and directory failures both return false and differ only in
// how they are logged.
func (p *Provider) Authenticate(ctx context.Context, identity, secret string) (*Profile, bool) {
	start := time.Now()

	ctx, span := telemetry.StartAuthSpan(ctx, p.name, identity)
	defer span.End()
	ctx = telemetry.CorrelateLogs(ctx)

	key := DeriveKey(p.strategy, identity, secret)

	if profile, ok := p.cache.Get(key); ok {
		span.SetAttributes(telemetry.CacheHit(true), telemetry.Outcome(OutcomeCached))
		recordAuthentication(p.metrics, OutcomeCached, time.Since(start))
		logger.DebugCtx(ctx, "Authentication served from cache",
			logger.KeyIdentity, identity,
			logger.KeyPrincipal, profile.PrincipalID,
		)
		return profile, true
	}
	span.SetAttributes(telemetry.CacheHit(false))

	res, err := p.dir.Authenticate(ctx, identity, secret, p.attributes)
	if err == nil && res == nil {
		err = errEmptyResult
	}

	if err != nil {
		duration := time.Since(start)
		if directory.IsRejected(err) {
			p.rejections.Add(1)
			span.SetAttributes(telemetry.Outcome(OutcomeRejected))
			recordAuthentication(p.metrics, OutcomeRejected, duration)
			logger.DebugCtx(ctx, "Authentication rejected",
				logger.KeyIdentity, identity,
				logger.KeyDiagnostic, directory.Diagnostic(err),
				logger.KeyDurationMs, logger.Duration(start),
			)
		} else {
			p.failures.Add(1)
			span.SetAttributes(telemetry.Outcome(OutcomeFailed))
			telemetry.RecordError(ctx, err)
			recordAuthentication(p.metrics, OutcomeFailed, duration)
			logger.ErrorCtx(ctx, "Authentication failed",
				logger.KeyIdentity, identity,
				logger.KeyError, err.Error(),
				logger.KeyDurationMs, logger.Duration(start),
			)
		}
		return nil, false
	}

	profile := newProfile(res)
	p.cache.Put(key, profile)
	p.successes.Add(1)

	span.SetAttributes(telemetry.Principal(profile.PrincipalID), telemetry.Outcome(OutcomeSuccess))
	span.SetStatus(codes.Ok, "")
	recordAuthentication(p.metrics, OutcomeSuccess, time.Since(start))
	logger.DebugCtx(ctx, "Authentication succeeded",
		logger.KeyIdentity, identity,
		logger.KeyPrincipal, profile.PrincipalID,
		logger.KeyDurationMs, logger.Duration(start),
	)

	return profile, true
}

// CachedProfile returns the cached profile for the given credentials without
// calling the directory and without affecting recency or cache counters.
func (p *Provider) CachedProfile(identity, secret string) (*Profile, bool) {
	return p.cache.Peek(DeriveKey(p.strategy, identity, secret))
}

// Invalidate drops the cached profile for the given credentials, if any.
// Under KeyStrategyIdentity the secret is ignored.
func (p *Provider) Invalidate(identity, secret string) {
	p.cache.Remove(DeriveKey(p.strategy, identity, secret))
}

// Purge drops every cached profile.
func (p *Provider) Purge() {
	p.cache.Clear()
}

// Stats returns current counters.
func (p *Provider) Stats() Stats {
	cs := p.cache.Stats()
	return Stats{
		Hits:         cs.Hits,
		Misses:       cs.Misses,
		Successes:    p.successes.Load(),
		Rejections:   p.rejections.Load(),
		Failures:     p.failures.Load(),
		CacheSize:    cs.Size,
		CacheEnabled: p.cache.Enabled(),
	}
}

// Close drops every cached profile and stops the sweeper. It does not close
// the directory. Calling Close more than once is harmless.
func (p *Provider) Close() {
	p.cache.Clear()
	p.cache.Close()
	logger.Info("Authentication provider stopped", logger.KeyProvider, p.name)
}
