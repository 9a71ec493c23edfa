package authprovider

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ldapauth/internal/logger"
	"github.com/marmos91/ldapauth/pkg/directory"
)

// ============================================================================
// Mock directory for provider tests
// ============================================================================

type mockDirectory struct {
	mu        sync.Mutex
	callCount int
	lastAttrs []string
	passwords map[string]string
	results   map[string]*directory.Result
	failErr   error
	delay     time.Duration
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		passwords: make(map[string]string),
		results:   make(map[string]*directory.Result),
	}
}

func (m *mockDirectory) addUser(identity, secret, dn string, attrs map[string]string) {
	m.passwords[identity] = secret
	m.results[identity] = &directory.Result{PrincipalID: dn, Attributes: attrs}
}

func (m *mockDirectory) Authenticate(_ context.Context, identity, secret string, attributes []string) (*directory.Result, error) {
	m.mu.Lock()
	m.callCount++
	m.lastAttrs = attributes
	failErr := m.failErr
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if failErr != nil {
		return nil, failErr
	}

	want, ok := m.passwords[identity]
	if !ok {
		return nil, directory.Reject("user not found")
	}
	if want != secret {
		return nil, directory.Reject("invalid credentials")
	}
	return m.results[identity], nil
}

func (m *mockDirectory) getCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *mockDirectory) setFailure(err error) {
	m.mu.Lock()
	m.failErr = err
	m.mu.Unlock()
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (r *recordingMetrics) RecordAuthentication(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[string]int)
	}
	r.outcomes[outcome]++
}

func (r *recordingMetrics) count(outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcomes[outcome]
}

const (
	professorDN = "cn=Hubert J. Farnsworth,ou=people,dc=planetexpress,dc=com"
	fryDN       = "cn=Philip J. Fry,ou=people,dc=planetexpress,dc=com"
)

func newFixtureDirectory() *mockDirectory {
	dir := newMockDirectory()
	dir.addUser("professor", "professor", professorDN, map[string]string{
		"cn":   "Hubert J. Farnsworth",
		"mail": "professor@planetexpress.com",
	})
	dir.addUser("fry", "fry", fryDN, map[string]string{
		"cn":   "Philip J. Fry",
		"mail": "fry@planetexpress.com",
	})
	return dir
}

func newTestProvider(t *testing.T, dir directory.Authenticator, mutate ...func(*Options)) *Provider {
	t.Helper()

	opts := Options{
		Name:          "test",
		Directory:     dir,
		Capacity:      DefaultCapacity,
		TimeToLive:    time.Minute,
		SweepInterval: time.Minute,
	}
	for _, fn := range mutate {
		fn(&opts)
	}

	p, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

// ============================================================================
// Construction
// ============================================================================

func TestNew_RequiresDirectory(t *testing.T) {
	_, err := New(Options{Capacity: 1, SweepInterval: time.Second})
	require.ErrorIs(t, err, ErrNoDirectory)
}

func TestNew_RejectsUnknownKeyStrategy(t *testing.T) {
	_, err := New(Options{
		Directory:     newMockDirectory(),
		Capacity:      1,
		SweepInterval: time.Second,
		KeyStrategy:   "username",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown key strategy")
}

func TestNew_PropagatesCacheErrors(t *testing.T) {
	_, err := New(Options{Directory: newMockDirectory(), Capacity: -1})
	require.Error(t, err)

	_, err = New(Options{Directory: newMockDirectory(), Capacity: 10})
	require.Error(t, err, "positive capacity requires a sweep interval")
}

func TestNew_DefaultName(t *testing.T) {
	p, err := New(Options{Directory: newMockDirectory(), Capacity: 0})
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, "directory", p.Name())
}

// ============================================================================
// Cache-aside behavior
// ============================================================================

func TestProvider_SecondCallServedFromCache(t *testing.T) {
	dir := newFixtureDirectory()
	p := newTestProvider(t, dir)

	first, ok := p.Authenticate(context.Background(), "professor", "professor")
	require.True(t, ok)
	assert.Equal(t, professorDN, first.PrincipalID)
	assert.Equal(t, "professor@planetexpress.com", first.Attributes["mail"])

	second, ok := p.Authenticate(context.Background(), "professor", "professor")
	require.True(t, ok)

	assert.Same(t, first, second, "cache hit must return the stored profile")
	assert.Equal(t, 1, dir.getCallCount())

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Successes)
	assert.Equal(t, 1, stats.CacheSize)
}

func TestProvider_CacheHitSkipsDirectoryEvenWhenDown(t *testing.T) {
	dir := newFixtureDirectory()
	p := newTestProvider(t, dir)

	_, ok := p.Authenticate(context.Background(), "fry", "fry")
	require.True(t, ok)

	dir.setFailure(errors.New("connection refused"))

	profile, ok := p.Authenticate(context.Background(), "fry", "fry")
	require.True(t, ok)
	assert.Equal(t, fryDN, profile.PrincipalID)
	assert.Equal(t, 1, dir.getCallCount())
}

func TestProvider_RejectionIsNotCached(t *testing.T) {
	dir := newFixtureDirectory()
	p := newTestProvider(t, dir)

	_, ok := p.Authenticate(context.Background(), "professor", "wrong")
	assert.False(t, ok)
	_, ok = p.Authenticate(context.Background(), "professor", "wrong")
	assert.False(t, ok)

	assert.Equal(t, 2, dir.getCallCount())
	assert.Equal(t, 0, p.Stats().CacheSize)
	assert.Equal(t, int64(2), p.Stats().Rejections)

	// The right password succeeds immediately afterwards.
	profile, ok := p.Authenticate(context.Background(), "professor", "professor")
	require.True(t, ok)
	assert.Equal(t, professorDN, profile.PrincipalID)
}

func TestProvider_FailureIsNotCached(t *testing.T) {
	dir := newFixtureDirectory()
	p := newTestProvider(t, dir)

	dir.setFailure(errors.New("dial tcp 127.0.0.1:389: connection refused"))
	_, ok := p.Authenticate(context.Background(), "fry", "fry")
	assert.False(t, ok)

	dir.setFailure(nil)
	profile, ok := p.Authenticate(context.Background(), "fry", "fry")
	require.True(t, ok)
	assert.Equal(t, fryDN, profile.PrincipalID)

	assert.Equal(t, 2, dir.getCallCount())
	stats := p.Stats()
	assert.Equal(t, int64(1), stats.Failures)
	assert.Equal(t, int64(1), stats.Successes)
}

func TestProvider_NilResultTreatedAsFailure(t *testing.T) {
	dir := directory.AuthenticatorFunc(func(context.Context, string, string, []string) (*directory.Result, error) {
		return nil, nil
	})
	p := newTestProvider(t, dir)

	_, ok := p.Authenticate(context.Background(), "fry", "fry")
	assert.False(t, ok)
	assert.Equal(t, int64(1), p.Stats().Failures)
	assert.Equal(t, 0, p.Stats().CacheSize)
}

func TestProvider_DifferentPasswordMissesCache(t *testing.T) {
	dir := newFixtureDirectory()
	p := newTestProvider(t, dir)

	_, ok := p.Authenticate(context.Background(), "fry", "fry")
	require.True(t, ok)

	_, ok = p.Authenticate(context.Background(), "fry", "not-fry")
	assert.False(t, ok)
	assert.Equal(t, 2, dir.getCallCount())
}

func TestProvider_IdentityStrategyTrustsFirstPassword(t *testing.T) {
	dir := newFixtureDirectory()
	p := newTestProvider(t, dir, func(o *Options) {
		o.KeyStrategy = KeyStrategyIdentity
	})

	_, ok := p.Authenticate(context.Background(), "fry", "fry")
	require.True(t, ok)

	profile, ok := p.Authenticate(context.Background(), "fry", "anything")
	require.True(t, ok)
	assert.Equal(t, fryDN, profile.PrincipalID)
	assert.Equal(t, 1, dir.getCallCount())
}

func TestProvider_ZeroCapacityAlwaysCallsDirectory(t *testing.T) {
	dir := newFixtureDirectory()
	p := newTestProvider(t, dir, func(o *Options) {
		o.Capacity = 0
		o.SweepInterval = 0
	})

	for i := 0; i < 3; i++ {
		_, ok := p.Authenticate(context.Background(), "professor", "professor")
		require.True(t, ok)
	}

	assert.Equal(t, 3, dir.getCallCount())
	stats := p.Stats()
	assert.False(t, stats.CacheEnabled)
	assert.Equal(t, 0, stats.CacheSize)
}

func TestProvider_PassesConfiguredAttributes(t *testing.T) {
	dir := newFixtureDirectory()
	attrs := []string{"cn", "mail", "ldapURL"}
	p := newTestProvider(t, dir, func(o *Options) {
		o.Attributes = attrs
	})

	attrs[0] = "mutated"
	_, ok := p.Authenticate(context.Background(), "fry", "fry")
	require.True(t, ok)

	dir.mu.Lock()
	defer dir.mu.Unlock()
	assert.Equal(t, []string{"cn", "mail", "ldapURL"}, dir.lastAttrs)
}

func TestProvider_ProfileIsDetachedFromDirectoryResult(t *testing.T) {
	dir := newFixtureDirectory()
	p := newTestProvider(t, dir)

	profile, ok := p.Authenticate(context.Background(), "fry", "fry")
	require.True(t, ok)

	dir.results["fry"].Attributes["mail"] = "changed@example.com"
	assert.Equal(t, "fry@planetexpress.com", profile.Attributes["mail"])
}

func TestProvider_EntryExpiresAfterTTL(t *testing.T) {
	dir := newFixtureDirectory()
	p := newTestProvider(t, dir, func(o *Options) {
		o.TimeToLive = 100 * time.Millisecond
		o.SweepInterval = 20 * time.Millisecond
	})

	_, ok := p.Authenticate(context.Background(), "fry", "fry")
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		return p.Stats().CacheSize == 0
	}, time.Second, 10*time.Millisecond)

	_, ok = p.Authenticate(context.Background(), "fry", "fry")
	require.True(t, ok)
	assert.Equal(t, 2, dir.getCallCount())
}

// ============================================================================
// Diagnostics
// ============================================================================

func TestProvider_CachedProfile(t *testing.T) {
	dir := newFixtureDirectory()
	p := newTestProvider(t, dir)

	_, ok := p.CachedProfile("fry", "fry")
	assert.False(t, ok)

	stored, ok := p.Authenticate(context.Background(), "fry", "fry")
	require.True(t, ok)

	cached, ok := p.CachedProfile("fry", "fry")
	require.True(t, ok)
	assert.Same(t, stored, cached)

	_, ok = p.CachedProfile("fry", "wrong")
	assert.False(t, ok)
	assert.Equal(t, 1, dir.getCallCount())
}

func TestProvider_InvalidateAndPurge(t *testing.T) {
	dir := newFixtureDirectory()
	p := newTestProvider(t, dir)

	_, _ = p.Authenticate(context.Background(), "fry", "fry")
	_, _ = p.Authenticate(context.Background(), "professor", "professor")
	require.Equal(t, 2, p.Stats().CacheSize)

	p.Invalidate("fry", "fry")
	assert.Equal(t, 1, p.Stats().CacheSize)
	_, ok := p.CachedProfile("fry", "fry")
	assert.False(t, ok)

	p.Purge()
	assert.Equal(t, 0, p.Stats().CacheSize)
}

func TestProvider_RecordsMetrics(t *testing.T) {
	dir := newFixtureDirectory()
	m := &recordingMetrics{}
	p := newTestProvider(t, dir, func(o *Options) {
		o.Metrics = m
	})

	_, _ = p.Authenticate(context.Background(), "fry", "fry")
	_, _ = p.Authenticate(context.Background(), "fry", "fry")
	_, _ = p.Authenticate(context.Background(), "fry", "wrong")
	dir.setFailure(errors.New("timeout"))
	_, _ = p.Authenticate(context.Background(), "professor", "professor")

	assert.Equal(t, 1, m.count(OutcomeSuccess))
	assert.Equal(t, 1, m.count(OutcomeCached))
	assert.Equal(t, 1, m.count(OutcomeRejected))
	assert.Equal(t, 1, m.count(OutcomeFailed))
}

func TestProvider_CloseClearsCache(t *testing.T) {
	dir := newFixtureDirectory()
	p, err := New(Options{
		Directory:     dir,
		Capacity:      10,
		TimeToLive:    time.Minute,
		SweepInterval: time.Minute,
	})
	require.NoError(t, err)

	_, ok := p.Authenticate(context.Background(), "fry", "fry")
	require.True(t, ok)

	p.Close()
	p.Close()

	assert.Equal(t, 0, p.Stats().CacheSize)
}

// ============================================================================
// Concurrency
// ============================================================================

func TestProvider_ConcurrentMissesAreNotCoalesced(t *testing.T) {
	dir := newFixtureDirectory()
	dir.delay = 200 * time.Millisecond
	p := newTestProvider(t, dir)

	const n = 5
	var wg sync.WaitGroup
	results := make([]*Profile, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			profile, ok := p.Authenticate(context.Background(), "fry", "fry")
			assert.True(t, ok)
			results[i] = profile
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n, dir.getCallCount())
	assert.Equal(t, 1, p.Stats().CacheSize)
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, fryDN, r.PrincipalID)
	}
}

func TestProvider_ConcurrentMixedTraffic(t *testing.T) {
	dir := newFixtureDirectory()
	p := newTestProvider(t, dir, func(o *Options) {
		o.Capacity = 1
		o.TimeToLive = 5 * time.Millisecond
		o.SweepInterval = time.Millisecond
	})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				switch (g + i) % 3 {
				case 0:
					_, ok := p.Authenticate(context.Background(), "fry", "fry")
					assert.True(t, ok)
				case 1:
					_, ok := p.Authenticate(context.Background(), "professor", "professor")
					assert.True(t, ok)
				default:
					_, ok := p.Authenticate(context.Background(), "fry", "bad")
					assert.False(t, ok)
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, p.Stats().CacheSize, 1)
}

// ============================================================================
// Startup logging
// ============================================================================

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)
	logger.InitWithWriter(buf, "INFO", "text", false)
	t.Cleanup(func() { logger.InitWithWriter(os.Stdout, "INFO", "text", false) })
	return buf
}

func TestNew_LogsCacheSettings(t *testing.T) {
	buf := captureLogs(t)

	newTestProvider(t, newFixtureDirectory())

	out := buf.String()
	assert.Contains(t, out, "Authentication provider started")
	assert.Contains(t, out, "ttl=1m0s")
	assert.NotContains(t, out, "cache disabled")
}

func TestNew_LogsDisabledCache(t *testing.T) {
	buf := captureLogs(t)

	newTestProvider(t, newFixtureDirectory(), func(o *Options) { o.Capacity = 0 })

	out := buf.String()
	assert.Contains(t, out, "cache disabled")
	assert.NotContains(t, out, "ttl=")
}
