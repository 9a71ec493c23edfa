package handlers

import (
	"context"
	"sync"

	"github.com/marmos91/ldapauth/pkg/authprovider"
	"github.com/marmos91/ldapauth/pkg/directory/ldap"
)

// mockProvider accepts a fixed set of credentials.
type mockProvider struct {
	mu       sync.Mutex
	users    map[string]string // username -> password
	profiles map[string]*authprovider.Profile
	calls    int
	stats    authprovider.Stats
	cached   map[string]string // username -> password of cached entries
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		users: map[string]string{"professor": "professor", "fry": "fry"},
		profiles: map[string]*authprovider.Profile{
			"professor": {
				PrincipalID: "cn=Hubert J. Farnsworth,ou=people,dc=planetexpress,dc=com",
				Attributes:  map[string]string{"cn": "Hubert J. Farnsworth", "mail": "professor@planetexpress.com"},
			},
			"fry": {
				PrincipalID: "cn=Philip J. Fry,ou=people,dc=planetexpress,dc=com",
				Attributes:  map[string]string{"cn": "Philip J. Fry"},
			},
		},
		stats:  authprovider.Stats{CacheEnabled: true, CacheSize: 2, Hits: 5, Misses: 3, Successes: 2, Rejections: 1},
		cached: map[string]string{"professor": "professor"},
	}
}

func (m *mockProvider) Authenticate(_ context.Context, identity, secret string) (*authprovider.Profile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if pw, ok := m.users[identity]; !ok || pw != secret {
		return nil, false
	}
	return m.profiles[identity], true
}

func (m *mockProvider) CachedProfile(identity, secret string) (*authprovider.Profile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pw, ok := m.cached[identity]; !ok || pw != secret {
		return nil, false
	}
	return m.profiles[identity], true
}

func (m *mockProvider) Invalidate(identity, secret string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cached[identity] == secret {
		delete(m.cached, identity)
	}
}

func (m *mockProvider) Name() string { return "directory" }

func (m *mockProvider) Stats() authprovider.Stats { return m.stats }

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockDirectory struct {
	pingErr error
	stats   ldap.PoolStats
}

func (m *mockDirectory) Ping(context.Context) error { return m.pingErr }

func (m *mockDirectory) Stats() ldap.PoolStats { return m.stats }
