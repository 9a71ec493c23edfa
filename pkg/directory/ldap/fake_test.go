package ldap

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	ldapv3 "github.com/go-ldap/ldap/v3"
)

// ============================================================================
// In-memory directory used by the tests in this package
// ============================================================================

type fakeUser struct {
	password string
	attrs    map[string][]string
}

type fakeServer struct {
	mu         sync.Mutex
	users      map[string]fakeUser // keyed by DN
	serviceDN  string
	servicePW  string
	down       map[string]bool // addr -> unreachable
	dials      int
	searchErr  error // returned by the next user search, then cleared
	pingErr    error // returned by root DSE reads
	bindErr    error // returned by every user bind when set
	conns      []*fakeConn
	lastFilter string
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		users:     make(map[string]fakeUser),
		serviceDN: "cn=admin,dc=planetexpress,dc=com",
		servicePW: "GoodNewsEveryone",
		down:      make(map[string]bool),
	}
}

func (s *fakeServer) addUser(dn, password string, attrs map[string][]string) {
	s.users[dn] = fakeUser{password: password, attrs: attrs}
}

func (s *fakeServer) setDown(addr string, down bool) {
	s.mu.Lock()
	s.down[addr] = down
	s.mu.Unlock()
}

func (s *fakeServer) dialCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

func (s *fakeServer) openConns() []*fakeConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	var open []*fakeConn
	for _, c := range s.conns {
		if !c.IsClosing() {
			open = append(open, c)
		}
	}
	return open
}

func (s *fakeServer) dial(_ context.Context, u serverURL) (ldapConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dials++
	if s.down[u.Addr()] {
		return nil, ldapv3.NewError(ldapv3.ErrorNetwork, fmt.Errorf("dial tcp %s: connection refused", u.Addr()))
	}
	c := &fakeConn{server: s, url: u}
	s.conns = append(s.conns, c)
	return c, nil
}

type fakeConn struct {
	server *fakeServer
	url    serverURL

	mu      sync.Mutex
	boundDN string
	closed  bool
}

func (c *fakeConn) Bind(username, password string) error {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()

	if username == s.serviceDN {
		if password != s.servicePW {
			return ldapv3.NewError(ldapv3.LDAPResultInvalidCredentials, errors.New("invalid service credentials"))
		}
		c.setBound(username)
		return nil
	}

	if s.bindErr != nil {
		return s.bindErr
	}
	u, ok := s.users[username]
	if !ok || u.password != password {
		c.setBound("")
		return ldapv3.NewError(ldapv3.LDAPResultInvalidCredentials, errors.New(""))
	}
	c.setBound(username)
	return nil
}

func (c *fakeConn) UnauthenticatedBind(username string) error {
	c.setBound(username)
	return nil
}

func (c *fakeConn) Search(req *ldapv3.SearchRequest) (*ldapv3.SearchResult, error) {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.IsClosing() {
		return nil, ldapv3.NewError(ldapv3.ErrorNetwork, errors.New("connection closed"))
	}

	// Root DSE
	if req.BaseDN == "" && req.Scope == ldapv3.ScopeBaseObject {
		if s.pingErr != nil {
			return nil, s.pingErr
		}
		return &ldapv3.SearchResult{Entries: []*ldapv3.Entry{{DN: ""}}}, nil
	}

	if req.Scope == ldapv3.ScopeBaseObject {
		u, ok := s.users[req.BaseDN]
		if !ok {
			return nil, ldapv3.NewError(ldapv3.LDAPResultNoSuchObject, errors.New(""))
		}
		return &ldapv3.SearchResult{Entries: []*ldapv3.Entry{entryFor(req.BaseDN, u, req.Attributes)}}, nil
	}

	s.lastFilter = req.Filter
	if s.searchErr != nil {
		err := s.searchErr
		s.searchErr = nil
		if ldapv3.IsErrorWithCode(err, ldapv3.ErrorNetwork) {
			c.closeLocked()
		}
		return nil, err
	}

	var entries []*ldapv3.Entry
	for dn, u := range s.users {
		if !strings.HasSuffix(dn, req.BaseDN) {
			continue
		}
		for _, uid := range u.attrs["uid"] {
			if req.Filter == "(uid="+ldapv3.EscapeFilter(uid)+")" {
				entries = append(entries, &ldapv3.Entry{DN: dn})
			}
		}
	}
	slices.SortFunc(entries, func(a, b *ldapv3.Entry) int { return strings.Compare(a.DN, b.DN) })
	if req.SizeLimit > 0 && len(entries) > req.SizeLimit {
		entries = entries[:req.SizeLimit]
		return &ldapv3.SearchResult{Entries: entries}, ldapv3.NewError(ldapv3.LDAPResultSizeLimitExceeded, errors.New(""))
	}
	return &ldapv3.SearchResult{Entries: entries}, nil
}

func entryFor(dn string, u fakeUser, requested []string) *ldapv3.Entry {
	e := &ldapv3.Entry{DN: dn}
	all := slices.Contains(requested, "*")
	names := make([]string, 0, len(u.attrs))
	for name := range u.attrs {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if all || slices.Contains(requested, name) {
			e.Attributes = append(e.Attributes, &ldapv3.EntryAttribute{Name: name, Values: u.attrs[name]})
		}
	}
	return e
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) closeLocked() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) IsClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) setBound(dn string) {
	c.mu.Lock()
	c.boundDN = dn
	c.mu.Unlock()
}

func (c *fakeConn) bound() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.boundDN
}

// planetExpress populates the fixture used throughout the tests.
func planetExpress() *fakeServer {
	s := newFakeServer()
	s.addUser("cn=Hubert J. Farnsworth,ou=people,dc=planetexpress,dc=com", "professor", map[string][]string{
		"cn":          {"Hubert J. Farnsworth"},
		"uid":         {"professor"},
		"mail":        {"professor@planetexpress.com", "hubert@planetexpress.com"},
		"description": {"Human"},
		"objectClass": {"inetOrgPerson"},
	})
	s.addUser("cn=Philip J. Fry,ou=people,dc=planetexpress,dc=com", "fry", map[string][]string{
		"cn":          {"Philip J. Fry"},
		"uid":         {"fry"},
		"mail":        {"fry@planetexpress.com"},
		"objectClass": {"inetOrgPerson"},
	})
	return s
}
