package authprovider

import (
	"maps"

	"github.com/marmos91/ldapauth/pkg/directory"
)

// Profile is an authenticated principal and its attributes.
//
// Profiles returned from the cache are shared between callers and must be
// treated as read-only.
type Profile struct {
	// PrincipalID is the principal's unique name (for LDAP, its DN).
	PrincipalID string

	// Attributes maps attribute names to a single value.
	Attributes map[string]string
}

// Attribute returns the value of name and whether it is present.
func (p *Profile) Attribute(name string) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p.Attributes[name]
	return v, ok
}

func newProfile(res *directory.Result) *Profile {
	attrs := make(map[string]string, len(res.Attributes))
	maps.Copy(attrs, res.Attributes)
	return &Profile{
		PrincipalID: res.PrincipalID,
		Attributes:  attrs,
	}
}
