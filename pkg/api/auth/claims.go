// Package auth issues and validates the JWTs returned by the token endpoint.
package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the JWT claims for an authenticated principal.
//
// The registered subject is the principal ID (the user's DN). The token ID
// (jti) is a random UUID.
type Claims struct {
	jwt.RegisteredClaims

	// Username is the login name the client presented.
	Username string `json:"username"`

	// Attributes are the profile attributes at the time of issue.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// PrincipalID returns the subject claim.
func (c *Claims) PrincipalID() string {
	return c.Subject
}

// Attribute returns the value of name and whether it is present.
func (c *Claims) Attribute(name string) (string, bool) {
	v, ok := c.Attributes[name]
	return v, ok
}
