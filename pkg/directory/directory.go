// Package directory defines the contract between the authentication
// orchestrator and a credential directory.
//
// A directory verifies an (identity, secret) pair and, on success, returns the
// principal it resolved together with the requested attributes. Two kinds of
// unsuccessful outcome exist and are kept apart:
//
//   - Rejection: the directory answered and said no (unknown user, wrong
//     password, locked account). Rejections wrap ErrRejected and carry the
//     directory's diagnostic message.
//   - Failure: the directory could not answer (connection refused, timeout,
//     protocol error). Any other error.
//
// Callers treat both as "not authenticated"; the distinction exists for
// logging and metrics only.
//
// Sub-packages:
//   - ldap/: LDAP implementation backed by a pooled go-ldap client
package directory

import (
	"context"
	"errors"
	"fmt"
)

// Authenticator verifies credentials against a directory.
//
// Thread safety: implementations must be safe for concurrent use.
type Authenticator interface {
	// Authenticate verifies secret for identity and returns the resolved
	// principal with the requested attributes. An empty attributes list
	// requests every user attribute the directory exposes.
	//
	// Returns:
	//   - (*Result, nil) on success
	//   - (nil, error wrapping ErrRejected) when the directory says no
	//   - (nil, other error) when the directory cannot be reached or misbehaves
	Authenticate(ctx context.Context, identity, secret string, attributes []string) (*Result, error)
}

// AuthenticatorFunc adapts an ordinary function to the Authenticator interface.
type AuthenticatorFunc func(ctx context.Context, identity, secret string, attributes []string) (*Result, error)

// Authenticate calls f.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, identity, secret string, attributes []string) (*Result, error) {
	return f(ctx, identity, secret, attributes)
}

// Result is a successful authentication.
type Result struct {
	// PrincipalID identifies the authenticated principal (for LDAP, the
	// user's distinguished name).
	PrincipalID string

	// Attributes maps attribute names to their value. Multi-valued
	// attributes are reduced to their first value.
	Attributes map[string]string
}

// ErrRejected is wrapped by every rejection.
var ErrRejected = errors.New("directory: credentials rejected")

// RejectionError is a rejection carrying the directory's diagnostic.
type RejectionError struct {
	Diagnostic string
}

func (e *RejectionError) Error() string {
	if e.Diagnostic == "" {
		return ErrRejected.Error()
	}
	return fmt.Sprintf("%s: %s", ErrRejected.Error(), e.Diagnostic)
}

// Unwrap makes errors.Is(err, ErrRejected) hold.
func (e *RejectionError) Unwrap() error {
	return ErrRejected
}

// Reject returns a rejection with the given diagnostic.
func Reject(diagnostic string) error {
	return &RejectionError{Diagnostic: diagnostic}
}

// Rejectf returns a rejection with a formatted diagnostic.
func Rejectf(format string, args ...any) error {
	return &RejectionError{Diagnostic: fmt.Sprintf(format, args...)}
}

// IsRejected reports whether err is a rejection.
func IsRejected(err error) bool {
	return errors.Is(err, ErrRejected)
}

// Diagnostic extracts the diagnostic of a rejection, or the error text for
// anything else. Returns "" for nil.
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Diagnostic
	}
	return err.Error()
}
