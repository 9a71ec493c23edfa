package ldap

import (
	ldapv3 "github.com/go-ldap/ldap/v3"
)

// isRejectionCode reports whether a bind result code means the server
// refused these credentials, as opposed to being unable to decide.
func isRejectionCode(code uint16) bool {
	switch code {
	case ldapv3.LDAPResultInvalidCredentials,
		ldapv3.LDAPResultInappropriateAuthentication,
		ldapv3.LDAPResultInsufficientAccessRights,
		ldapv3.LDAPResultUnwillingToPerform,
		ldapv3.LDAPResultConstraintViolation,
		ldapv3.LDAPResultInvalidDNSyntax:
		return true
	default:
		return false
	}
}

// diagnostic returns the server's diagnostic message, falling back to the
// result code name.
func diagnostic(err *ldapv3.Error) string {
	if err.Err != nil && err.Err.Error() != "" {
		return err.Err.Error()
	}
	if name, ok := ldapv3.LDAPResultCodeMap[err.ResultCode]; ok {
		return name
	}
	return err.Error()
}
