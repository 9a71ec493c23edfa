package ldap

import (
	"slices"
	"strings"

	ldapv3 "github.com/go-ldap/ldap/v3"
)

// userFilter substitutes the escaped identity into the configured filter.
// The result is wrapped in parentheses when the template is bare
// ("uid={0}" becomes "(uid=fry)").
func userFilter(template, identity string) string {
	escaped := ldapv3.EscapeFilter(identity)
	f := strings.NewReplacer("{0}", escaped, "{user}", escaped).Replace(template)
	if !strings.HasPrefix(f, "(") {
		f = "(" + f + ")"
	}
	return f
}

// entryAttributes splits the requested attribute list into the names sent
// to the server and whether the synthetic ldapURL attribute was requested.
// An empty request asks for all user attributes.
func entryAttributes(requested []string) (ldapAttrs []string, wantURL bool) {
	ldapAttrs = make([]string, 0, len(requested))
	for _, a := range requested {
		if strings.EqualFold(a, AttributeLDAPURL) {
			wantURL = true
			continue
		}
		if !slices.Contains(ldapAttrs, a) {
			ldapAttrs = append(ldapAttrs, a)
		}
	}
	if len(ldapAttrs) == 0 && !wantURL {
		ldapAttrs = []string{"*"}
	}
	if len(ldapAttrs) == 0 {
		// Only the synthetic attribute was asked for: request no real
		// attributes at all.
		ldapAttrs = []string{"1.1"}
	}
	return ldapAttrs, wantURL
}

// firstValues reduces an entry to one value per attribute.
func firstValues(entry *ldapv3.Entry) map[string]string {
	attrs := make(map[string]string, len(entry.Attributes))
	for _, a := range entry.Attributes {
		if len(a.Values) > 0 {
			attrs[a.Name] = a.Values[0]
		}
	}
	return attrs
}
