package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for authentication operations.
// These follow OpenTelemetry semantic conventions where applicable.
const (
	// ========================================================================
	// Client attributes
	// ========================================================================
	AttrClientIP = "client.ip"

	// ========================================================================
	// Authentication attributes
	// ========================================================================
	AttrIdentity  = "auth.identity"  // Login name (never the secret)
	AttrPrincipal = "auth.principal" // Resolved principal DN
	AttrOutcome   = "auth.outcome"   // success, rejected, failed, cached
	AttrProvider  = "auth.provider"  // Provider name

	// ========================================================================
	// Cache attributes
	// ========================================================================
	AttrCacheHit = "cache.hit"

	// ========================================================================
	// Directory (LDAP) attributes
	// ========================================================================
	AttrLDAPURL        = "ldap.url"
	AttrLDAPBaseDN     = "ldap.base_dn"
	AttrLDAPFilter     = "ldap.filter"
	AttrLDAPResultCode = "ldap.result_code"
	AttrLDAPEntries    = "ldap.entries"
)

// Span names for operations.
// Format: <component>.<operation>
const (
	SpanAuthenticate    = "authprovider.authenticate"
	SpanDirectorySearch = "directory.search"
	SpanDirectoryBind   = "directory.bind"
	SpanDirectoryEntry  = "directory.entry"
)

// ClientIP returns an attribute for client IP address
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// Identity returns an attribute for the login name
func Identity(identity string) attribute.KeyValue {
	return attribute.String(AttrIdentity, identity)
}

// Principal returns an attribute for the resolved principal
func Principal(dn string) attribute.KeyValue {
	return attribute.String(AttrPrincipal, dn)
}

// Outcome returns an attribute for the authentication outcome
func Outcome(outcome string) attribute.KeyValue {
	return attribute.String(AttrOutcome, outcome)
}

// Provider returns an attribute for the provider name
func Provider(name string) attribute.KeyValue {
	return attribute.String(AttrProvider, name)
}

// CacheHit returns an attribute for cache hit status
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// LDAPURL returns an attribute for the LDAP server URL
func LDAPURL(url string) attribute.KeyValue {
	return attribute.String(AttrLDAPURL, url)
}

// LDAPBaseDN returns an attribute for the search base
func LDAPBaseDN(dn string) attribute.KeyValue {
	return attribute.String(AttrLDAPBaseDN, dn)
}

// LDAPFilter returns an attribute for the search filter
func LDAPFilter(filter string) attribute.KeyValue {
	return attribute.String(AttrLDAPFilter, filter)
}

// LDAPResultCode returns an attribute for an LDAP result code
func LDAPResultCode(code uint16) attribute.KeyValue {
	return attribute.Int(AttrLDAPResultCode, int(code))
}

// LDAPEntries returns an attribute for the number of entries returned
func LDAPEntries(n int) attribute.KeyValue {
	return attribute.Int(AttrLDAPEntries, n)
}

// StartAuthSpan starts the root span for one authentication.
func StartAuthSpan(ctx context.Context, provider, identity string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		Provider(provider),
		Identity(identity),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanAuthenticate, trace.WithAttributes(allAttrs...))
}

// StartDirectorySpan starts a span for a directory operation
// (search, bind, entry).
func StartDirectorySpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "directory."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}
